package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakePublisher struct {
	keys     []string
	payloads []interface{}
	err      error
}

func (p *fakePublisher) PublishJSON(_ context.Context, routingKey string, payload interface{}) error {
	p.keys = append(p.keys, routingKey)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func TestQueueSinkRoutesByKind(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewQueueSink(pub)

	require.NoError(t, sink.Deliver(context.Background(), Event{ID: "e1", Kind: KindSaleCreated}))
	require.NoError(t, sink.Deliver(context.Background(), Event{ID: "e2", Kind: KindStockRestocked}))

	assert.Equal(t, []string{"audit.sale.created", "audit.stock.restocked"}, pub.keys)
	assert.Equal(t, "e1", pub.payloads[0].(Event).ID)
}

func TestQueueSinkWrapsPublishErrors(t *testing.T) {
	cause := errors.New("channel closed")
	sink := NewQueueSink(&fakePublisher{err: cause})

	err := sink.Deliver(context.Background(), Event{ID: "e1", Kind: KindSaleCreated})
	assert.ErrorIs(t, err, cause)
}

func TestLogSinkWritesStructuredEvent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Deliver(context.Background(), Event{
		ID: "e1", Kind: KindSaleCancelled, Outcome: OutcomeSuccess, ActorID: 3, SaleID: 8, InvoiceNumber: "INV-20260115-0008",
	}))

	entries := logs.FilterMessage("Audit event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "sale.cancelled", fields["kind"])
	assert.Equal(t, "INV-20260115-0008", fields["invoice_number"])
}
