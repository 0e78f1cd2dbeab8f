package sale

import (
	"context"
	"sync"
	"testing"
	"time"

	"sale-service/internal/audit"
	"sale-service/internal/invoice"
	"sale-service/internal/memstore"
	"sale-service/internal/model"
	"sale-service/pkg/logger"
	"sale-service/prometheus"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

var testDay = time.Date(2026, 1, 15, 10, 30, 0, 0, time.Local)

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Emit(e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAudit) last() audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return audit.Event{}
	}
	return r.events[len(r.events)-1]
}

func (r *recordingAudit) count(kind audit.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	store   *memstore.Store
	seq     *invoice.MemorySequencer
	audit   *recordingAudit
	metrics *prometheus.Metrics
	deps    Dependencies
	coord   *Coordinator
	ctx     context.Context
}

func testOptions() Options {
	return Options{CommitAttempts: 3, RetryBackoff: time.Millisecond, RollbackTimeout: time.Second, ReleaseAttempts: 2}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	f := &fixture{
		store:   store,
		seq:     invoice.NewMemorySequencer(func() time.Time { return testDay }),
		audit:   &recordingAudit{},
		metrics: prometheus.NewMetrics("test", promclient.NewRegistry()),
		ctx:     logger.WithContext(context.Background(), zaptest.NewLogger(t)),
	}
	f.deps = Dependencies{
		Catalog:   store,
		Ledger:    store,
		Sequencer: f.seq,
		Sales:     store,
		Audit:     f.audit,
		Metrics:   f.metrics,
	}
	f.coord = NewCoordinator(f.deps, testOptions())
	return f
}

// rebuild recreates the coordinator after a test swaps a dependency
func (f *fixture) rebuild() {
	f.coord = NewCoordinator(f.deps, testOptions())
}

func (f *fixture) addProduct(name string, price, cost string, quantity int) model.Product {
	return f.store.AddProduct(model.Product{
		Name:      name,
		SKU:       name,
		Price:     decimal.RequireFromString(price),
		CostPrice: decimal.RequireFromString(cost),
		Quantity:  quantity,
		IsActive:  true,
	})
}

func (f *fixture) quantity(t *testing.T, id uint) int {
	t.Helper()
	p, ok := f.store.Product(id)
	if !ok {
		t.Fatalf("product %d missing", id)
	}
	return p.Quantity
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	w := decimal.RequireFromString(want)
	assert.True(t, w.Equal(got), append([]interface{}{"want %s, got %s", w.String(), got.String()}, msgAndArgs...)...)
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
