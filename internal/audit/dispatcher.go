// Package audit delivers operation-outcome events to an external sink without
// letting the sink slow down or fail the operation that produced them.
package audit

import (
	"context"
	"sync"
	"time"

	"sale-service/prometheus"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink receives audit events
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// Options configures a Dispatcher
type Options struct {
	BufferSize      int
	Workers         int
	DeliveryTimeout time.Duration
}

// Dispatcher queues events on a bounded channel drained by worker goroutines
type Dispatcher struct {
	sink    Sink
	opts    Options
	log     *zap.Logger
	metrics *prometheus.Metrics

	mu     sync.RWMutex
	closed bool
	events chan Event
	wg     sync.WaitGroup
}

// NewDispatcher starts opts.Workers delivery goroutines
func NewDispatcher(sink Sink, opts Options, log *zap.Logger, metrics *prometheus.Metrics) *Dispatcher {
	if opts.BufferSize < 1 {
		opts.BufferSize = 1
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 5 * time.Second
	}

	d := &Dispatcher{
		sink:    sink,
		opts:    opts,
		log:     log.Named("audit"),
		metrics: metrics,
		events:  make(chan Event, opts.BufferSize),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Emit queues event for delivery and returns immediately. When the buffer is
// full or the dispatcher is closed the event is dropped and logged.
func (d *Dispatcher) Emit(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(event, "dispatcher closed")
		return
	}

	d.metrics.AuditQueueDepth.Inc()
	select {
	case d.events <- event:
	default:
		d.metrics.AuditQueueDepth.Dec()
		d.drop(event, "buffer full")
	}
}

// Close stops accepting events and waits for queued ones to be delivered, or
// for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.log.Warn("Audit queue not drained before shutdown deadline",
			zap.Int("pending", len(d.events)))
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for event := range d.events {
		d.metrics.AuditQueueDepth.Dec()
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.DeliveryTimeout)
	defer cancel()

	if err := d.sink.Deliver(ctx, event); err != nil {
		d.metrics.RecordAuditEvent("failed")
		d.log.Error("Failed to deliver audit event",
			append(eventFields(event), zap.Error(err))...)
		return
	}
	d.metrics.RecordAuditEvent("delivered")
}

func (d *Dispatcher) drop(event Event, reason string) {
	d.metrics.RecordAuditEvent("dropped")
	d.log.Warn("Audit event dropped",
		append(eventFields(event), zap.String("reason", reason))...)
}

func eventFields(e Event) []zap.Field {
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.String("kind", string(e.Kind)),
		zap.String("action", e.Action),
		zap.String("outcome", string(e.Outcome)),
		zap.Uint("actor_id", e.ActorID),
		zap.Time("occurred_at", e.OccurredAt),
	}
	if e.SaleID != 0 {
		fields = append(fields, zap.Uint("sale_id", e.SaleID))
	}
	if e.InvoiceNumber != "" {
		fields = append(fields, zap.String("invoice_number", e.InvoiceNumber))
	}
	if e.ProductID != 0 {
		fields = append(fields, zap.Uint("product_id", e.ProductID))
	}
	if e.Total != nil {
		fields = append(fields, zap.String("total", e.Total.StringFixed(2)))
	}
	if e.Amount != nil {
		fields = append(fields, zap.String("amount", e.Amount.StringFixed(2)))
	}
	if e.ItemCount != 0 {
		fields = append(fields, zap.Int("item_count", e.ItemCount))
	}
	if e.Quantity != 0 {
		fields = append(fields, zap.Int("quantity", e.Quantity))
	}
	if e.PaymentMethod != "" {
		fields = append(fields, zap.String("payment_method", e.PaymentMethod))
	}
	if e.ErrorCode != "" {
		fields = append(fields, zap.String("error_code", e.ErrorCode))
	}
	if e.Message != "" {
		fields = append(fields, zap.String("message", e.Message))
	}
	return fields
}
