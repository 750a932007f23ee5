// Package notify delivers best-effort notifications about request transitions.
//
// Nothing here can fail the operation that triggered it: delivery runs after the
// transaction commits, in the background, and errors are only logged and counted.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"visit-tracker/internal/metrics"
)

type Event string

const (
	EventRequestCreated   Event = "request.created"
	EventRequestScheduled Event = "request.scheduled"
	EventRequestRejected  Event = "request.rejected"
	EventVisitCompleted   Event = "visit.completed"
	EventVisitRejected    Event = "visit.rejected"
	EventVisitConfirmed   Event = "visit.confirmed"
)

// Payload is the request snapshot sent with every event.
type Payload struct {
	RequestID     string     `json:"request_id"`
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email"`
	SiteLocation  string     `json:"site_location"`
	SupportType   string     `json:"support_type"`
	ProblemDesc   string     `json:"problem_desc,omitempty"`
	RequestedDate string     `json:"requested_date,omitempty"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	DurationHours *int       `json:"duration_hours,omitempty"`
	ActualHours   *int       `json:"actual_hours,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	CustomerNotes string     `json:"customer_notes,omitempty"`
	ConfirmURL    string     `json:"confirm_url,omitempty"`
	Actor         string     `json:"actor,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// Notifier is the only dependency services have on notification delivery.
type Notifier interface {
	Notify(ctx context.Context, event Event, payload Payload)
}

// Sink is one delivery channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, event Event, payload Payload) error
}

// ErrSkipped may be returned by a sink that has nothing to do for an event.
var ErrSkipped = errors.New("notify: skipped")

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event, Payload) {}

// Dispatcher fans events out to its sinks in background goroutines.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	log     *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(log *slog.Logger, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{sinks: sinks, timeout: timeout, log: log}
}

// Notify returns immediately. Sends are detached from ctx cancellation so that a finished
// HTTP request does not abort its own notifications.
func (d *Dispatcher) Notify(ctx context.Context, event Event, payload Payload) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.log.Warn("notification dropped after shutdown", "event", event, "request_id", payload.RequestID)
		return
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = time.Now().UTC()
	}

	base := context.WithoutCancel(ctx)
	for _, sink := range d.sinks {
		d.wg.Add(1)
		go d.deliver(base, sink, event, payload)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sink Sink, event Event, payload Payload) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			metrics.Notifications.WithLabelValues(sink.Name(), "panic").Inc()
			d.log.Error("notification sink panicked", "sink", sink.Name(), "event", event, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := sink.Send(ctx, event, payload)
	switch {
	case err == nil:
		metrics.Notifications.WithLabelValues(sink.Name(), "sent").Inc()
	case errors.Is(err, ErrSkipped):
		metrics.Notifications.WithLabelValues(sink.Name(), "skipped").Inc()
	default:
		metrics.Notifications.WithLabelValues(sink.Name(), "failed").Inc()
		d.log.Warn("notification failed",
			"sink", sink.Name(),
			"event", event,
			"request_id", payload.RequestID,
			"error", err,
		)
	}
}

// Close stops accepting events and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
