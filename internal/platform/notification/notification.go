// Package notification delivers domain events (currently "patient created")
// to an external channel after the originating transaction has committed.
// Delivery is fire-and-forget: the Dispatcher queues events and a single
// worker hands them to the configured Notifier.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType names a domain event.
type EventType string

const (
	EventPatientCreated EventType = "patient.created"
)

// Event is the payload published for a domain event.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Type       EventType         `json:"type"`
	SubjectID  uuid.UUID         `json:"subject_id"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Payload encodes the event as JSON.
func (e Event) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// Notifier delivers one event.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

// Template is a subject/body pair with {{key}} placeholders.
type Template struct {
	Subject string
	Body    string
}

var templates = map[EventType]Template{
	EventPatientCreated: {
		Subject: "New Patient Created",
		Body:    "A new patient {{name}} ({{email}}) has been registered.",
	},
}

// Render replaces {{key}} placeholders with data. Keys absent from data are
// left as-is.
func (t Template) Render(data map[string]string) (subject, body string) {
	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body
}

// NewEvent builds an event of type typ, rendering its template with data.
func NewEvent(typ EventType, subjectID uuid.UUID, data map[string]string) Event {
	e := Event{
		ID:         uuid.New(),
		Type:       typ,
		SubjectID:  subjectID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
	if tpl, ok := templates[typ]; ok {
		e.Subject, e.Body = tpl.Render(data)
	}
	return e
}

// ---------------------------------------------------------------------------
// Log notifier
// ---------------------------------------------------------------------------

// LogNotifier writes events to the logger. It is the development default.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, e Event) error {
	n.logger.Info().
		Str("event_id", e.ID.String()).
		Str("type", string(e.Type)).
		Str("subject_id", e.SubjectID.String()).
		Str("subject", e.Subject).
		Msg(e.Body)
	return nil
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }

// Fanout delivers each event to every notifier, even when one fails.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

const (
	DefaultQueueSize     = 256
	defaultNotifyTimeout = 10 * time.Second
)

// Dispatcher decouples event producers from delivery. Enqueue never blocks;
// when the queue is full the event is dropped and a warning logged.
type Dispatcher struct {
	notifier Notifier
	logger   zerolog.Logger
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// NewDispatcher starts the delivery worker. Call Close to drain and stop it.
func NewDispatcher(n Notifier, queueSize int, logger zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		notifier: n,
		logger:   logger,
		timeout:  defaultNotifyTimeout,
		queue:    make(chan Event, queueSize),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue schedules e for delivery and reports whether it was accepted.
func (d *Dispatcher) Enqueue(e Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn().Str("type", string(e.Type)).Msg("notification dropped: dispatcher closed")
		return false
	}
	select {
	case d.queue <- e:
		return true
	default:
		d.logger.Warn().Str("type", string(e.Type)).Msg("notification dropped: queue full")
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		d.deliver(e)
	}
}

func (d *Dispatcher) deliver(e Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("notifier panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, e); err != nil {
		d.logger.Error().Err(err).
			Str("event_id", e.ID.String()).
			Str("type", string(e.Type)).
			Msg("notification delivery failed")
		return
	}
	d.logger.Debug().Str("event_id", e.ID.String()).Str("type", string(e.Type)).Msg("notification delivered")
}

// Close stops accepting events and waits until queued events are delivered
// or ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain notifications: %w", ctx.Err())
	}
}
