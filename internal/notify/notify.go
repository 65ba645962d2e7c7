// Package notify delivers best-effort run notifications to webhooks and
// Kafka.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scout/internal/resilience"
)

// Level is the severity of a message. It selects the attachment colour.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// Field is one short key/value line of a message.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Message is a transport-neutral notification.
type Message struct {
	Kind   string    `json:"kind"` // run_complete, high_score, run_errors
	Level  Level     `json:"level"`
	Title  string    `json:"title"`
	Text   string    `json:"text"`
	Fields []Field   `json:"fields,omitempty"`
	SentAt time.Time `json:"sent_at"`
}

// Sink delivers messages. Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// Noop discards every message.
type Noop struct{}

func (Noop) Send(context.Context, Message) error { return nil }

// Multi fans a message out to every sink. All sinks are attempted and
// their errors joined.
type Multi []Sink

func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Guarded wraps a sink with a circuit breaker so that a dead endpoint is
// skipped quickly instead of stalling every run.
type Guarded struct {
	sink    Sink
	breaker *resilience.CircuitBreaker
}

// NewGuarded wraps sink with a breaker built from cfg.
func NewGuarded(sink Sink, cfg resilience.BreakerConfig) *Guarded {
	return &Guarded{sink: sink, breaker: resilience.NewCircuitBreaker(cfg)}
}

func (g *Guarded) Send(ctx context.Context, msg Message) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.sink.Send(ctx, msg)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return eris.Wrap(err, "notify: sink unavailable")
	}
	return err
}
