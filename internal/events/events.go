// Package events publishes domain events about rubrics and evaluations to redis pub/sub and NATS.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// EvaluationFinalized is emitted once an evaluation transitions to completed.
	EvaluationFinalized = "evaluation.finalized"
	// RubricDeleted is emitted after a rubric and its index entries are removed.
	RubricDeleted = "rubric.deleted"
)

// Event is the envelope written to every transport.
type Event struct {
	Type       string      `json:"type"`
	Source     string      `json:"source"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Publisher delivers domain events. Implementations never block the caller on delivery failures
// beyond returning the error.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// Config controls where events are sent. Empty transports are skipped.
type Config struct {
	Source string
	Prefix string
	Redis  *redis.Client
	NATS   *nats.Conn
}

type busPublisher struct {
	source string
	prefix string
	redis  *redis.Client
	nats   *nats.Conn
	logger zerolog.Logger
	now    func() time.Time
}

// NewPublisher returns a publisher fanning events out to the configured transports. When neither
// redis nor NATS is configured it returns a no-op publisher.
func NewPublisher(cfg Config, logger zerolog.Logger) Publisher {
	if cfg.Redis == nil && cfg.NATS == nil {
		return NopPublisher{}
	}

	prefix := strings.Trim(strings.TrimSpace(cfg.Prefix), ".")
	if prefix == "" {
		prefix = "gema"
	}

	return &busPublisher{
		source: cfg.Source,
		prefix: prefix,
		redis:  cfg.Redis,
		nats:   cfg.NATS,
		logger: logger.With().Str("component", "event_publisher").Logger(),
		now:    time.Now,
	}
}

// Subject returns the channel/subject an event type is published on.
func Subject(prefix, eventType string) string {
	return prefix + "." + eventType
}

func (p *busPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	body, err := json.Marshal(Event{
		Type:       eventType,
		Source:     p.source,
		Payload:    payload,
		OccurredAt: p.now().UTC(),
	})
	if err != nil {
		return err
	}

	subject := Subject(p.prefix, eventType)
	var errs []error

	if p.redis != nil {
		if err := p.redis.Publish(ctx, subject, body).Err(); err != nil {
			p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event to redis")
			errs = append(errs, err)
		}
	}

	if p.nats != nil {
		if err := p.nats.Publish(subject, body); err != nil {
			p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event to nats")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, string, interface{}) error {
	return nil
}
