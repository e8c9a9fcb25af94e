package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taskhub-api/internal/middleware"
)

// SubmissionEvent is broadcast after every successful lifecycle transition.
type SubmissionEvent struct {
	Type          string    `json:"type"`
	SubmissionID  uint      `json:"submission_id"`
	ActivityID    uint      `json:"activity_id"`
	ClassID       uint      `json:"class_id"`
	StudentID     uint      `json:"student_id"`
	Status        string    `json:"status,omitempty"`
	Score         *float64  `json:"score,omitempty"`
	ActorID       uint      `json:"actor_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventPublisher broadcasts lifecycle events. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event SubmissionEvent)
}

type natsEventPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSEventPublisher publishes events on "<subject>.<type suffix>". A nil connection disables publishing.
func NewNATSEventPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) EventPublisher {
	return &natsEventPublisher{
		conn:    conn,
		subject: strings.Trim(strings.TrimSpace(subject), "."),
		logger:  logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *natsEventPublisher) Publish(ctx context.Context, event SubmissionEvent) {
	if p.conn == nil || p.subject == "" {
		return
	}

	if event.CorrelationID == "" {
		event.CorrelationID = middleware.CorrelationIDFromContext(ctx)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Str("event", event.Type).Msg("failed to encode event")
		return
	}

	subject := p.subjectFor(event.Type)
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}

func (p *natsEventPublisher) subjectFor(eventType string) string {
	suffix := eventType
	if idx := strings.LastIndex(eventType, "."); idx >= 0 {
		suffix = eventType[idx+1:]
	}
	if suffix == "" {
		return p.subject
	}
	return p.subject + "." + suffix
}
