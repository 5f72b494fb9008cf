package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Dokus-Tech/dokus-auth/internal/core/domain"
	"github.com/Dokus-Tech/dokus-auth/internal/core/port"
	"github.com/Dokus-Tech/dokus-auth/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishLoginLocked publishes auth.login.locked events.
func (p *EventPublisher) PublishLoginLocked(ctx context.Context, event domain.LoginLockedEvent) error {
	payload := struct {
		IdentityKey string         `json:"identity_key"`
		Attempts    int            `json:"attempts"`
		LockedUntil time.Time      `json:"locked_until"`
		IPAddress   *string        `json:"ip_address,omitempty"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		IdentityKey: event.IdentityKey,
		Attempts:    event.Attempts,
		LockedUntil: event.LockedUntil.UTC(),
		IPAddress:   event.IPAddress,
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "auth.login.locked", "", time.Now().UTC(), payload)
}

// PublishTokenReuseDetected publishes auth.token.reuse_detected events.
func (p *EventPublisher) PublishTokenReuseDetected(ctx context.Context, event domain.TokenReuseDetectedEvent) error {
	payload := struct {
		UserID        string         `json:"user_id"`
		TokenHash     string         `json:"token_hash"`
		ReusedAt      time.Time      `json:"reused_at"`
		TokensRevoked int            `json:"tokens_revoked"`
		IPAddress     *string        `json:"ip_address,omitempty"`
		UserAgent     *string        `json:"user_agent,omitempty"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		UserID:        event.UserID,
		TokenHash:     event.TokenHash,
		ReusedAt:      event.ReusedAt.UTC(),
		TokensRevoked: event.TokensRevoked,
		IPAddress:     event.IPAddress,
		UserAgent:     event.UserAgent,
		Metadata:      event.Metadata,
	}

	return p.publish(ctx, event.EventID, "auth.token.reuse_detected", event.UserID, event.ReusedAt, payload)
}

// PublishSessionsRevoked publishes auth.sessions.revoked events.
func (p *EventPublisher) PublishSessionsRevoked(ctx context.Context, event domain.SessionsRevokedEvent) error {
	payload := struct {
		UserID    string         `json:"user_id"`
		Count     int            `json:"count"`
		Reason    string         `json:"reason"`
		RevokedAt time.Time      `json:"revoked_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		Count:     event.Count,
		Reason:    event.Reason,
		RevokedAt: event.RevokedAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, "auth.sessions.revoked", event.UserID, event.RevokedAt, payload)
}

// PublishAccountDeactivated publishes auth.account.deactivated events.
func (p *EventPublisher) PublishAccountDeactivated(ctx context.Context, event domain.AccountDeactivatedEvent) error {
	payload := struct {
		UserID        string         `json:"user_id"`
		Reason        string         `json:"reason"`
		DeactivatedAt time.Time      `json:"deactivated_at"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		UserID:        event.UserID,
		Reason:        event.Reason,
		DeactivatedAt: event.DeactivatedAt.UTC(),
		Metadata:      event.Metadata,
	}

	return p.publish(ctx, event.EventID, "auth.account.deactivated", event.UserID, event.DeactivatedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
