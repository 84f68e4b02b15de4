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

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types; the producer prefixes them with kafka.topic_prefix to form topic names.
const (
	EventAccountRegistered    = "account.registered"
	EventPasswordChanged      = "account.password.changed"
	EventAccountLocked        = "account.locked"
	EventAccountStatusChanged = "account.status.changed"
	EventAccountRoleChanged   = "account.role.changed"
	EventRecoveryRequested    = "recovery.requested"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	AccountID string           `json:"account_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
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

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		AccountID: accountID,
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
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
			{Key: []byte("schema_version"), Value: []byte(schemaVersion)},
		},
	}
	if accountID != "" {
		message.Key = sarama.StringEncoder(accountID)
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAccountRegistered publishes account.registered events.
func (p *EventPublisher) PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error {
	payload := struct {
		AccountID    string         `json:"account_id"`
		Name         string         `json:"name"`
		Email        string         `json:"email"`
		Role         string         `json:"role"`
		RegisteredAt time.Time      `json:"registered_at"`
		OriginIP     string         `json:"origin_ip,omitempty"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:    event.AccountID,
		Name:         event.Name,
		Email:        event.Email,
		Role:         string(event.Role),
		RegisteredAt: event.RegisteredAt.UTC(),
		OriginIP:     event.OriginIP,
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventAccountRegistered, event.AccountID, event.RegisteredAt, payload)
}

// PublishPasswordChanged publishes account.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		AccountID     string         `json:"account_id"`
		PasswordEpoch int64          `json:"password_epoch"`
		ChangedAt     time.Time      `json:"changed_at"`
		Method        string         `json:"method"`
		OriginIP      string         `json:"origin_ip,omitempty"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:     event.AccountID,
		PasswordEpoch: event.PasswordEpoch,
		ChangedAt:     event.ChangedAt.UTC(),
		Method:        event.Method,
		OriginIP:      event.OriginIP,
		Metadata:      event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventPasswordChanged, event.AccountID, event.ChangedAt, payload)
}

// PublishAccountLocked publishes account.locked events.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		AccountID   string         `json:"account_id"`
		LockedAt    time.Time      `json:"locked_at"`
		LockedUntil time.Time      `json:"locked_until"`
		OriginIP    string         `json:"origin_ip,omitempty"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:   event.AccountID,
		LockedAt:    event.LockedAt.UTC(),
		LockedUntil: event.LockedUntil.UTC(),
		OriginIP:    event.OriginIP,
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventAccountLocked, event.AccountID, event.LockedAt, payload)
}

// PublishAccountStatusChanged publishes account.status.changed events.
func (p *EventPublisher) PublishAccountStatusChanged(ctx context.Context, event domain.AccountStatusChangedEvent) error {
	payload := struct {
		AccountID string         `json:"account_id"`
		Disabled  bool           `json:"disabled"`
		ChangedBy string         `json:"changed_by"`
		ChangedAt time.Time      `json:"changed_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		AccountID: event.AccountID,
		Disabled:  event.Disabled,
		ChangedBy: event.ChangedBy,
		ChangedAt: event.ChangedAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventAccountStatusChanged, event.AccountID, event.ChangedAt, payload)
}

// PublishAccountRoleChanged publishes account.role.changed events.
func (p *EventPublisher) PublishAccountRoleChanged(ctx context.Context, event domain.AccountRoleChangedEvent) error {
	payload := struct {
		AccountID    string         `json:"account_id"`
		PreviousRole string         `json:"previous_role"`
		Role         string         `json:"role"`
		ChangedBy    string         `json:"changed_by"`
		ChangedAt    time.Time      `json:"changed_at"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:    event.AccountID,
		PreviousRole: string(event.PreviousRole),
		Role:         string(event.Role),
		ChangedBy:    event.ChangedBy,
		ChangedAt:    event.ChangedAt.UTC(),
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventAccountRoleChanged, event.AccountID, event.ChangedAt, payload)
}

// PublishRecoveryRequested publishes recovery.requested events. The code itself is never published.
func (p *EventPublisher) PublishRecoveryRequested(ctx context.Context, event domain.RecoveryRequestedEvent) error {
	payload := struct {
		AccountID   string         `json:"account_id"`
		EntryID     string         `json:"entry_id"`
		MaskedEmail string         `json:"masked_email"`
		OriginIP    string         `json:"origin_ip,omitempty"`
		RequestedAt time.Time      `json:"requested_at"`
		ExpiresAt   time.Time      `json:"expires_at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:   event.AccountID,
		EntryID:     event.EntryID,
		MaskedEmail: event.MaskedEmail,
		OriginIP:    event.OriginIP,
		RequestedAt: event.RequestedAt.UTC(),
		ExpiresAt:   event.ExpiresAt.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventRecoveryRequested, event.AccountID, event.RequestedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
