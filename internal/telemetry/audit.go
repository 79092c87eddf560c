// Package telemetry records an audit trail of moderation actions. Deletes
// are hard removals in the message store, so the AMQP trail is the only
// durable record of who did what.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher is the transport the emitter writes envelopes to.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter builds and publishes audit envelopes.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	log         *zap.Logger
}

// AuditEnvelope is the wire shape of one audit record.
type AuditEnvelope struct {
	SchemaVersion  int          `json:"schema_version"`
	EventType      string       `json:"event_type"`
	OccurredAt     string       `json:"occurred_at"`
	Service        string       `json:"service"`
	Environment    string       `json:"environment"`
	RequestID      string       `json:"request_id"`
	ActorMatricule string       `json:"actor_matricule,omitempty"`
	Payload        AuditPayload `json:"payload"`
}

// AuditPayload names the action and its targets.
type AuditPayload struct {
	Action                string `json:"action"`
	ConversationMatricule string `json:"conversation_matricule,omitempty"`
	MessageMatricule      string `json:"message_matricule,omitempty"`
	TargetMatricule       string `json:"target_matricule,omitempty"`
}

// NewAuditEmitter wires an emitter. A nil emitter is safe to call Emit on.
func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, log *zap.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         log,
	}
}

// Emit publishes one audit record. Publish failures are logged, never
// returned; auditing must not block user actions.
func (e *AuditEmitter) Emit(ctx context.Context, actorMatricule string, payload AuditPayload) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion:  1,
		EventType:      "moderation_action",
		OccurredAt:     time.Now().UTC().Format(time.RFC3339Nano),
		Service:        e.service,
		Environment:    e.environment,
		RequestID:      uuid.NewString(),
		ActorMatricule: actorMatricule,
		Payload:        payload,
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		e.log.Warn("audit publish failed",
			zap.String("action", payload.Action),
			zap.Error(err),
		)
	}
}
