package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Workflow event types
const (
	EventChatMessage        = "chat_message"
	EventRFQGenerated       = "rfq_generated"
	EventQuotationExtracted = "quotation_extracted"
	EventStageAdvanced      = "stage_advanced"
	EventVendorsAnalyzed    = "vendors_analyzed"
	EventPOGenerated        = "purchase_order_generated"
	EventProfileUpdated     = "company_profile_updated"
	EventSessionReset       = "session_reset"
	EventExported           = "exported"
	EventWebhookDelivered   = "webhook_delivered"
)

// EventPublisher publishes workflow events to NATS JetStream.
//
// Subject convention: <prefix>.<event_type>
//
// All publish operations are non-fatal: errors are logged but never returned,
// so a broker outage never changes the outcome of a workflow action.
type EventPublisher struct {
	nats   Publisher
	prefix string
	log    zerolog.Logger
}

// WorkflowEvent is the JSON schema published to NATS.
type WorkflowEvent struct {
	EventType  string                 `json:"event_type"`
	SessionID  string                 `json:"session_id"`
	Stage      string                 `json:"stage"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// NewEventPublisher creates a publisher. A nil nats disables publishing.
func NewEventPublisher(nats Publisher, prefix string, log zerolog.Logger) *EventPublisher {
	if prefix == "" {
		prefix = "procurement"
	}
	return &EventPublisher{nats: nats, prefix: prefix, log: log}
}

// PublishWorkflowEvent publishes a workflow event.
// Subject: <prefix>.<eventType>
func (p *EventPublisher) PublishWorkflowEvent(ctx context.Context, eventType, sessionID, stage string, payload map[string]interface{}) {
	if p == nil || p.nats == nil {
		return
	}

	event := &WorkflowEvent{
		EventType:  eventType,
		SessionID:  sessionID,
		Stage:      stage,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("event: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("%s.%s", p.prefix, eventType)
	if err := p.nats.Publish(ctx, subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("session_id", sessionID).
			Msg("event: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("session_id", sessionID).
		Msg("event: published")
}
