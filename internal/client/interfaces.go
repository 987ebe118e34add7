package client

import (
	"context"
	"io"

	"github.com/pesio-ai/be-procurement-assistant/internal/quotation"
)

// TextGeneratorInterface defines the interface for the text generation collaborator
type TextGeneratorInterface interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error)
	Chat(ctx context.Context, systemPrompt string, history []ChatTurn, temperature float32) (string, error)
}

// QuotationExtractorInterface defines the interface for the document extraction collaborator
type QuotationExtractorInterface interface {
	ExtractQuotation(ctx context.Context, file io.Reader, fileName, vendorName string) (quotation.Record, error)
}

// WebhookDelivererInterface defines the interface for webhook delivery
type WebhookDelivererInterface interface {
	Deliver(ctx context.Context, payload any, endpointURL string) DeliveryOutcome
}

// Publisher is the subset of the NATS client used for workflow events.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}
