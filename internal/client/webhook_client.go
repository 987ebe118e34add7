package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// WebhookClient posts JSON payloads to caller-supplied endpoints
type WebhookClient struct {
	client *resty.Client
}

// NewWebhookClient creates a new webhook client. Every delivery is bounded by timeout.
func NewWebhookClient(timeout time.Duration) *WebhookClient {
	return &WebhookClient{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// Deliver posts payload to endpointURL. Success is decided by the HTTP status
// alone: any 2xx is delivered, everything else is not.
func (c *WebhookClient) Deliver(ctx context.Context, payload any, endpointURL string) DeliveryOutcome {
	if endpointURL == "" {
		return DeliveryOutcome{Error: "Webhook URL is not provided."}
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(endpointURL)
	if err != nil {
		return DeliveryOutcome{Error: fmt.Sprintf("Failed to send data: %v", err)}
	}

	if !resp.IsSuccess() {
		return DeliveryOutcome{
			StatusCode: resp.StatusCode(),
			Error:      fmt.Sprintf("Failed to send data: %s", resp.Status()),
			Response:   resp.String(),
		}
	}

	return DeliveryOutcome{
		Delivered:  true,
		StatusCode: resp.StatusCode(),
		Response:   resp.String(),
	}
}
