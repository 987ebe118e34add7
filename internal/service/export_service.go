package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/pesio-ai/be-procurement-assistant/internal/client"
	"github.com/pesio-ai/be-procurement-assistant/internal/comparison"
	"github.com/pesio-ai/be-procurement-assistant/internal/document"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/errors"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/logger"
	"github.com/pesio-ai/be-procurement-assistant/internal/quotation"
	"github.com/pesio-ai/be-procurement-assistant/internal/report"
	"github.com/pesio-ai/be-procurement-assistant/internal/repository"
)

// ExportSnapshot is the full accumulated state of a session at export time.
// It is built fresh on every export and never modified afterwards.
type ExportSnapshot struct {
	RFQ           *repository.RFQArtifact          `json:"rfq"`
	Quotations    *quotation.Set                   `json:"quotations"`
	Analysis      *repository.VendorRecommendation `json:"analysis"`
	PurchaseOrder *repository.PurchaseOrder        `json:"purchase_order"`
	ExportedAt    time.Time                        `json:"exported_at"`
}

// WebhookTestPayload is sent by TestWebhook
type WebhookTestPayload struct {
	Test      bool      `json:"test"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// DocumentKind names a report that can be produced from a session
type DocumentKind string

const (
	DocumentRFQ           DocumentKind = "rfq"
	DocumentAnalysis      DocumentKind = "analysis"
	DocumentPurchaseOrder DocumentKind = "purchase_order"
	DocumentComparison    DocumentKind = "comparison"
)

// ParseDocumentKind parses a report kind
func ParseDocumentKind(raw string) (DocumentKind, error) {
	switch k := DocumentKind(strings.ToLower(strings.TrimSpace(raw))); k {
	case DocumentRFQ, DocumentAnalysis, DocumentPurchaseOrder, DocumentComparison:
		return k, nil
	case "po":
		return DocumentPurchaseOrder, nil
	}
	return "", errors.InvalidInput("document", "document must be one of rfq, analysis, purchase_order, comparison")
}

// ExportService exports session state, delivers it to webhooks and builds
// per-stage reports.
type ExportService struct {
	workflow *WorkflowService
	reports  *ReportService
	webhook  client.WebhookDelivererInterface
	events   *client.EventPublisher
	log      *logger.Logger
	now      func() time.Time
}

// NewExportService creates a new export service
func NewExportService(
	workflow *WorkflowService,
	reports *ReportService,
	webhook client.WebhookDelivererInterface,
	events *client.EventPublisher,
	log *logger.Logger,
) *ExportService {
	return &ExportService{
		workflow: workflow,
		reports:  reports,
		webhook:  webhook,
		events:   events,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Export assembles a snapshot of all artifacts of a session
func (s *ExportService) Export(ctx context.Context, sessionID string) (*ExportSnapshot, error) {
	view, err := s.workflow.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	snapshot := &ExportSnapshot{
		RFQ:           view.RFQ,
		Quotations:    view.Quotations,
		Analysis:      view.Recommendation,
		PurchaseOrder: view.PurchaseOrder,
		ExportedAt:    s.now(),
	}

	s.log.Info().
		Str("session_id", sessionID).
		Int("vendors", view.Quotations.Len()).
		Bool("has_rfq", view.RFQ != nil).
		Bool("has_purchase_order", view.PurchaseOrder != nil).
		Msg("Session exported")
	s.events.PublishWorkflowEvent(ctx, client.EventExported, sessionID, view.CurrentStage.String(), nil)

	return snapshot, nil
}

// DeliverWebhook sends the export snapshot to a webhook endpoint. A failed
// delivery is reported in the outcome, not as an error.
func (s *ExportService) DeliverWebhook(ctx context.Context, sessionID, endpointURL string) (*client.DeliveryOutcome, error) {
	if strings.TrimSpace(endpointURL) == "" {
		return nil, errors.InvalidInput("url", "please enter a webhook URL")
	}

	snapshot, err := s.Export(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	outcome := s.webhook.Deliver(ctx, snapshot, endpointURL)
	s.logDelivery(sessionID, endpointURL, outcome)
	if outcome.Delivered {
		s.events.PublishWorkflowEvent(ctx, client.EventWebhookDelivered, sessionID, repository.StageExport.String(), map[string]interface{}{
			"status_code": outcome.StatusCode,
		})
	}

	return &outcome, nil
}

// TestWebhook sends a small test payload to a webhook endpoint
func (s *ExportService) TestWebhook(ctx context.Context, endpointURL string) (*client.DeliveryOutcome, error) {
	if strings.TrimSpace(endpointURL) == "" {
		return nil, errors.InvalidInput("url", "please enter a webhook URL to test")
	}

	outcome := s.webhook.Deliver(ctx, &WebhookTestPayload{
		Test:      true,
		Message:   "Webhook test successful!",
		Timestamp: s.now(),
	}, endpointURL)
	s.logDelivery("", endpointURL, outcome)

	return &outcome, nil
}

func (s *ExportService) logDelivery(sessionID, endpointURL string, outcome client.DeliveryOutcome) {
	if outcome.Delivered {
		s.log.Info().
			Str("session_id", sessionID).
			Str("url", endpointURL).
			Int("status_code", outcome.StatusCode).
			Msg("Webhook delivered")
		return
	}
	s.log.Warn().
		Str("session_id", sessionID).
		Str("url", endpointURL).
		Int("status_code", outcome.StatusCode).
		Str("error", outcome.Error).
		Msg("Webhook delivery failed")
}

// DocumentBlocks builds the report for one session artifact
func (s *ExportService) DocumentBlocks(ctx context.Context, sessionID string, kind DocumentKind) ([]report.Block, error) {
	view, err := s.workflow.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch kind {
	case DocumentRFQ:
		if view.RFQ == nil {
			return nil, errors.PreconditionNotMet("no RFQ has been generated")
		}
		return report.RenderText(view.RFQ.Content, "Procurement Request", "RFQ"), nil

	case DocumentAnalysis:
		if view.Recommendation == nil {
			return nil, errors.PreconditionNotMet("vendors have not been analyzed")
		}
		blocks := report.RenderText(view.Recommendation.Analysis, "Vendor Analysis", "Analysis")
		return append(blocks,
			&report.Heading{Level: 2, Text: "Recommendation Summary"},
			&report.Paragraph{Text: strings.ReplaceAll(view.Recommendation.Summary, "\n", report.LineBreak)},
		), nil

	case DocumentPurchaseOrder:
		if view.PurchaseOrder == nil {
			return nil, errors.PreconditionNotMet("no purchase order has been generated")
		}
		return report.RenderText(view.PurchaseOrder.Content, "PO for "+view.PurchaseOrder.Vendor, "Purchase Order"), nil

	case DocumentComparison:
		if view.Quotations.Len() == 0 {
			return nil, errors.PreconditionNotMet("no quotations have been extracted")
		}
		return comparison.Aggregate(view.Quotations).Blocks(), nil
	}

	return nil, errors.InvalidInput("document", "unknown document kind")
}

// WriteDocument writes the report for one session artifact in the given format
func (s *ExportService) WriteDocument(ctx context.Context, sessionID string, kind DocumentKind, format Format, w io.Writer) error {
	blocks, err := s.DocumentBlocks(ctx, sessionID, kind)
	if err != nil {
		return err
	}
	return s.reports.Write(w, blocks, format)
}

// ComparisonDocument returns the comparison matrix of a session as JSON-shaped data
func (s *ExportService) ComparisonDocument(ctx context.Context, sessionID string) (document.Value, error) {
	view, err := s.workflow.GetSession(ctx, sessionID)
	if err != nil {
		return document.NullValue(), err
	}
	return comparison.Aggregate(view.Quotations).Document(), nil
}
