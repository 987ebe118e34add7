package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/pesio-ai/be-procurement-assistant/internal/client"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/errors"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/logger"
	"github.com/pesio-ai/be-procurement-assistant/internal/quotation"
	"github.com/pesio-ai/be-procurement-assistant/internal/repository"
)

const (
	collaboratorTextGeneration = "text generation"
	collaboratorExtraction     = "extraction"
)

// AuditAppender records completed workflow actions
type AuditAppender interface {
	Append(ctx context.Context, entry *repository.WorkflowAuditEntry) error
}

// WorkflowService drives the five-stage procurement workflow. Every action
// either completes and stores its artifact, or fails and leaves the session
// exactly as it was.
type WorkflowService struct {
	sessions  *repository.SessionRepository
	generator client.TextGeneratorInterface
	extractor client.QuotationExtractorInterface
	audit     AuditAppender
	events    *client.EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewWorkflowService creates a new workflow service. audit and events may be nil.
func NewWorkflowService(
	sessions *repository.SessionRepository,
	generator client.TextGeneratorInterface,
	extractor client.QuotationExtractorInterface,
	audit AuditAppender,
	events *client.EventPublisher,
	log *logger.Logger,
) *WorkflowService {
	return &WorkflowService{
		sessions:  sessions,
		generator: generator,
		extractor: extractor,
		audit:     audit,
		events:    events,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession starts a new workflow session
func (s *WorkflowService) CreateSession(ctx context.Context) *repository.WorkflowSessionView {
	view := s.sessions.Create()
	s.log.Info().Str("session_id", view.ID).Msg("Workflow session created")
	return view
}

// GetSession returns a snapshot of a session
func (s *WorkflowService) GetSession(ctx context.Context, sessionID string) (*repository.WorkflowSessionView, error) {
	return s.sessions.Get(sessionID)
}

// DeleteSession discards a session
func (s *WorkflowService) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(sessionID); err != nil {
		return err
	}
	s.log.Info().Str("session_id", sessionID).Msg("Workflow session deleted")
	return nil
}

// ChatReply is the result of a chat turn
type ChatReply struct {
	Reply   string                   `json:"reply"`
	History []repository.ChatMessage `json:"history"`
}

// SendChatMessage sends a requirements chat message and appends both the
// message and the reply to the history.
func (s *WorkflowService) SendChatMessage(ctx context.Context, sessionID, text string) (*ChatReply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.InvalidInput("message", "message is required")
	}

	var reply *ChatReply
	var stage repository.Stage
	err := s.sessions.Do(sessionID, func(session *repository.WorkflowSession) error {
		history := make([]repository.ChatMessage, 0, len(session.ChatHistory)+2)
		history = append(history, session.ChatHistory...)
		history = append(history, repository.ChatMessage{Role: repository.ChatRoleUser, Text: text})

		turns := make([]client.ChatTurn, len(history))
		for i, m := range history {
			turns[i] = client.ChatTurn{Role: string(m.Role), Content: m.Text}
		}

		answer, err := s.generator.Chat(ctx, chatPrompt(session.CompanyProfile), turns, chatTemperature)
		if err != nil {
			return s.collaboratorFailure(sessionID, collaboratorTextGeneration, err)
		}

		// Commit
		history = append(history, repository.ChatMessage{Role: repository.ChatRoleAssistant, Text: answer})
		session.ChatHistory = history
		stage = session.CurrentStage

		reply = &ChatReply{Reply: answer, History: append([]repository.ChatMessage{}, history...)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", sessionID).
		Int("history_length", len(reply.History)).
		Msg("Chat message answered")
	s.record(ctx, sessionID, client.EventChatMessage, stage, stage, nil)

	return reply, nil
}

// GenerateRFQ generates the RFQ document from the requirements summary and
// moves the session to QUOTE_COLLECTION. The generated text is stored as
// returned, whether or not it is valid JSON.
func (s *WorkflowService) GenerateRFQ(ctx context.Context, sessionID, requirements string) (*repository.RFQArtifact, error) {
	if strings.TrimSpace(requirements) == "" {
		return nil, errors.InvalidInput("requirements", "please provide a summary of requirements")
	}

	var rfq *repository.RFQArtifact
	var before repository.Stage
	err := s.sessions.Do(sessionID, func(session *repository.WorkflowSession) error {
		content, err := s.generator.GenerateText(ctx, rfqSystemPrompt, rfqPrompt(requirements, session.CompanyProfile), rfqTemperature)
		if err != nil {
			return s.collaboratorFailure(sessionID, collaboratorTextGeneration, err)
		}

		before = session.CurrentStage
		session.RFQ = &repository.RFQArtifact{
			Requirements: requirements,
			Content:      content,
			GeneratedAt:  s.now(),
		}
		session.CurrentStage = repository.StageQuoteCollection

		copied := *session.RFQ
		rfq = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", sessionID).
		Int("content_length", len(rfq.Content)).
		Msg("RFQ generated")
	s.record(ctx, sessionID, client.EventRFQGenerated, before, repository.StageQuoteCollection, map[string]interface{}{
		"content_length": len(rfq.Content),
	})

	return rfq, nil
}

// ExtractQuotationRequest represents an extract quotation request
type ExtractQuotationRequest struct {
	VendorName string
	FileName   string
	File       io.Reader
}

// ExtractQuotation extracts one vendor quotation document and stores it under
// the vendor name, replacing any earlier quotation from the same vendor.
func (s *WorkflowService) ExtractQuotation(ctx context.Context, sessionID string, req *ExtractQuotationRequest) (*quotation.Record, error) {
	// Validate request
	if req == nil {
		return nil, errors.InvalidInput("request", "quotation request is required")
	}
	if strings.TrimSpace(req.VendorName) == "" {
		return nil, errors.InvalidInput("vendor_name", "vendor name is required")
	}
	if req.File == nil {
		return nil, errors.InvalidInput("file", "quotation file is required")
	}
	if req.FileName == "" {
		return nil, errors.InvalidInput("file", "file name is required")
	}

	var rec quotation.Record
	var stage repository.Stage
	var replaced bool
	err := s.sessions.Do(sessionID, func(session *repository.WorkflowSession) error {
		extracted, err := s.extractor.ExtractQuotation(ctx, req.File, req.FileName, req.VendorName)
		if err != nil {
			return s.collaboratorFailure(sessionID, collaboratorExtraction, err)
		}

		replaced = session.Quotations.Has(req.VendorName)
		session.Quotations.Put(req.VendorName, extracted)
		stage = session.CurrentStage
		rec = extracted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", sessionID).
		Str("vendor", req.VendorName).
		Str("file_name", req.FileName).
		Int("items", len(rec.Items)).
		Bool("replaced", replaced).
		Msg("Quotation extracted")
	s.record(ctx, sessionID, client.EventQuotationExtracted, stage, stage, map[string]interface{}{
		"vendor":    req.VendorName,
		"file_name": req.FileName,
		"items":     len(rec.Items),
		"replaced":  replaced,
	})

	return &rec, nil
}

// AdvanceToAnalysis moves the session from quote collection to vendor analysis
func (s *WorkflowService) AdvanceToAnalysis(ctx context.Context, sessionID string) (*repository.WorkflowSessionView, error) {
	var view *repository.WorkflowSessionView
	var before repository.Stage
	err := s.sessions.Do(sessionID, func(session *repository.WorkflowSession) error {
		if session.Quotations.Len() == 0 {
			return errors.PreconditionNotMet("please upload and extract at least one quotation before proceeding")
		}
		before = session.CurrentStage
		session.CurrentStage = repository.StageVendorAnalysis
		view = session.View()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", sessionID).
		Int("vendors", view.Quotations.Len()).
		Msg("Advanced to vendor analysis")
	s.record(ctx, sessionID, client.EventStageAdvanced, before, repository.StageVendorAnalysis, nil)

	return view, nil
}

// AnalyzeVendors produces the vendor recommendation with two generation
// calls: a full analysis of the current quotations, then a bilingual summary
// of the analysis text exactly as the first call returned it.
func (s *WorkflowService) AnalyzeVendors(ctx context.Context, sessionID string) (*repository.VendorRecommendation, error) {
	var rec *repository.VendorRecommendation
	var before repository.Stage
	var vendors int
	err := s.sessions.Do(sessionID, func(session *repository.WorkflowSession) error {
		if session.Quotations.Len() == 0 {
			return errors.PreconditionNotMet("please upload and extract quotations before analyzing vendors")
		}

		snapshot := session.Quotations.Clone()
		prompt, err := analysisPrompt(snapshot)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to build analysis prompt")
		}

		analysis, err := s.generator.GenerateText(ctx, analysisSystemPrompt, prompt, analysisTemperature)
		if err != nil {
			return s.collaboratorFailure(sessionID, collaboratorTextGeneration, err)
		}

		summary, err := s.generator.GenerateText(ctx, summarySystemPrompt, summaryPrompt(analysis), summaryTemperature)
		if err != nil {
			return s.collaboratorFailure(sessionID, collaboratorTextGeneration, err)
		}

		before = session.CurrentStage
		session.Recommendation = &repository.VendorRecommendation{Analysis: analysis, Summary: summary}
		session.CurrentStage = repository.StagePurchaseOrder
		vendors = snapshot.Len()

		copied := *session.Recommendation
		rec = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", sessionID).
		Int("vendors", vendors).
		Msg("Vendors analyzed")
	s.record(ctx, sessionID, client.EventVendorsAnalyzed, before, repository.StagePurchaseOrder, map[string]interface{}{
		"vendors": vendors,
	})

	return rec, nil
}

// GeneratePurchaseOrder generates the PO for the selected vendor and moves
// the session to EXPORT.
func (s *WorkflowService) GeneratePurchaseOrder(ctx context.Context, sessionID, vendor string) (*repository.PurchaseOrder, error) {
	if strings.TrimSpace(vendor) == "" {
		return nil, errors.InvalidInput("vendor", "selected vendor is required")
	}

	var po *repository.PurchaseOrder
	var before repository.Stage
	err := s.sessions.Do(sessionID, func(session *repository.WorkflowSession) error {
		// Validate preconditions
		if session.Recommendation == nil {
			return errors.PreconditionNotMet("please analyze vendors before creating a purchase order")
		}
		if !session.Quotations.Has(vendor) {
			return errors.PreconditionNotMet("vendor '" + vendor + "' has no extracted quotation")
		}

		prompt, err := purchaseOrderPrompt(session.RFQ, vendor, session.Recommendation, session.CompanyProfile)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to build purchase order prompt")
		}

		content, err := s.generator.GenerateText(ctx, poSystemPrompt, prompt, poTemperature)
		if err != nil {
			return s.collaboratorFailure(sessionID, collaboratorTextGeneration, err)
		}

		before = session.CurrentStage
		session.PurchaseOrder = &repository.PurchaseOrder{
			Vendor:      vendor,
			Content:     content,
			GeneratedAt: s.now(),
		}
		session.CurrentStage = repository.StageExport

		copied := *session.PurchaseOrder
		po = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", sessionID).
		Str("vendor", vendor).
		Msg("Purchase order generated")
	s.record(ctx, sessionID, client.EventPOGenerated, before, repository.StageExport, map[string]interface{}{
		"vendor": vendor,
	})

	return po, nil
}

// Navigate moves the stage cursor. Navigation is never blocked by missing
// artifacts; only the actions that produce artifacts check preconditions.
func (s *WorkflowService) Navigate(ctx context.Context, sessionID string, stage repository.Stage) (*repository.WorkflowSessionView, error) {
	if !stage.Valid() {
		return nil, errors.InvalidInput("stage", "stage must be between 1 and 5")
	}

	var view *repository.WorkflowSessionView
	err := s.sessions.Do(sessionID, func(session *repository.WorkflowSession) error {
		session.CurrentStage = stage
		view = session.View()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("session_id", sessionID).
		Str("stage", stage.String()).
		Msg("Stage selected")

	return view, nil
}

// UpdateCompanyProfile replaces the company profile. It has no effect on
// stage or artifacts.
func (s *WorkflowService) UpdateCompanyProfile(ctx context.Context, sessionID string, profile repository.CompanyProfile) (*repository.WorkflowSessionView, error) {
	if profile.RFQValidityDays < 0 {
		return nil, errors.InvalidInput("rfq_validity_days", "must not be negative")
	}

	var view *repository.WorkflowSessionView
	err := s.sessions.Do(sessionID, func(session *repository.WorkflowSession) error {
		session.CompanyProfile = profile
		view = session.View()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", sessionID).
		Str("company_name", profile.CompanyName).
		Msg("Company profile updated")
	s.record(ctx, sessionID, client.EventProfileUpdated, view.CurrentStage, view.CurrentStage, nil)

	return view, nil
}

// Reset discards every artifact and the chat history and returns the session
// to RFQ_DRAFT. The company profile is kept.
func (s *WorkflowService) Reset(ctx context.Context, sessionID string) (*repository.WorkflowSessionView, error) {
	var view *repository.WorkflowSessionView
	var before repository.Stage
	err := s.sessions.Do(sessionID, func(session *repository.WorkflowSession) error {
		before = session.CurrentStage
		session.Reset()
		view = session.View()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("session_id", sessionID).Msg("Workflow session reset")
	s.record(ctx, sessionID, client.EventSessionReset, before, repository.StageRFQDraft, nil)

	return view, nil
}

func (s *WorkflowService) collaboratorFailure(sessionID, collaborator string, err error) error {
	s.log.Warn().Err(err).
		Str("session_id", sessionID).
		Str("collaborator", collaborator).
		Msg("Collaborator call failed")
	return errors.CollaboratorFailure(collaborator, err)
}

// record appends an audit entry and publishes an event. Both are best effort.
func (s *WorkflowService) record(ctx context.Context, sessionID, action string, before, after repository.Stage, metadata map[string]interface{}) {
	if s.audit != nil {
		entry := &repository.WorkflowAuditEntry{
			SessionID:   sessionID,
			Action:      action,
			StageBefore: before.String(),
			StageAfter:  after.String(),
			Metadata:    metadata,
		}
		if err := s.audit.Append(ctx, entry); err != nil {
			s.log.Warn().Err(err).
				Str("session_id", sessionID).
				Str("action", action).
				Msg("Failed to append audit entry (non-fatal)")
		}
	}

	s.events.PublishWorkflowEvent(ctx, action, sessionID, after.String(), metadata)
}
