package handler

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pesio-ai/be-procurement-assistant/internal/document"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/errors"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/logger"
	"github.com/pesio-ai/be-procurement-assistant/internal/quotation"
	"github.com/pesio-ai/be-procurement-assistant/internal/repository"
	"github.com/pesio-ai/be-procurement-assistant/internal/service"
)

const (
	maxUploadSize   = 32 << 20
	maxDocumentSize = 8 << 20
)

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	workflow *service.WorkflowService
	exports  *service.ExportService
	reports  *service.ReportService
	log      *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(
	workflow *service.WorkflowService,
	exports *service.ExportService,
	reports *service.ReportService,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		workflow: workflow,
		exports:  exports,
		reports:  reports,
		log:      log,
	}
}

// Register adds every route to mux
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.Health)

	// Session routes
	mux.HandleFunc("/api/v1/sessions", h.CreateSession)
	mux.HandleFunc("/api/v1/sessions/get", h.GetSession)
	mux.HandleFunc("/api/v1/sessions/delete", h.DeleteSession)
	mux.HandleFunc("/api/v1/sessions/chat", h.SendChatMessage)
	mux.HandleFunc("/api/v1/sessions/rfq", h.GenerateRFQ)
	mux.HandleFunc("/api/v1/sessions/quotations", h.ExtractQuotation)
	mux.HandleFunc("/api/v1/sessions/advance", h.AdvanceToAnalysis)
	mux.HandleFunc("/api/v1/sessions/analyze", h.AnalyzeVendors)
	mux.HandleFunc("/api/v1/sessions/purchase-order", h.GeneratePurchaseOrder)
	mux.HandleFunc("/api/v1/sessions/navigate", h.Navigate)
	mux.HandleFunc("/api/v1/sessions/company-profile", h.UpdateCompanyProfile)
	mux.HandleFunc("/api/v1/sessions/reset", h.Reset)

	// Export routes
	mux.HandleFunc("/api/v1/sessions/export", h.Export)
	mux.HandleFunc("/api/v1/sessions/webhook", h.DeliverWebhook)
	mux.HandleFunc("/api/v1/sessions/documents", h.DownloadDocument)
	mux.HandleFunc("/api/v1/sessions/comparison", h.Comparison)
	mux.HandleFunc("/api/v1/webhook/test", h.TestWebhook)

	// Stateless report routes
	mux.HandleFunc("/api/v1/render", h.RenderDocument)
	mux.HandleFunc("/api/v1/compare", h.CompareQuotations)
}

// Health handles health check requests
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ── Sessions ────────────────────────────────────────────────────────────────

// CreateSession handles create session HTTP requests
func (h *HTTPHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	writeJSON(w, http.StatusCreated, h.workflow.CreateSession(r.Context()))
}

// GetSession handles get session HTTP requests
func (h *HTTPHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	view, err := h.workflow.GetSession(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteSession handles delete session HTTP requests
func (h *HTTPHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodDelete) {
		return
	}
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	if err := h.workflow.DeleteSession(r.Context(), sessionID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendChatMessage handles requirements chat HTTP requests
func (h *HTTPHandler) SendChatMessage(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	reply, err := h.workflow.SendChatMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// GenerateRFQ handles generate RFQ HTTP requests
func (h *HTTPHandler) GenerateRFQ(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req struct {
		SessionID    string `json:"session_id"`
		Requirements string `json:"requirements"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	rfq, err := h.workflow.GenerateRFQ(r.Context(), req.SessionID, req.Requirements)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rfq)
}

// ExtractQuotation handles quotation upload HTTP requests. The request is
// multipart with session_id, vendor_name and file parts.
func (h *HTTPHandler) ExtractQuotation(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.writeError(w, r, errors.InvalidInput("file", "request must be multipart/form-data with a file"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, errors.InvalidInput("file", "quotation file is required"))
		return
	}
	defer file.Close()

	rec, err := h.workflow.ExtractQuotation(r.Context(), r.FormValue("session_id"), &service.ExtractQuotationRequest{
		VendorName: r.FormValue("vendor_name"),
		FileName:   header.Filename,
		File:       file,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// AdvanceToAnalysis handles advance HTTP requests
func (h *HTTPHandler) AdvanceToAnalysis(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req sessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.workflow.AdvanceToAnalysis(r.Context(), req.SessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// AnalyzeVendors handles vendor analysis HTTP requests
func (h *HTTPHandler) AnalyzeVendors(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req sessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.workflow.AnalyzeVendors(r.Context(), req.SessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GeneratePurchaseOrder handles purchase order HTTP requests
func (h *HTTPHandler) GeneratePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req struct {
		SessionID string `json:"session_id"`
		Vendor    string `json:"vendor"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	po, err := h.workflow.GeneratePurchaseOrder(r.Context(), req.SessionID, req.Vendor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, po)
}

// Navigate handles stage navigation HTTP requests. stage is an index 1..5
// or a stage name.
func (h *HTTPHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req struct {
		SessionID string          `json:"session_id"`
		Stage     json.RawMessage `json:"stage"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	stage, err := repository.ParseStage(strings.Trim(string(req.Stage), `"`))
	if err != nil {
		h.writeError(w, r, errors.InvalidInput("stage", err.Error()))
		return
	}

	view, err := h.workflow.Navigate(r.Context(), req.SessionID, stage)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateCompanyProfile handles company profile HTTP requests
func (h *HTTPHandler) UpdateCompanyProfile(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPut) {
		return
	}
	var req struct {
		SessionID string                    `json:"session_id"`
		Profile   repository.CompanyProfile `json:"profile"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.workflow.UpdateCompanyProfile(r.Context(), req.SessionID, req.Profile)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Reset handles session reset HTTP requests
func (h *HTTPHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req sessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.workflow.Reset(r.Context(), req.SessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ── Export ──────────────────────────────────────────────────────────────────

// Export handles export HTTP requests
func (h *HTTPHandler) Export(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	snapshot, err := h.exports.Export(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="procurement_data.json"`)
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// DeliverWebhook handles webhook delivery HTTP requests. A failed delivery
// still answers 200 with delivered=false.
func (h *HTTPHandler) DeliverWebhook(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req struct {
		SessionID string `json:"session_id"`
		URL       string `json:"url"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	outcome, err := h.exports.DeliverWebhook(r.Context(), req.SessionID, req.URL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// TestWebhook handles webhook test HTTP requests
func (h *HTTPHandler) TestWebhook(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	outcome, err := h.exports.TestWebhook(r.Context(), req.URL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// DownloadDocument handles report download HTTP requests
func (h *HTTPHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	kind, err := service.ParseDocumentKind(r.URL.Query().Get("kind"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	format, err := service.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	blocks, err := h.exports.DocumentBlocks(r.Context(), sessionID, kind)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, kind, format.Extension()))
	if err := h.reports.Write(w, blocks, format); err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to stream document")
	}
}

// Comparison handles comparison matrix HTTP requests
func (h *HTTPHandler) Comparison(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	doc, err := h.exports.ComparisonDocument(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ── Stateless reports ───────────────────────────────────────────────────────

// RenderDocument renders the request body into report blocks. A body that is
// not JSON is rendered as plain text.
func (h *HTTPHandler) RenderDocument(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	format, err := service.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize))
	if err != nil {
		h.writeError(w, r, errors.InvalidInput("body", "failed to read request body"))
		return
	}

	doc, err := document.Parse(body)
	if err != nil {
		doc = document.StringValue(string(body))
	}

	q := r.URL.Query()
	blocks := h.reports.RenderDocument(doc, q.Get("title"), q.Get("kind"))

	w.Header().Set("Content-Type", format.ContentType())
	if err := h.reports.Write(w, blocks, format); err != nil {
		h.log.Error().Err(err).Msg("Failed to stream rendered document")
	}
}

// CompareQuotations builds a comparison matrix from a JSON object of
// vendor -> quotation in the request body.
func (h *HTTPHandler) CompareQuotations(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	format := r.URL.Query().Get("format")

	quotes := &quotation.Set{}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxDocumentSize)).Decode(quotes); err != nil {
		h.writeError(w, r, errors.InvalidInput("body", "quotations must be a JSON object of vendor to quotation"))
		return
	}

	matrix := h.reports.CompareQuotations(quotes)
	if format == "" {
		writeJSON(w, http.StatusOK, matrix.Document())
		return
	}

	f, err := service.ParseFormat(format)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	if err := h.reports.Write(w, matrix.Blocks(), f); err != nil {
		h.log.Error().Err(err).Msg("Failed to stream comparison")
	}
}

// ── Helpers ─────────────────────────────────────────────────────────────────

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (h *HTTPHandler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("session_id")
	if id == "" {
		h.writeError(w, r, errors.InvalidInput("session_id", "session ID is required"))
		return "", false
	}
	return id, true
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxDocumentSize)).Decode(v); err != nil {
		h.writeError(w, r, errors.InvalidInput("body", "invalid request body"))
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.New(errors.ErrCodeInternal, "internal error")
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    string(appErr.Code),
			"message": appErr.Error(),
			"field":   appErr.Field,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
