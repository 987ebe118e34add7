package repository

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pesio-ai/be-procurement-assistant/internal/quotation"
)

// ── Domain types for the procurement workflow ───────────────────────────────

// Stage is a step of the procurement workflow.
type Stage int

const (
	StageRFQDraft Stage = iota + 1
	StageQuoteCollection
	StageVendorAnalysis
	StagePurchaseOrder
	StageExport
)

var stageNames = map[Stage]string{
	StageRFQDraft:        "RFQ_DRAFT",
	StageQuoteCollection: "QUOTE_COLLECTION",
	StageVendorAnalysis:  "VENDOR_ANALYSIS",
	StagePurchaseOrder:   "PURCHASE_ORDER",
	StageExport:          "EXPORT",
}

// Stages lists every stage in workflow order.
var Stages = []Stage{StageRFQDraft, StageQuoteCollection, StageVendorAnalysis, StagePurchaseOrder, StageExport}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Valid reports whether s is one of the five workflow stages.
func (s Stage) Valid() bool {
	return s >= StageRFQDraft && s <= StageExport
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid stage %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText accepts anything ParseStage accepts.
func (s *Stage) UnmarshalText(b []byte) error {
	stage, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = stage
	return nil
}

// ParseStage accepts a 1-based stage index ("3") or a stage name
// ("vendor_analysis", case-insensitive).
func ParseStage(raw string) (Stage, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if s := Stage(n); s.Valid() {
			return s, nil
		}
		return 0, fmt.Errorf("stage index %d out of range 1..%d", n, len(Stages))
	}
	upper := strings.ToUpper(strings.ReplaceAll(raw, "-", "_"))
	for s, name := range stageNames {
		if name == upper {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", raw)
}

// CompanyProfile is the buyer's company information used in prompts.
type CompanyProfile struct {
	CompanyName             string `json:"company_name" yaml:"company_name"`
	CompanyAddress          string `json:"company_address" yaml:"company_address"`
	CompanyContact          string `json:"company_contact" yaml:"company_contact"`
	CompanyPhone            string `json:"company_phone" yaml:"company_phone"`
	RFQValidityDays         int    `json:"rfq_validity_days" yaml:"rfq_validity_days"`
	DefaultDeliveryLocation string `json:"default_delivery_location" yaml:"default_delivery_location"`
	DefaultPaymentTerms     string `json:"default_payment_terms" yaml:"default_payment_terms"`
}

// DefaultCompanyProfile returns the profile a new session starts with.
func DefaultCompanyProfile() CompanyProfile {
	return CompanyProfile{
		RFQValidityDays:     30,
		DefaultPaymentTerms: "Net 30",
	}
}

// ChatRole is the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of the requirements chat.
type ChatMessage struct {
	Role ChatRole `json:"role"`
	Text string   `json:"content"`
}

// RFQArtifact is the output of the RFQ_DRAFT stage. Content is the generated
// text as returned and may or may not be valid JSON.
type RFQArtifact struct {
	Requirements string    `json:"requirements"`
	Content      string    `json:"content"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// VendorRecommendation is the output of the VENDOR_ANALYSIS stage.
type VendorRecommendation struct {
	Analysis string `json:"analysis"`
	Summary  string `json:"summary"`
}

// PurchaseOrder is the output of the PURCHASE_ORDER stage.
type PurchaseOrder struct {
	Vendor      string    `json:"vendor"`
	Content     string    `json:"content"`
	GeneratedAt time.Time `json:"generated_at"`
}

// WorkflowSession is the root aggregate of one user's procurement run. All
// access goes through SessionRepository.Do, which holds the session lock.
type WorkflowSession struct {
	ID             string
	CurrentStage   Stage
	CompanyProfile CompanyProfile
	ChatHistory    []ChatMessage
	RFQ            *RFQArtifact
	Quotations     *quotation.Set
	Recommendation *VendorRecommendation
	PurchaseOrder  *PurchaseOrder
	CreatedAt      time.Time
	UpdatedAt      time.Time

	mu sync.Mutex
}

// NewWorkflowSession creates a session at the first stage.
func NewWorkflowSession(id string, profile CompanyProfile) *WorkflowSession {
	now := time.Now().UTC()
	return &WorkflowSession{
		ID:             id,
		CurrentStage:   StageRFQDraft,
		CompanyProfile: profile,
		Quotations:     &quotation.Set{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Reset discards every artifact and the chat history and returns to the
// first stage. The company profile is kept.
func (s *WorkflowSession) Reset() {
	s.CurrentStage = StageRFQDraft
	s.ChatHistory = nil
	s.RFQ = nil
	s.Quotations = &quotation.Set{}
	s.Recommendation = nil
	s.PurchaseOrder = nil
	s.UpdatedAt = time.Now().UTC()
}

// WorkflowSessionView is a read-only copy of a session safe to hand out
// after the lock is released.
type WorkflowSessionView struct {
	ID             string                `json:"id"`
	CurrentStage   Stage                 `json:"current_stage"`
	CompanyProfile CompanyProfile        `json:"company_profile"`
	ChatHistory    []ChatMessage         `json:"chat_history"`
	RFQ            *RFQArtifact          `json:"rfq,omitempty"`
	Quotations     *quotation.Set        `json:"quotations"`
	Recommendation *VendorRecommendation `json:"vendor_recommendation,omitempty"`
	PurchaseOrder  *PurchaseOrder        `json:"purchase_order,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// View copies the session. Artifacts are copied so later actions never
// mutate a view already returned.
func (s *WorkflowSession) View() *WorkflowSessionView {
	v := &WorkflowSessionView{
		ID:             s.ID,
		CurrentStage:   s.CurrentStage,
		CompanyProfile: s.CompanyProfile,
		ChatHistory:    append([]ChatMessage{}, s.ChatHistory...),
		Quotations:     s.Quotations.Clone(),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	if s.RFQ != nil {
		rfq := *s.RFQ
		v.RFQ = &rfq
	}
	if s.Recommendation != nil {
		rec := *s.Recommendation
		v.Recommendation = &rec
	}
	if s.PurchaseOrder != nil {
		po := *s.PurchaseOrder
		v.PurchaseOrder = &po
	}
	return v
}

// WorkflowAuditEntry is one immutable record in the workflow audit log.
type WorkflowAuditEntry struct {
	ID          string
	SessionID   string
	Action      string // chat | rfq_generated | quotation_extracted | ...
	StageBefore string
	StageAfter  string
	PerformedAt time.Time
	Metadata    map[string]interface{} // arbitrary JSON context
}
