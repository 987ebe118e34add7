package service_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pesio-ai/be-procurement-assistant/internal/client"
	apperrors "github.com/pesio-ai/be-procurement-assistant/internal/pkg/errors"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/logger"
	"github.com/pesio-ai/be-procurement-assistant/internal/repository"
	"github.com/pesio-ai/be-procurement-assistant/internal/service"
)

const (
	vendorAQuote = `{"vendor_info": {"vendor_name": "Vendor A Ltd"}, "items": [{"description": "Bolt", "total_price": 10}]}`
	vendorBQuote = `{"items": [{"description": "Bolt", "unit_price": 12}, {"description": "Nut", "total_price": 3}]}`
)

var _ = Describe("WorkflowService", func() {
	var (
		ctx       context.Context
		generator *fakeGenerator
		extractor *fakeExtractor
		audit     *fakeAudit
		sessions  *repository.SessionRepository
		svc       *service.WorkflowService
		sessionID string
	)

	extract := func(vendor string) error {
		_, err := svc.ExtractQuotation(ctx, sessionID, &service.ExtractQuotationRequest{
			VendorName: vendor,
			FileName:   strings.ToLower(vendor) + ".pdf",
			File:       strings.NewReader("%PDF-1.4"),
		})
		return err
	}

	BeforeEach(func() {
		ctx = context.Background()
		generator = &fakeGenerator{}
		extractor = &fakeExtractor{
			records: map[string]string{"VendorA": vendorAQuote, "VendorB": vendorBQuote},
			failFor: map[string]error{"X": errors.New("API Error: 500 - upstream down")},
		}
		audit = &fakeAudit{}

		profile := repository.DefaultCompanyProfile()
		profile.CompanyName = "Siam Widgets"
		sessions = repository.NewSessionRepository(profile)

		svc = service.NewWorkflowService(sessions, generator, extractor, audit, nil, logger.Nop())
		sessionID = svc.CreateSession(ctx).ID
	})

	Describe("a new session", func() {
		It("starts at RFQ_DRAFT with no artifacts", func() {
			view, err := svc.GetSession(ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.CurrentStage).To(Equal(repository.StageRFQDraft))
			Expect(view.RFQ).To(BeNil())
			Expect(view.Quotations.Len()).To(BeZero())
			Expect(view.Recommendation).To(BeNil())
			Expect(view.PurchaseOrder).To(BeNil())
			Expect(view.ChatHistory).To(BeEmpty())
		})

		It("fails for unknown sessions", func() {
			_, err := svc.GenerateRFQ(ctx, "missing", "chairs")
			Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodeNotFound))
		})
	})

	Describe("SendChatMessage", func() {
		It("appends the message and the reply", func() {
			generator.replies = []any{"How many chairs?"}

			reply, err := svc.SendChatMessage(ctx, sessionID, "I need office chairs")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Reply).To(Equal("How many chairs?"))
			Expect(reply.History).To(HaveLen(2))
			Expect(generator.calls[0].System).To(HaveSuffix("You are working for Siam Widgets."))
			Expect(generator.chatCalls[0]).To(Equal([]client.ChatTurn{{Role: "user", Content: "I need office chairs"}}))
		})

		It("sends the full history on later turns", func() {
			generator.replies = []any{"How many?", "Noted."}
			_, _ = svc.SendChatMessage(ctx, sessionID, "chairs")
			_, err := svc.SendChatMessage(ctx, sessionID, "twenty")
			Expect(err).NotTo(HaveOccurred())
			Expect(generator.chatCalls[1]).To(HaveLen(3))
		})

		It("keeps the history unchanged when generation fails", func() {
			generator.replies = []any{errors.New("rate limited")}

			_, err := svc.SendChatMessage(ctx, sessionID, "chairs")
			Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodeCollaboratorFailure))
			Expect(err.Error()).To(ContainSubstring("rate limited"))

			view, _ := svc.GetSession(ctx, sessionID)
			Expect(view.ChatHistory).To(BeEmpty())
		})

		It("rejects empty messages", func() {
			_, err := svc.SendChatMessage(ctx, sessionID, "   ")
			Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodeInvalidInput))
			Expect(generator.calls).To(BeEmpty())
		})
	})

	Describe("GenerateRFQ", func() {
		It("stores the generated text verbatim and advances to QUOTE_COLLECTION", func() {
			generator.replies = []any{"not json at all"}

			rfq, err := svc.GenerateRFQ(ctx, sessionID, "20 ergonomic chairs")
			Expect(err).NotTo(HaveOccurred())
			Expect(rfq.Content).To(Equal("not json at all"))
			Expect(rfq.Requirements).To(Equal("20 ergonomic chairs"))
			Expect(rfq.GeneratedAt).NotTo(BeZero())

			call := generator.calls[0]
			Expect(call.Temperature).To(BeNumerically("~", 0.7, 1e-6))
			Expect(call.User).To(ContainSubstring("Company Name: Siam Widgets"))
			Expect(call.User).To(ContainSubstring("Address: Not specified"))
			Expect(call.User).To(ContainSubstring("Requirements: 20 ergonomic chairs"))

			view, _ := svc.GetSession(ctx, sessionID)
			Expect(view.CurrentStage).To(Equal(repository.StageQuoteCollection))
			Expect(audit.actions()).To(ContainElement(client.EventRFQGenerated))
		})

		It("requires a requirements summary", func() {
			_, err := svc.GenerateRFQ(ctx, sessionID, "")
			Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodeInvalidInput))

			view, _ := svc.GetSession(ctx, sessionID)
			Expect(view.CurrentStage).To(Equal(repository.StageRFQDraft))
		})

		It("leaves the session unchanged on collaborator failure", func() {
			generator.replies = []any{errors.New("timeout")}

			_, err := svc.GenerateRFQ(ctx, sessionID, "chairs")
			Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodeCollaboratorFailure))

			view, _ := svc.GetSession(ctx, sessionID)
			Expect(view.RFQ).To(BeNil())
			Expect(view.CurrentStage).To(Equal(repository.StageRFQDraft))
			Expect(audit.entries).To(BeEmpty())
		})
	})

	Describe("ExtractQuotation", func() {
		It("stores quotations in insertion order", func() {
			Expect(extract("VendorB")).To(Succeed())
			Expect(extract("VendorA")).To(Succeed())

			view, _ := svc.GetSession(ctx, sessionID)
			Expect(view.Quotations.Vendors()).To(Equal([]string{"VendorB", "VendorA"}))

			rec, _ := view.Quotations.Get("VendorA")
			Expect(rec.SourceFileName).To(Equal("vendora.pdf"))
		})

		It("overwrites a re-used vendor name", func() {
			Expect(extract("VendorA")).To(Succeed())
			extractor.records["VendorA"] = `{"items": [{"description": "Screw", "unit_price": 1}]}`
			Expect(extract("VendorA")).To(Succeed())

			view, _ := svc.GetSession(ctx, sessionID)
			Expect(view.Quotations.Len()).To(Equal(1))
			rec, _ := view.Quotations.Get("VendorA")
			Expect(rec.Items[0].Description.String()).To(Equal("Screw"))
		})

		It("treats differently spelled vendor names as distinct", func() {
			Expect(extract("VendorA")).To(Succeed())
			Expect(extract("vendora")).To(Succeed())

			view, _ := svc.GetSession(ctx, sessionID)
			Expect(view.Quotations.Len()).To(Equal(2))
		})

		It("isolates extraction failures", func() {
			Expect(extract("VendorA")).To(Succeed())
			before, _ := svc.GetSession(ctx, sessionID)

			err := extract("X")
			Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodeCollaboratorFailure))
			Expect(err.Error()).To(ContainSubstring("upstream down"))

			after, _ := svc.GetSession(ctx, sessionID)
			Expect(after.Quotations.Has("X")).To(BeFalse())
			Expect(after.Quotations.Vendors()).To(Equal([]string{"VendorA"}))
			beforeRec, _ := before.Quotations.Get("VendorA")
			afterRec, _ := after.Quotations.Get("VendorA")
			Expect(afterRec).To(Equal(beforeRec))
		})

		It("requires a vendor name", func() {
			err := extract("")
			Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodeInvalidInput))
		})

		It("rejects a missing request", func() {
			rec, err := svc.ExtractQuotation(ctx, sessionID, nil)
			Expect(rec).To(BeNil())
			Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodeInvalidInput))
		})
	})

	Describe("AdvanceToAnalysis", func() {
		It("requires at least one quotation", func() {
			_, err := svc.AdvanceToAnalysis(ctx, sessionID)
			Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodePreconditionNotMet))
		})

		It("moves to VENDOR_ANALYSIS", func() {
			Expect(extract("VendorA")).To(Succeed())
			view, err := svc.AdvanceToAnalysis(ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.CurrentStage).To(Equal(repository.StageVendorAnalysis))
		})
	})

	Describe("AnalyzeVendors", func() {
		It("fails without quotations and produces no recommendation", func() {
			_, err := svc.AnalyzeVendors(ctx, sessionID)
			Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodePreconditionNotMet))
			Expect(generator.calls).To(BeEmpty())

			view, _ := svc.GetSession(ctx, sessionID)
			Expect(view.Recommendation).To(BeNil())
		})

		It("chains the summary call on the raw analysis text", func() {
			Expect(extract("VendorA")).To(Succeed())
			Expect(extract("VendorB")).To(Succeed())
			generator.replies = []any{"```json\n{\"final_recommendation\": \"VendorA\"}\n```", "VendorA / ผู้ขาย A"}

			rec, err := svc.AnalyzeVendors(ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Summary).To(Equal("VendorA / ผู้ขาย A"))

			Expect(generator.calls).To(HaveLen(2))
			Expect(generator.calls[0].User).To(ContainSubstring(`"VendorA"`))
			Expect(strings.Index(generator.calls[0].User, `"VendorA"`)).To(BeNumerically("<", strings.Index(generator.calls[0].User, `"VendorB"`)))
			Expect(generator.calls[1].User).To(ContainSubstring("```json\n{\"final_recommendation\": \"VendorA\"}\n```"))
			Expect(generator.calls[1].Temperature).To(BeNumerically("~", 0.1, 1e-6))

			view, _ := svc.GetSession(ctx, sessionID)
			Expect(view.CurrentStage).To(Equal(repository.StagePurchaseOrder))
		})

		It("stores nothing when the summary call fails", func() {
			Expect(extract("VendorA")).To(Succeed())
			generator.replies = []any{"{}", errors.New("quota exceeded")}

			_, err := svc.AnalyzeVendors(ctx, sessionID)
			Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodeCollaboratorFailure))

			view, _ := svc.GetSession(ctx, sessionID)
			Expect(view.Recommendation).To(BeNil())
		})
	})

	Describe("GeneratePurchaseOrder", func() {
		analyzed := func() {
			Expect(extract("VendorA")).To(Succeed())
			generator.replies = []any{"{}", "VendorA"}
			_, err := svc.AnalyzeVendors(ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())
		}

		It("requires a recommendation", func() {
			Expect(extract("VendorA")).To(Succeed())
			_, err := svc.GeneratePurchaseOrder(ctx, sessionID, "VendorA")
			Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodePreconditionNotMet))
		})

		It("requires the vendor to have a quotation", func() {
			analyzed()
			_, err := svc.GeneratePurchaseOrder(ctx, sessionID, "Nobody")
			Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodePreconditionNotMet))

			view, _ := svc.GetSession(ctx, sessionID)
			Expect(view.PurchaseOrder).To(BeNil())
		})

		It("generates the purchase order and moves to EXPORT", func() {
			analyzed()
			generator.replies = []any{`{"po_number": "PO-1"}`}

			po, err := svc.GeneratePurchaseOrder(ctx, sessionID, "VendorA")
			Expect(err).NotTo(HaveOccurred())
			Expect(po.Vendor).To(Equal("VendorA"))
			Expect(po.Content).To(Equal(`{"po_number": "PO-1"}`))

			last := generator.calls[len(generator.calls)-1]
			Expect(last.User).To(ContainSubstring("Selected Vendor: VendorA"))
			Expect(last.Temperature).To(BeNumerically("~", 0.2, 1e-6))

			view, _ := svc.GetSession(ctx, sessionID)
			Expect(view.CurrentStage).To(Equal(repository.StageExport))
		})
	})

	Describe("Navigate", func() {
		It("moves to any stage regardless of artifacts", func() {
			view, err := svc.Navigate(ctx, sessionID, repository.StageExport)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.CurrentStage).To(Equal(repository.StageExport))
			Expect(view.PurchaseOrder).To(BeNil())
		})

		It("keeps artifacts when moving backwards", func() {
			Expect(extract("VendorA")).To(Succeed())
			view, err := svc.Navigate(ctx, sessionID, repository.StageRFQDraft)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Quotations.Len()).To(Equal(1))
		})

		It("rejects invalid stages", func() {
			_, err := svc.Navigate(ctx, sessionID, repository.Stage(7))
			Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodeInvalidInput))
		})
	})

	Describe("Reset", func() {
		It("clears every artifact but keeps the company profile", func() {
			generator.replies = []any{"hi", "{}", "{}", "summary", "{}"}
			_, _ = svc.SendChatMessage(ctx, sessionID, "hello")
			_, _ = svc.GenerateRFQ(ctx, sessionID, "chairs")
			Expect(extract("VendorA")).To(Succeed())
			_, _ = svc.AnalyzeVendors(ctx, sessionID)
			_, err := svc.GeneratePurchaseOrder(ctx, sessionID, "VendorA")
			Expect(err).NotTo(HaveOccurred())

			view, err := svc.Reset(ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.CurrentStage).To(Equal(repository.StageRFQDraft))
			Expect(view.RFQ).To(BeNil())
			Expect(view.Quotations.Len()).To(BeZero())
			Expect(view.Recommendation).To(BeNil())
			Expect(view.PurchaseOrder).To(BeNil())
			Expect(view.ChatHistory).To(BeEmpty())
			Expect(view.CompanyProfile.CompanyName).To(Equal("Siam Widgets"))
		})
	})

	Describe("UpdateCompanyProfile", func() {
		It("replaces the profile without touching the stage", func() {
			Expect(extract("VendorA")).To(Succeed())
			_, _ = svc.AdvanceToAnalysis(ctx, sessionID)

			profile := repository.DefaultCompanyProfile()
			profile.CompanyName = "Bangkok Parts"
			view, err := svc.UpdateCompanyProfile(ctx, sessionID, profile)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.CompanyProfile.CompanyName).To(Equal("Bangkok Parts"))
			Expect(view.CurrentStage).To(Equal(repository.StageVendorAnalysis))
		})
	})

	Describe("audit", func() {
		It("never changes the action outcome when the audit log fails", func() {
			audit.err = errors.New("database unavailable")
			generator.replies = []any{"{}"}

			_, err := svc.GenerateRFQ(ctx, sessionID, "chairs")
			Expect(err).NotTo(HaveOccurred())
			Expect(audit.entries).To(HaveLen(1))
			Expect(audit.entries[0].StageBefore).To(Equal("RFQ_DRAFT"))
			Expect(audit.entries[0].StageAfter).To(Equal("QUOTE_COLLECTION"))
		})
	})
})
