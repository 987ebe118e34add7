package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pesio-ai/be-procurement-assistant/internal/client"
	"github.com/pesio-ai/be-procurement-assistant/internal/comparison"
	apperrors "github.com/pesio-ai/be-procurement-assistant/internal/pkg/errors"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/logger"
	"github.com/pesio-ai/be-procurement-assistant/internal/report"
	"github.com/pesio-ai/be-procurement-assistant/internal/repository"
	"github.com/pesio-ai/be-procurement-assistant/internal/service"
)

var _ = Describe("ExportService", func() {
	var (
		ctx       context.Context
		generator *fakeGenerator
		webhook   *fakeWebhook
		workflow  *service.WorkflowService
		exporter  *service.ExportService
		sessionID string
	)

	extract := func(vendor string) {
		_, err := workflow.ExtractQuotation(ctx, sessionID, &service.ExtractQuotationRequest{
			VendorName: vendor,
			FileName:   vendor + ".pdf",
			File:       strings.NewReader("x"),
		})
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()
		generator = &fakeGenerator{}
		webhook = &fakeWebhook{outcome: client.DeliveryOutcome{Delivered: true, StatusCode: 200}}
		extractor := &fakeExtractor{records: map[string]string{"VendorA": vendorAQuote, "VendorB": vendorBQuote}}

		sessions := repository.NewSessionRepository(repository.DefaultCompanyProfile())
		workflow = service.NewWorkflowService(sessions, generator, extractor, nil, nil, logger.Nop())
		reports := service.NewReportService("", logger.Nop())
		exporter = service.NewExportService(workflow, reports, webhook, nil, logger.Nop())
		sessionID = workflow.CreateSession(ctx).ID
	})

	Describe("Export", func() {
		It("snapshots every artifact", func() {
			generator.replies = []any{`{"project_description": "chairs"}`}
			_, err := workflow.GenerateRFQ(ctx, sessionID, "chairs")
			Expect(err).NotTo(HaveOccurred())
			extract("VendorA")

			snapshot, err := exporter.Export(ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(snapshot.RFQ.Content).To(ContainSubstring("project_description"))
			Expect(snapshot.Quotations.Vendors()).To(Equal([]string{"VendorA"}))
			Expect(snapshot.Analysis).To(BeNil())
			Expect(snapshot.ExportedAt).NotTo(BeZero())

			data, err := json.Marshal(snapshot)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"quotations":{"VendorA":`))
		})

		It("is not affected by later actions", func() {
			extract("VendorA")
			snapshot, err := exporter.Export(ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())

			extract("VendorB")
			Expect(snapshot.Quotations.Len()).To(Equal(1))
		})
	})

	Describe("webhooks", func() {
		It("delivers the export snapshot", func() {
			extract("VendorA")

			outcome, err := exporter.DeliverWebhook(ctx, sessionID, "https://hooks.example.com/p")
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Delivered).To(BeTrue())
			Expect(webhook.urls).To(Equal([]string{"https://hooks.example.com/p"}))
			Expect(webhook.payloads[0]).To(BeAssignableToTypeOf(&service.ExportSnapshot{}))
		})

		It("reports a failed delivery in the outcome", func() {
			webhook.outcome = client.DeliveryOutcome{StatusCode: 500, Error: "Failed to send data: 500"}

			outcome, err := exporter.DeliverWebhook(ctx, sessionID, "https://hooks.example.com/p")
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Delivered).To(BeFalse())
			Expect(outcome.StatusCode).To(Equal(500))
		})

		It("requires a URL", func() {
			_, err := exporter.DeliverWebhook(ctx, sessionID, " ")
			Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodeInvalidInput))
			_, err = exporter.TestWebhook(ctx, "")
			Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodeInvalidInput))
			Expect(webhook.payloads).To(BeEmpty())
		})

		It("sends the test payload", func() {
			_, err := exporter.TestWebhook(ctx, "https://hooks.example.com/t")
			Expect(err).NotTo(HaveOccurred())

			payload := webhook.payloads[0].(*service.WebhookTestPayload)
			Expect(payload.Test).To(BeTrue())
			Expect(payload.Message).To(Equal("Webhook test successful!"))
		})
	})

	Describe("DocumentBlocks", func() {
		It("requires the artifact to exist", func() {
			for _, kind := range []service.DocumentKind{service.DocumentRFQ, service.DocumentAnalysis, service.DocumentPurchaseOrder, service.DocumentComparison} {
				_, err := exporter.DocumentBlocks(ctx, sessionID, kind)
				Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodePreconditionNotMet), string(kind))
			}
		})

		It("renders an RFQ that is not JSON as plain content", func() {
			generator.replies = []any{"Dear vendor,\nplease quote."}
			_, err := workflow.GenerateRFQ(ctx, sessionID, "chairs")
			Expect(err).NotTo(HaveOccurred())

			blocks, err := exporter.DocumentBlocks(ctx, sessionID, service.DocumentRFQ)
			Expect(err).NotTo(HaveOccurred())
			Expect(blocks).To(HaveLen(3))
			Expect(blocks[0]).To(Equal(&report.Heading{Level: 1, Text: "RFQ: Procurement Request"}))
			Expect(blocks[1]).To(Equal(&report.Heading{Level: 2, Text: report.ContentHeading}))
			Expect(blocks[2]).To(Equal(&report.Paragraph{Text: "Dear vendor," + report.LineBreak + "please quote."}))
		})

		It("builds the comparison table", func() {
			extract("VendorA")
			extract("VendorB")

			blocks, err := exporter.DocumentBlocks(ctx, sessionID, service.DocumentComparison)
			Expect(err).NotTo(HaveOccurred())
			table := blocks[1].(*report.ListTable)
			Expect(table.Rows).To(Equal([][]string{
				{"Bolt", "10", "12"},
				{"Nut", comparison.NotAvailable, "3"},
			}))
		})

		It("titles the purchase order with the vendor", func() {
			extract("VendorA")
			generator.replies = []any{"{}", "VendorA", `{"po_number": "PO-7"}`}
			_, err := workflow.AnalyzeVendors(ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())
			_, err = workflow.GeneratePurchaseOrder(ctx, sessionID, "VendorA")
			Expect(err).NotTo(HaveOccurred())

			blocks, err := exporter.DocumentBlocks(ctx, sessionID, service.DocumentPurchaseOrder)
			Expect(err).NotTo(HaveOccurred())
			Expect(blocks[0]).To(Equal(&report.Heading{Level: 1, Text: "Purchase Order: PO for VendorA"}))
		})
	})

	Describe("WriteDocument", func() {
		BeforeEach(func() {
			extract("VendorA")
		})

		It("writes JSON blocks", func() {
			var buf bytes.Buffer
			Expect(exporter.WriteDocument(ctx, sessionID, service.DocumentComparison, service.FormatJSON, &buf)).To(Succeed())
			Expect(buf.String()).To(ContainSubstring(`"type":"list_table"`))
		})

		It("writes text", func() {
			var buf bytes.Buffer
			Expect(exporter.WriteDocument(ctx, sessionID, service.DocumentComparison, service.FormatText, &buf)).To(Succeed())
			Expect(buf.String()).To(HavePrefix(comparison.Title))
		})

		It("writes PDF", func() {
			var buf bytes.Buffer
			Expect(exporter.WriteDocument(ctx, sessionID, service.DocumentComparison, service.FormatPDF, &buf)).To(Succeed())
			Expect(buf.String()).To(HavePrefix("%PDF-"))
		})
	})
})

var _ = Describe("ParseFormat and ParseDocumentKind", func() {
	DescribeTable("formats",
		func(raw string, want service.Format) {
			got, err := service.ParseFormat(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("empty", "", service.FormatJSON),
		Entry("pdf", "PDF", service.FormatPDF),
		Entry("txt alias", "txt", service.FormatText),
	)

	It("rejects unknown values", func() {
		_, err := service.ParseFormat("docx")
		Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodeInvalidInput))
		_, err = service.ParseDocumentKind("invoice")
		Expect(apperrors.CodeOf(err)).To(Equal(apperrors.ErrCodeInvalidInput))
	})

	It("accepts the po alias", func() {
		kind, err := service.ParseDocumentKind("po")
		Expect(err).NotTo(HaveOccurred())
		Expect(kind).To(Equal(service.DocumentPurchaseOrder))
	})
})
