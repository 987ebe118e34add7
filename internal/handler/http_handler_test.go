package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pesio-ai/be-procurement-assistant/internal/handler"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/logger"
	"github.com/pesio-ai/be-procurement-assistant/internal/repository"
	"github.com/pesio-ai/be-procurement-assistant/internal/service"
)

var _ = Describe("HTTPHandler", func() {
	var (
		generator *stubGenerator
		webhook   *stubWebhook
		mux       *http.ServeMux
	)

	BeforeEach(func() {
		generator = &stubGenerator{reply: `{"project_description": "office chairs"}`}
		webhook = &stubWebhook{}

		sessions := repository.NewSessionRepository(repository.DefaultCompanyProfile())
		workflow := service.NewWorkflowService(sessions, generator, stubExtractor{}, nil, nil, logger.Nop())
		reports := service.NewReportService("", logger.Nop())
		exports := service.NewExportService(workflow, reports, webhook, nil, logger.Nop())

		mux = http.NewServeMux()
		handler.NewHTTPHandler(workflow, exports, reports, logger.Nop()).Register(mux)
	})

	do := func(method, target string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		switch b := body.(type) {
		case nil:
		case string:
			buf.WriteString(b)
		default:
			Expect(json.NewEncoder(&buf).Encode(b)).To(Succeed())
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(method, target, &buf))
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder) map[string]any {
		var out map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &out)).To(Succeed(), rec.Body.String())
		return out
	}

	errorCode := func(rec *httptest.ResponseRecorder) string {
		return decode(rec)["error"].(map[string]any)["code"].(string)
	}

	createSession := func() string {
		rec := do(http.MethodPost, "/api/v1/sessions", nil)
		Expect(rec.Code).To(Equal(http.StatusCreated))
		return decode(rec)["id"].(string)
	}

	upload := func(sessionID, vendor string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		Expect(mw.WriteField("session_id", sessionID)).To(Succeed())
		Expect(mw.WriteField("vendor_name", vendor)).To(Succeed())
		part, err := mw.CreateFormFile("file", vendor+".pdf")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("%PDF-1.4 quote"))
		Expect(err).NotTo(HaveOccurred())
		Expect(mw.Close()).To(Succeed())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/quotations", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	It("reports health", func() {
		rec := do(http.MethodGet, "/health", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(decode(rec)["status"]).To(Equal("healthy"))
	})

	Describe("sessions", func() {
		It("creates a session in RFQ_DRAFT", func() {
			id := createSession()

			rec := do(http.MethodGet, "/api/v1/sessions/get?session_id="+id, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode(rec)["current_stage"]).To(Equal("RFQ_DRAFT"))
		})

		It("rejects the wrong method", func() {
			rec := do(http.MethodGet, "/api/v1/sessions", nil)
			Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
		})

		It("requires a session id", func() {
			rec := do(http.MethodGet, "/api/v1/sessions/get", nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(errorCode(rec)).To(Equal("INVALID_INPUT"))
		})

		It("answers 404 for unknown sessions", func() {
			rec := do(http.MethodGet, "/api/v1/sessions/get?session_id=missing", nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(errorCode(rec)).To(Equal("NOT_FOUND"))
		})

		It("deletes a session", func() {
			id := createSession()
			Expect(do(http.MethodDelete, "/api/v1/sessions/delete?session_id="+id, nil).Code).To(Equal(http.StatusNoContent))
			Expect(do(http.MethodGet, "/api/v1/sessions/get?session_id="+id, nil).Code).To(Equal(http.StatusNotFound))
		})

		It("rejects a malformed body", func() {
			rec := do(http.MethodPost, "/api/v1/sessions/rfq", "{not json")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("workflow", func() {
		var id string

		BeforeEach(func() {
			id = createSession()
		})

		It("answers chat messages", func() {
			generator.reply = "How many chairs?"
			rec := do(http.MethodPost, "/api/v1/sessions/chat", map[string]string{"session_id": id, "message": "I need chairs"})
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode(rec)["reply"]).To(Equal("How many chairs?"))
		})

		It("maps collaborator failures to 502", func() {
			generator.err = errors.New("rate limited")
			rec := do(http.MethodPost, "/api/v1/sessions/rfq", map[string]string{"session_id": id, "requirements": "chairs"})
			Expect(rec.Code).To(Equal(http.StatusBadGateway))
			Expect(errorCode(rec)).To(Equal("COLLABORATOR_FAILURE"))
		})

		It("generates an RFQ and moves to QUOTE_COLLECTION", func() {
			rec := do(http.MethodPost, "/api/v1/sessions/rfq", map[string]string{"session_id": id, "requirements": "chairs"})
			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(decode(rec)["content"]).To(ContainSubstring("office chairs"))

			view := decode(do(http.MethodGet, "/api/v1/sessions/get?session_id="+id, nil))
			Expect(view["current_stage"]).To(Equal("QUOTE_COLLECTION"))
		})

		It("uploads quotations and compares them", func() {
			Expect(upload(id, "VendorA").Code).To(Equal(http.StatusCreated))

			rec := do(http.MethodGet, "/api/v1/sessions/comparison?session_id="+id, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"vendors":["VendorA"],"rows":[{"description":"Bolt","VendorA":10}]}`))
		})

		It("requires a vendor name on upload", func() {
			rec := upload(id, "")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(errorCode(rec)).To(Equal("INVALID_INPUT"))
		})

		It("refuses analysis without quotations", func() {
			rec := do(http.MethodPost, "/api/v1/sessions/analyze", map[string]string{"session_id": id})
			Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
			Expect(errorCode(rec)).To(Equal("PRECONDITION_NOT_MET"))
		})

		DescribeTable("navigates by index or name",
			func(stage any, want string) {
				rec := do(http.MethodPost, "/api/v1/sessions/navigate", map[string]any{"session_id": id, "stage": stage})
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(decode(rec)["current_stage"]).To(Equal(want))
			},
			Entry("index", 3, "VENDOR_ANALYSIS"),
			Entry("name", "purchase-order", "PURCHASE_ORDER"),
		)

		It("rejects unknown stages", func() {
			rec := do(http.MethodPost, "/api/v1/sessions/navigate", map[string]any{"session_id": id, "stage": 9})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("updates the company profile", func() {
			rec := do(http.MethodPut, "/api/v1/sessions/company-profile", map[string]any{
				"session_id": id,
				"profile":    map[string]any{"company_name": "Siam Widgets", "rfq_validity_days": 14},
			})
			Expect(rec.Code).To(Equal(http.StatusOK))
			profile := decode(rec)["company_profile"].(map[string]any)
			Expect(profile["company_name"]).To(Equal("Siam Widgets"))
		})

		It("downloads a document as text", func() {
			Expect(upload(id, "VendorA").Code).To(Equal(http.StatusCreated))

			rec := do(http.MethodGet, "/api/v1/sessions/documents?session_id="+id+"&kind=comparison&format=text", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(HavePrefix("text/plain"))
			Expect(rec.Header().Get("Content-Disposition")).To(ContainSubstring("comparison.txt"))
			Expect(rec.Body.String()).To(ContainSubstring("Vendor Quotation Comparison"))
		})

		It("refuses documents whose artifact is missing", func() {
			rec := do(http.MethodGet, "/api/v1/sessions/documents?session_id="+id+"&kind=rfq", nil)
			Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
		})

		It("exports and delivers to a webhook", func() {
			Expect(upload(id, "VendorA").Code).To(Equal(http.StatusCreated))

			rec := do(http.MethodGet, "/api/v1/sessions/export?session_id="+id, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			snapshot := decode(rec)
			Expect(snapshot).To(HaveKey("quotations"))
			Expect(snapshot["rfq"]).To(BeNil())

			rec = do(http.MethodPost, "/api/v1/sessions/webhook", map[string]string{"session_id": id, "url": "https://hooks.example.com/x"})
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode(rec)["delivered"]).To(BeTrue())
			Expect(webhook.urls).To(Equal([]string{"https://hooks.example.com/x"}))
		})

		It("resets the session", func() {
			Expect(upload(id, "VendorA").Code).To(Equal(http.StatusCreated))

			rec := do(http.MethodPost, "/api/v1/sessions/reset", map[string]string{"session_id": id})
			Expect(rec.Code).To(Equal(http.StatusOK))
			view := decode(rec)
			Expect(view["current_stage"]).To(Equal("RFQ_DRAFT"))
			Expect(view["quotations"]).To(BeEmpty())
		})
	})

	Describe("stateless reports", func() {
		It("renders a JSON document", func() {
			rec := do(http.MethodPost, "/api/v1/render?title=Procurement+Request&kind=RFQ", `{"company_info": {"company_name": "Siam Widgets"}}`)
			Expect(rec.Code).To(Equal(http.StatusOK))

			blocks := decode(rec)["blocks"].([]any)
			Expect(blocks).To(HaveLen(3))
			Expect(blocks[0].(map[string]any)["text"]).To(Equal("RFQ: Procurement Request"))
			Expect(blocks[2].(map[string]any)["type"]).To(Equal("key_value_table"))
		})

		It("renders text that is not JSON", func() {
			rec := do(http.MethodPost, "/api/v1/render?format=text&title=Notes", "line one\nline two")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("line one\nline two"))
		})

		It("compares quotations", func() {
			rec := do(http.MethodPost, "/api/v1/compare", `{"A": {"items": [{"description": "Bolt", "total_price": 10}]}, "B": {"items": []}}`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"vendors":["A","B"],"rows":[{"description":"Bolt","A":10,"B":"N/A"}]}`))
		})

		It("rejects quotations that are not an object", func() {
			rec := do(http.MethodPost, "/api/v1/compare", `[1, 2]`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("tests a webhook", func() {
			rec := do(http.MethodPost, "/api/v1/webhook/test", map[string]string{"url": "https://hooks.example.com/t"})
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(strings.Join(webhook.urls, ",")).To(Equal("https://hooks.example.com/t"))
		})
	})
})
