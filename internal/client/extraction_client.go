package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/pesio-ai/be-procurement-assistant/internal/document"
	"github.com/pesio-ai/be-procurement-assistant/internal/quotation"
)

// DefaultExtractionURL is the AgentQL document query endpoint
const DefaultExtractionURL = "https://api.agentql.com/v1/query-document"

// quotationQuery asks the extraction service for the quotation record shape
const quotationQuery = `{
    vendor_info { vendor_name contact_info address }
    quote_details { quote_number date valid_until }
    items[] { description quantity unit_price total_price specifications }
    totals { subtotal tax shipping total }
    terms { payment_terms delivery_time warranty }
}`

// ExtractionClient is the document extraction collaborator (AgentQL REST API)
type ExtractionClient struct {
	client *resty.Client
	url    string
	apiKey string
}

// NewExtractionClient creates a new extraction client. Every call is bounded by timeout.
func NewExtractionClient(url, apiKey string, timeout time.Duration) *ExtractionClient {
	if url == "" {
		url = DefaultExtractionURL
	}
	return &ExtractionClient{
		client: resty.New().SetTimeout(timeout),
		url:    url,
		apiKey: apiKey,
	}
}

// ExtractQuotation uploads a quotation document and returns the extracted
// record stamped with vendorName and fileName.
func (c *ExtractionClient) ExtractQuotation(ctx context.Context, file io.Reader, fileName, vendorName string) (quotation.Record, error) {
	if c.apiKey == "" {
		return quotation.Record{}, fmt.Errorf("AgentQL API key is not configured")
	}

	body, err := json.Marshal(extractionRequest{
		Query:  quotationQuery,
		Params: extractionParams{Mode: "standard"},
	})
	if err != nil {
		return quotation.Record{}, fmt.Errorf("failed to encode extraction request: %w", err)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-API-Key", c.apiKey).
		SetFileReader("file", fileName, file).
		SetMultipartFormData(map[string]string{"body": string(body)}).
		Post(c.url)
	if err != nil {
		return quotation.Record{}, fmt.Errorf("extraction request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return quotation.Record{}, fmt.Errorf("API Error: %d - %s", resp.StatusCode(), resp.String())
	}

	data := gjson.GetBytes(resp.Body(), "data")
	if !data.Exists() {
		return quotation.Record{}, fmt.Errorf("API returned success, but no data was extracted. Response: %s", resp.String())
	}

	doc, err := document.Parse([]byte(data.Raw))
	if err != nil {
		return quotation.Record{}, fmt.Errorf("failed to decode extracted data: %w", err)
	}
	doc = doc.
		With("vendor_name", document.StringValue(vendorName)).
		With("file_name", document.StringValue(fileName))

	return quotation.FromDocument(doc), nil
}
