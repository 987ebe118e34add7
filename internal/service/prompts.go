package service

import (
	"encoding/json"
	"fmt"

	"github.com/pesio-ai/be-procurement-assistant/internal/quotation"
	"github.com/pesio-ai/be-procurement-assistant/internal/repository"
)

const notSpecified = "Not specified"

// System prompts and sampling temperatures for each generation call
const (
	chatSystemPrompt = "You are a procurement specialist helping to gather requirements for an RFQ. " +
		"Ask clarifying questions and provide professional advice. Respond in both Thai and English when appropriate."
	rfqSystemPrompt      = "You are a professional procurement specialist generating detailed RFQ documents as JSON."
	analysisSystemPrompt = "You are an expert procurement analyst. Provide thorough, objective vendor analysis as a JSON object."
	summarySystemPrompt  = "You are a procurement analyst. Extract the final recommendation summary in both English and Thai."
	poSystemPrompt       = "You are a procurement specialist creating precise purchase orders as JSON."

	chatTemperature     float32 = 0.7
	rfqTemperature      float32 = 0.7
	analysisTemperature float32 = 0.3
	summaryTemperature  float32 = 0.1
	poTemperature       float32 = 0.2
)

func orNotSpecified(s string) string {
	if s == "" {
		return notSpecified
	}
	return s
}

func chatPrompt(profile repository.CompanyProfile) string {
	if profile.CompanyName == "" {
		return chatSystemPrompt
	}
	return chatSystemPrompt + fmt.Sprintf(" You are working for %s.", profile.CompanyName)
}

func rfqPrompt(requirements string, profile repository.CompanyProfile) string {
	terms := profile.DefaultPaymentTerms
	if terms == "" {
		terms = "Net 30"
	}
	return fmt.Sprintf(`Generate a professional Request for Quote (RFQ) document based on the following:

Company Information:
- Company Name: %s
- Address: %s
- Contact: %s
- Phone: %s
- Default Payment Terms: %s

Requirements: %s

Please structure the RFQ with clear sections like Project Description,
Detailed Requirements, Specifications, Delivery Requirements, and Terms.
Format the response as a structured JSON.`,
		orNotSpecified(profile.CompanyName),
		orNotSpecified(profile.CompanyAddress),
		orNotSpecified(profile.CompanyContact),
		orNotSpecified(profile.CompanyPhone),
		terms,
		requirements,
	)
}

func analysisPrompt(quotes *quotation.Set) (string, error) {
	data, err := json.MarshalIndent(quotes, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode quotations: %w", err)
	}
	return fmt.Sprintf(`Analyze the following vendor quotations and provide a comprehensive recommendation.
Format the entire output as a single JSON object.
The JSON should include keys like "vendor_comparison", "price_analysis",
"risk_assessment", and "final_recommendation".

Quotation Data: %s`, data), nil
}

// summaryPrompt embeds the analysis text exactly as it was returned
func summaryPrompt(analysis string) string {
	return fmt.Sprintf(`From the following vendor analysis, extract ONLY the final recommendation.
Provide:
1. Recommended vendor name
2. Key reasons (max 3 bullet points)
3. Total cost/price
Format as a clear, concise summary in both English and Thai.

Analysis: %s`, analysis)
}

func purchaseOrderPrompt(rfq *repository.RFQArtifact, vendor string, rec *repository.VendorRecommendation, profile repository.CompanyProfile) (string, error) {
	rfqJSON := []byte("{}")
	if rfq != nil {
		var err error
		if rfqJSON, err = json.MarshalIndent(rfq, "", "  "); err != nil {
			return "", fmt.Errorf("failed to encode RFQ: %w", err)
		}
	}
	recJSON, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode recommendation: %w", err)
	}

	return fmt.Sprintf(`Generate a professional Purchase Order as a structured JSON object.
Use this information:

Buyer Company Information:
- Company Name: %s
- Address: %s
- Contact: %s

RFQ Data: %s
Selected Vendor: %s
Vendor Recommendation: %s

Include standard PO fields: PO Number, Vendor Info, Buyer Info, Item Details,
Quantities, Prices, Terms, and Total Amounts.`,
		orNotSpecified(profile.CompanyName),
		orNotSpecified(profile.CompanyAddress),
		orNotSpecified(profile.CompanyContact),
		rfqJSON,
		vendor,
		recJSON,
	), nil
}
