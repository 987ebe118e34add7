package service

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/pesio-ai/be-procurement-assistant/internal/comparison"
	"github.com/pesio-ai/be-procurement-assistant/internal/document"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/errors"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/logger"
	"github.com/pesio-ai/be-procurement-assistant/internal/quotation"
	"github.com/pesio-ai/be-procurement-assistant/internal/report"
)

// Format is a report output format
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
)

// ParseFormat parses a format name. Empty means JSON.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatText, FormatPDF:
		return f, nil
	case "txt":
		return FormatText, nil
	}
	return "", errors.InvalidInput("format", "format must be one of json, text, pdf")
}

// ContentType is the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/json"
}

// Extension is the file extension of the format
func (f Format) Extension() string {
	if f == FormatText {
		return "txt"
	}
	return string(f)
}

// ReportService renders documents and quotation comparisons. It holds no
// state and never fails on malformed documents.
type ReportService struct {
	pdf *report.PDFWriter
	log *logger.Logger
	now func() time.Time
}

// NewReportService creates a new report service. fontPath is an optional
// UTF-8 font for PDF output.
func NewReportService(fontPath string, log *logger.Logger) *ReportService {
	return &ReportService{
		pdf: report.NewPDFWriter(fontPath),
		log: log,
		now: time.Now,
	}
}

// RenderDocument renders a JSON-shaped document into report blocks
func (s *ReportService) RenderDocument(doc document.Value, title, kind string) []report.Block {
	return report.Render(doc, title, kind)
}

// CompareQuotations aggregates quotations into a comparison matrix
func (s *ReportService) CompareQuotations(quotes *quotation.Set) comparison.Matrix {
	return comparison.Aggregate(quotes)
}

// Write writes blocks to w in the given format
func (s *ReportService) Write(w io.Writer, blocks []report.Block, format Format) error {
	var err error
	switch format {
	case FormatText:
		err = report.WriteText(w, blocks, s.now())
	case FormatPDF:
		err = s.pdf.Write(w, blocks, s.now())
	default:
		err = json.NewEncoder(w).Encode(map[string]any{"blocks": report.Encode(blocks)})
	}
	if err != nil {
		s.log.Error().Err(err).Str("format", string(format)).Msg("Failed to write report")
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to write report")
	}
	return nil
}
