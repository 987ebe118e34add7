package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	pdfFontFamily = "report"
	lineHeight    = 5.0
)

// PDFWriter writes blocks as an A4 PDF document.
type PDFWriter struct {
	// FontPath is an optional UTF-8 TrueType font. Without it the core
	// Helvetica font is used and non-Latin glyphs (the Thai half of the
	// bilingual labels) do not render.
	FontPath string
}

// NewPDFWriter creates a PDF writer
func NewPDFWriter(fontPath string) *PDFWriter {
	return &PDFWriter{FontPath: fontPath}
}

type pdfDoc struct {
	pdf    *fpdf.Fpdf
	family string
	tr     func(string) string
	width  float64
}

// Write renders blocks into w.
func (p *PDFWriter) Write(w io.Writer, blocks []Block, generatedAt time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 15)

	doc := &pdfDoc{pdf: pdf, family: "Helvetica", tr: func(s string) string { return s }}
	if p.FontPath != "" {
		for _, style := range []string{"", "B", "I"} {
			pdf.AddUTF8Font(pdfFontFamily, style, p.FontPath)
		}
		doc.family = pdfFontFamily
	} else {
		doc.tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to load font: %w", err)
	}

	pdf.AddPage()
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	doc.width = pageW - left - right

	for _, b := range blocks {
		switch b := b.(type) {
		case *Heading:
			doc.heading(b)
		case *KeyValueTable:
			doc.keyValueTable(b)
		case *ListTable:
			doc.listTable(b)
		case *Paragraph:
			doc.paragraph(b.Text)
		default:
		}
	}

	pdf.Ln(8)
	pdf.SetFont(doc.family, "I", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, lineHeight, doc.tr("Generated on "+generatedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to build pdf: %w", err)
	}
	return pdf.Output(w)
}

func (d *pdfDoc) heading(h *Heading) {
	if h.Level <= 1 {
		d.pdf.SetFont(d.family, "B", 18)
		d.pdf.SetTextColor(0, 0, 128)
		d.pdf.MultiCell(0, 9, d.tr(h.Text), "", "L", false)
		d.pdf.Ln(6)
		return
	}
	d.pdf.SetFont(d.family, "B", 12)
	d.pdf.SetTextColor(70, 130, 180)
	d.pdf.MultiCell(0, 7, d.tr(h.Text), "", "L", false)
	d.pdf.Ln(2)
}

func (d *pdfDoc) paragraph(text string) {
	d.pdf.SetFont(d.family, "", 10)
	d.pdf.SetTextColor(0, 0, 0)
	for _, line := range strings.Split(text, LineBreak) {
		d.pdf.MultiCell(0, lineHeight, d.tr(line), "", "L", false)
	}
	d.pdf.Ln(4)
}

func (d *pdfDoc) keyValueTable(t *KeyValueTable) {
	widths := []float64{d.width / 3, d.width * 2 / 3}
	d.pdf.SetTextColor(0, 0, 0)
	for _, row := range t.Rows {
		d.row([]string{row.Label, row.Value}, widths, func(col int) ([3]int, bool, string) {
			if col == 0 {
				return [3]int{211, 211, 211}, true, "B"
			}
			return [3]int{}, false, ""
		})
	}
	d.pdf.Ln(4)
}

func (d *pdfDoc) listTable(t *ListTable) {
	if len(t.Headers) == 0 {
		return
	}
	widths := make([]float64, len(t.Headers))
	for i := range widths {
		widths[i] = d.width / float64(len(widths))
	}

	d.pdf.SetTextColor(255, 255, 255)
	d.row(t.Headers, widths, func(int) ([3]int, bool, string) {
		return [3]int{70, 130, 180}, true, "B"
	})
	d.pdf.SetTextColor(0, 0, 0)
	for _, r := range t.Rows {
		d.row(r, widths, func(int) ([3]int, bool, string) {
			return [3]int{230, 230, 250}, true, ""
		})
	}
	d.pdf.Ln(4)
}

// row draws one table row with wrapped cells of equal height.
func (d *pdfDoc) row(cells []string, widths []float64, style func(col int) (fill [3]int, filled bool, font string)) {
	const pad = 1.5

	lines := make([][]string, len(widths))
	maxLines := 1
	for i := range widths {
		text := ""
		if i < len(cells) {
			text = d.tr(cells[i])
		}
		_, _, font := style(i)
		d.pdf.SetFont(d.family, font, 9)
		lines[i] = d.pdf.SplitText(text, widths[i]-2*pad)
		if len(lines[i]) > maxLines {
			maxLines = len(lines[i])
		}
	}
	height := float64(maxLines)*lineHeight + pad

	_, pageH := d.pdf.GetPageSize()
	_, _, _, bottom := d.pdf.GetMargins()
	x, y := d.pdf.GetXY()
	if y+height > pageH-bottom {
		d.pdf.AddPage()
		x, y = d.pdf.GetXY()
	}

	cx := x
	for i, w := range widths {
		fill, filled, font := style(i)
		rectStyle := "D"
		if filled {
			d.pdf.SetFillColor(fill[0], fill[1], fill[2])
			rectStyle = "FD"
		}
		d.pdf.Rect(cx, y, w, height, rectStyle)
		d.pdf.SetFont(d.family, font, 9)
		for n, line := range lines[i] {
			d.pdf.SetXY(cx+pad, y+pad/2+float64(n)*lineHeight)
			d.pdf.CellFormat(w-2*pad, lineHeight, line, "", 0, "L", false, 0, "")
		}
		cx += w
	}
	d.pdf.SetXY(x, y+height)
}
