package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// WriteText writes blocks as an aligned plain-text report.
func WriteText(w io.Writer, blocks []Block, generatedAt time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	for _, b := range blocks {
		switch b := b.(type) {
		case *Heading:
			if b.Level <= 1 {
				fmt.Fprintf(tw, "%s\n%s\n\n", b.Text, strings.Repeat("=", len([]rune(b.Text))))
			} else {
				fmt.Fprintf(tw, "## %s\n", b.Text)
			}
		case *KeyValueTable:
			for _, row := range b.Rows {
				fmt.Fprintf(tw, "%s\t%s\n", cell(row.Label), cell(row.Value))
			}
			fmt.Fprintln(tw)
		case *ListTable:
			fmt.Fprintln(tw, strings.Join(cells(b.Headers), "\t"))
			seps := make([]string, len(b.Headers))
			for i, h := range b.Headers {
				seps[i] = strings.Repeat("-", len([]rune(h)))
			}
			fmt.Fprintln(tw, strings.Join(seps, "\t"))
			for _, row := range b.Rows {
				fmt.Fprintln(tw, strings.Join(cells(row), "\t"))
			}
			fmt.Fprintln(tw)
		case *Paragraph:
			fmt.Fprintf(tw, "%s\n\n", strings.ReplaceAll(b.Text, LineBreak, "\n"))
		default:
			// unknown block types are skipped
		}
	}

	fmt.Fprintf(tw, "Generated on %s\n", generatedAt.Format("2006-01-02 15:04"))
	return tw.Flush()
}

// cell keeps table cells on one line so tabwriter columns stay aligned.
func cell(s string) string {
	s = strings.ReplaceAll(s, LineBreak, " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\t", " ")
}

func cells(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = cell(s)
	}
	return out
}
