// Package report turns JSON-shaped documents into ordered report blocks and
// writes those blocks out as text or PDF.
package report

// LineBreak marks an explicit line break inside Paragraph text.
const LineBreak = "<br/>"

// Block is one renderable unit of a report: *Heading, *KeyValueTable,
// *ListTable or *Paragraph.
type Block interface {
	block()
}

// Heading is a section or document title. Level 1 is the document title.
type Heading struct {
	Level int
	Text  string
}

// KeyValueTable is a two-column table of formatted labels and display values.
type KeyValueTable struct {
	Rows []KeyValue
}

// KeyValue is one row of a KeyValueTable.
type KeyValue struct {
	Label string
	Value string
}

// ListTable renders a list of records. Columns are the raw field names,
// Headers their formatted labels.
type ListTable struct {
	Columns []string
	Headers []string
	Rows    [][]string
}

// Paragraph is free text; LineBreak separates lines.
type Paragraph struct {
	Text string
}

func (*Heading) block()       {}
func (*KeyValueTable) block() {}
func (*ListTable) block()     {}
func (*Paragraph) block()     {}

// Encode converts blocks into plain maps and slices for API responses. Only
// map[string]any, []any and scalars are produced, so the result also feeds
// structpb.NewStruct.
func Encode(blocks []Block) []any {
	out := make([]any, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, encodeBlock(b))
	}
	return out
}

func encodeBlock(b Block) map[string]any {
	switch b := b.(type) {
	case *Heading:
		return map[string]any{"type": "heading", "level": b.Level, "text": b.Text}
	case *KeyValueTable:
		rows := make([]any, len(b.Rows))
		for i, r := range b.Rows {
			rows[i] = []any{r.Label, r.Value}
		}
		return map[string]any{"type": "key_value_table", "rows": rows}
	case *ListTable:
		rows := make([]any, len(b.Rows))
		for i, r := range b.Rows {
			rows[i] = stringsToAny(r)
		}
		return map[string]any{
			"type":    "list_table",
			"columns": stringsToAny(b.Columns),
			"headers": stringsToAny(b.Headers),
			"rows":    rows,
		}
	case *Paragraph:
		return map[string]any{"type": "paragraph", "text": b.Text}
	default:
		return map[string]any{"type": "unknown"}
	}
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
