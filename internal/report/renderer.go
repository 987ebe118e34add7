package report

import (
	"sort"
	"strings"

	"github.com/pesio-ai/be-procurement-assistant/internal/document"
)

// ContentHeading heads the plain-text fallback for unparseable content.
const ContentHeading = "Content"

// Render converts a document into report blocks. It is total: every input
// yields at least the title heading, and nothing it is given makes it fail.
//
// The walk is one level deep. Each top-level entry becomes a section heading
// followed by a ListTable (a non-empty list whose first element is a map), a
// KeyValueTable (a map) or a Paragraph (anything else). A String document is
// first parsed as generated text; if that fails it is rendered verbatim under
// a "Content" heading with line breaks kept as LineBreak markers.
func Render(doc document.Value, title, kind string) []Block {
	blocks := []Block{&Heading{Level: 1, Text: documentTitle(title, kind)}}

	if text, ok := doc.Str(); ok {
		parsed, err := document.ParseText(text)
		if err != nil {
			return append(blocks,
				&Heading{Level: 2, Text: ContentHeading},
				&Paragraph{Text: withBreaks(text)},
			)
		}
		doc = parsed
	}

	if doc.Kind() != document.Map {
		return append(blocks, &Paragraph{Text: doc.String()})
	}

	for _, f := range doc.Fields() {
		blocks = append(blocks, &Heading{Level: 2, Text: FormatFieldName(f.Key)})
		blocks = append(blocks, section(f.Value))
	}
	return blocks
}

// RenderText is Render for raw generated text such as an RFQ artifact.
func RenderText(text, title, kind string) []Block {
	return Render(document.StringValue(text), title, kind)
}

func section(v document.Value) Block {
	switch v.Kind() {
	case document.List:
		items := v.Items()
		if len(items) > 0 && items[0].Kind() == document.Map {
			return listTable(items)
		}
		return &Paragraph{Text: v.String()}
	case document.Map:
		rows := make([]KeyValue, 0, v.Len())
		for _, f := range v.Fields() {
			rows = append(rows, KeyValue{Label: FormatFieldName(f.Key), Value: f.Value.String()})
		}
		return &KeyValueTable{Rows: rows}
	default:
		return &Paragraph{Text: v.String()}
	}
}

// listTable takes its columns from the first element only, sorted by name.
// Fields missing from later elements, or elements that are not maps, render
// as empty cells.
func listTable(items []document.Value) *ListTable {
	columns := items[0].Keys()
	sort.Strings(columns)

	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = FormatFieldName(c)
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		row := make([]string, len(columns))
		for i, c := range columns {
			if v, ok := item.Get(c); ok {
				row[i] = v.String()
			}
		}
		rows = append(rows, row)
	}

	return &ListTable{Columns: columns, Headers: headers, Rows: rows}
}

func documentTitle(title, kind string) string {
	switch {
	case kind == "":
		return title
	case title == "":
		return kind
	}
	return kind + ": " + title
}

func withBreaks(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\n", LineBreak)
}
