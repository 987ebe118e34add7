// Package comparison aligns vendor quotations on line-item descriptions.
package comparison

import (
	"github.com/pesio-ai/be-procurement-assistant/internal/document"
	"github.com/pesio-ai/be-procurement-assistant/internal/quotation"
	"github.com/pesio-ai/be-procurement-assistant/internal/report"
)

const (
	// NotAvailable is shown for a vendor that did not quote an item.
	NotAvailable = "N/A"

	// Title is the report title of a comparison.
	Title = "Vendor Quotation Comparison"

	descriptionHeader = "Item Description"
)

// Cell is one vendor's price for one item.
type Cell struct {
	Price     document.Value
	Available bool
}

// String is the display form of the cell.
func (c Cell) String() string {
	if !c.Available {
		return NotAvailable
	}
	return c.Price.String()
}

// Row is one item description across all vendors.
type Row struct {
	Description string
	Cells       map[string]Cell
}

// Matrix is the comparison of all vendors. Vendors keep the insertion order of
// the quotation set and rows keep the order descriptions were first seen.
type Matrix struct {
	Vendors []string
	Rows    []Row
}

// Aggregate builds the comparison matrix. Descriptions match by exact string
// equality. Within a vendor, a repeated description keeps the last price.
func Aggregate(quotes *quotation.Set) Matrix {
	m := Matrix{Vendors: []string{}, Rows: []Row{}}
	if quotes == nil {
		return m
	}

	index := make(map[string]int)
	m.Vendors = append(m.Vendors, quotes.Vendors()...)

	quotes.Each(func(vendor string, rec quotation.Record) {
		for _, item := range rec.Items {
			desc := description(item)
			key := desc.Kind().String() + ":" + desc.String()
			i, ok := index[key]
			if !ok {
				i = len(m.Rows)
				index[key] = i
				m.Rows = append(m.Rows, Row{Description: desc.String(), Cells: make(map[string]Cell, len(m.Vendors))})
			}
			m.Rows[i].Cells[vendor] = price(item)
		}
	})

	// Vendors without an item get an explicit placeholder
	for _, row := range m.Rows {
		for _, vendor := range m.Vendors {
			if _, ok := row.Cells[vendor]; !ok {
				row.Cells[vendor] = Cell{}
			}
		}
	}

	return m
}

// description is the row key, matched by kind and text so 1 and "1" stay
// apart. A missing description reads as N/A.
func description(item quotation.LineItem) document.Value {
	if item.Description.IsNull() {
		return document.StringValue(NotAvailable)
	}
	return item.Description
}

// price prefers the line total, then the unit price.
func price(item quotation.LineItem) Cell {
	switch {
	case !item.TotalPrice.IsNull():
		return Cell{Price: item.TotalPrice, Available: true}
	case !item.UnitPrice.IsNull():
		return Cell{Price: item.UnitPrice, Available: true}
	}
	return Cell{}
}

// Cell returns the cell for a description and vendor.
func (m Matrix) Cell(desc, vendor string) (Cell, bool) {
	for _, row := range m.Rows {
		if row.Description == desc {
			c, ok := row.Cells[vendor]
			return c, ok
		}
	}
	return Cell{}, false
}

// ListTable converts the matrix into a report table with one column per vendor.
func (m Matrix) ListTable() *report.ListTable {
	columns := append([]string{"description"}, m.Vendors...)
	headers := append([]string{descriptionHeader}, m.Vendors...)

	rows := make([][]string, 0, len(m.Rows))
	for _, row := range m.Rows {
		r := make([]string, 0, len(columns))
		r = append(r, row.Description)
		for _, vendor := range m.Vendors {
			r = append(r, row.Cells[vendor].String())
		}
		rows = append(rows, r)
	}

	return &report.ListTable{Columns: columns, Headers: headers, Rows: rows}
}

// Blocks renders the matrix as a titled report.
func (m Matrix) Blocks() []report.Block {
	return []report.Block{
		&report.Heading{Level: 1, Text: Title},
		m.ListTable(),
	}
}

// Document is the matrix as a JSON-shaped value: a list of rows, each mapping
// "description" and every vendor to its display price.
func (m Matrix) Document() document.Value {
	rows := make([]document.Value, 0, len(m.Rows))
	for _, row := range m.Rows {
		fields := make([]document.Field, 0, len(m.Vendors)+1)
		fields = append(fields, document.Field{Key: "description", Value: document.StringValue(row.Description)})
		for _, vendor := range m.Vendors {
			c := row.Cells[vendor]
			v := document.StringValue(NotAvailable)
			if c.Available {
				v = c.Price
			}
			fields = append(fields, document.Field{Key: vendor, Value: v})
		}
		rows = append(rows, document.MapValue(fields...))
	}
	return document.MapValue(
		document.Field{Key: "vendors", Value: stringList(m.Vendors)},
		document.Field{Key: "rows", Value: document.ListValue(rows...)},
	)
}

func stringList(ss []string) document.Value {
	items := make([]document.Value, len(ss))
	for i, s := range ss {
		items[i] = document.StringValue(s)
	}
	return document.ListValue(items...)
}
