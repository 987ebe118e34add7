// Package quotation holds vendor quotation records as produced by the
// extraction collaborator.
package quotation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pesio-ai/be-procurement-assistant/internal/document"
)

// LineItem is one quoted line. Fields keep their extracted JSON form since
// extraction returns numbers, strings or nothing for the same field.
type LineItem struct {
	Description    document.Value `json:"description"`
	Quantity       document.Value `json:"quantity"`
	UnitPrice      document.Value `json:"unit_price"`
	TotalPrice     document.Value `json:"total_price"`
	Specifications document.Value `json:"specifications"`
}

// Record is an extracted vendor quotation.
type Record struct {
	VendorName     string         `json:"vendor_name"`
	VendorInfo     document.Value `json:"vendor_info"`
	QuoteDetails   document.Value `json:"quote_details"`
	Items          []LineItem     `json:"items"`
	Totals         document.Value `json:"totals"`
	Terms          document.Value `json:"terms"`
	SourceFileName string         `json:"file_name"`
}

// FromDocument reads a Record out of an extracted document. Anything that
// does not have the expected shape is dropped: a non-list items field yields
// no items, and non-map entries inside items are skipped.
func FromDocument(doc document.Value) Record {
	var rec Record

	rec.VendorInfo, _ = doc.Get("vendor_info")
	rec.QuoteDetails, _ = doc.Get("quote_details")
	rec.Totals, _ = doc.Get("totals")
	rec.Terms, _ = doc.Get("terms")

	if v, ok := doc.Get("vendor_name"); ok {
		rec.VendorName = v.String()
	}
	if v, ok := doc.Get("file_name"); ok {
		rec.SourceFileName = v.String()
	}

	items, _ := doc.Get("items")
	for _, item := range items.Items() {
		if item.Kind() != document.Map {
			continue
		}
		var li LineItem
		li.Description, _ = item.Get("description")
		li.Quantity, _ = item.Get("quantity")
		li.UnitPrice, _ = item.Get("unit_price")
		li.TotalPrice, _ = item.Get("total_price")
		li.Specifications, _ = item.Get("specifications")
		rec.Items = append(rec.Items, li)
	}

	return rec
}

// Set maps vendor names to records, remembering insertion order. Vendor
// names are exact, case-sensitive keys. The zero Set is empty and ready to use.
type Set struct {
	order   []string
	records map[string]Record
}

// Put stores a record. Re-using a vendor name overwrites the previous record
// and keeps the vendor's original position.
func (s *Set) Put(vendor string, rec Record) {
	if s.records == nil {
		s.records = make(map[string]Record)
	}
	if _, exists := s.records[vendor]; !exists {
		s.order = append(s.order, vendor)
	}
	s.records[vendor] = rec
}

// Get returns the record for vendor.
func (s *Set) Get(vendor string) (Record, bool) {
	rec, ok := s.records[vendor]
	return rec, ok
}

// Has reports whether vendor has a record.
func (s *Set) Has(vendor string) bool {
	_, ok := s.records[vendor]
	return ok
}

// Len is the number of vendors.
func (s *Set) Len() int {
	return len(s.order)
}

// Vendors returns vendor names in insertion order.
func (s *Set) Vendors() []string {
	return append([]string(nil), s.order...)
}

// Each calls fn for every vendor in insertion order.
func (s *Set) Each(fn func(vendor string, rec Record)) {
	for _, vendor := range s.order {
		fn(vendor, s.records[vendor])
	}
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	out := &Set{}
	s.Each(out.Put)
	return out
}

// Clear removes every record.
func (s *Set) Clear() {
	s.order = nil
	s.records = nil
}

// MarshalJSON encodes the set as a JSON object in insertion order.
func (s *Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, vendor := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(vendor)
		if err != nil {
			return nil, err
		}
		rec, err := json.Marshal(s.records[vendor])
		if err != nil {
			return nil, fmt.Errorf("encode quotation for %s: %w", vendor, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(rec)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of vendor -> quotation document. A
// vendor whose value is not an object gets an empty record.
func (s *Set) UnmarshalJSON(data []byte) error {
	doc, err := document.Parse(data)
	if err != nil {
		return err
	}
	if doc.Kind() != document.Map {
		return fmt.Errorf("quotations must be a JSON object, got %s", doc.Kind())
	}
	s.Clear()
	for _, f := range doc.Fields() {
		s.Put(f.Key, FromDocument(f.Value))
	}
	return nil
}
