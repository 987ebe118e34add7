package report

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// labels maps title-cased field names to bilingual (Thai / English) labels.
var labels = map[string]string{
	"Company Name":    "ชื่อบริษัท / Company Name",
	"Company Address": "ที่อยู่บริษัท / Address",
	"Company Contact": "ติดต่อ / Contact",
	"Company Phone":   "โทรศัพท์ / Phone",
	"Vendor Name":     "ชื่อผู้ขาย / Vendor Name",
	"Total Price":     "ราคารวม / Total Price",
	"Unit Price":      "ราคาต่อหน่วย / Unit Price",
	"Quantity":        "จำนวน / Quantity",
	"Description":     "รายละเอียด / Description",
	"Payment Terms":   "เงื่อนไขการชำระเงิน / Payment Terms",
	"Delivery Date":   "วันที่จัดส่ง / Delivery Date",
	"Purchase Order":  "ใบสั่งซื้อ / Purchase Order",
	"Requirements":    "ความต้องการ / Requirements",
	"Generated At":    "สร้างเมื่อ / Generated At",
}

var separators = strings.NewReplacer("_", " ", "-", " ")

// FormatFieldName turns a field name such as "unit_price" into a display
// label: separators become spaces, each word is title-cased, and the result
// is looked up in the bilingual label table. Unknown names pass through.
func FormatFieldName(name string) string {
	// cases.Caser is stateful, so each call gets its own.
	formatted := cases.Title(language.Und).String(separators.Replace(name))
	if label, ok := labels[formatted]; ok {
		return label
	}
	return formatted
}
