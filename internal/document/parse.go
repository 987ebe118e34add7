package document

import (
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNotStructured is returned when text does not hold a JSON document.
var ErrNotStructured = errors.New("content is not structured data")

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.+?)\\s*```")

// Parse decodes JSON bytes into a Value.
func Parse(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return Value{}, ErrNotStructured
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

// ParseText decodes generated text. Text that is not JSON as a whole but
// wraps a JSON document in a markdown code fence is unwrapped first.
func ParseText(text string) (Value, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Value{}, ErrNotStructured
	}
	if v, err := Parse([]byte(trimmed)); err == nil {
		return v, nil
	}
	if m := fencedBlock.FindStringSubmatch(trimmed); len(m) > 1 {
		if v, err := Parse([]byte(m[1])); err == nil {
			return v, nil
		}
	}
	return Value{}, ErrNotStructured
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return NullValue()
	case gjson.False:
		return BoolValue(false)
	case gjson.True:
		return BoolValue(true)
	case gjson.Number:
		return NumberLiteral(r.Raw)
	case gjson.String:
		return StringValue(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			items := []Value{}
			r.ForEach(func(_, item gjson.Result) bool {
				items = append(items, fromResult(item))
				return true
			})
			return ListValue(items...)
		}
		var fields []Field
		r.ForEach(func(key, item gjson.Result) bool {
			fields = append(fields, Field{Key: key.Str, Value: fromResult(item)})
			return true
		})
		return MapValue(fields...)
	default:
		return NullValue()
	}
}
