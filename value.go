package attrs

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValueKind tags the variant held by a LabelValue.
type ValueKind int

const (
	KindText ValueKind = iota
	KindSequence
	KindMapping
)

func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// LabelValue is one extracted attribute value. Lists and objects returned by
// the model are kept as-is; every other JSON scalar is coerced to text.
type LabelValue struct {
	Kind ValueKind
	Text string
	Seq  []any
	Map  map[string]any
}

// TextValue wraps s as a text value.
func TextValue(s string) LabelValue { return LabelValue{Kind: KindText, Text: s} }

// SequenceValue wraps a decoded JSON array.
func SequenceValue(items []any) LabelValue { return LabelValue{Kind: KindSequence, Seq: items} }

// MappingValue wraps a decoded JSON object.
func MappingValue(m map[string]any) LabelValue { return LabelValue{Kind: KindMapping, Map: m} }

// coerceValue maps a value decoded with json.Decoder.UseNumber onto a LabelValue.
func coerceValue(v any) LabelValue {
	switch t := v.(type) {
	case []any:
		return SequenceValue(t)
	case map[string]any:
		return MappingValue(t)
	default:
		return TextValue(scalarText(v))
	}
}

func scalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(t)
	}
}

// String returns the text form used for option validation and metrics.
func (v LabelValue) String() string {
	switch v.Kind {
	case KindSequence:
		return compactJSON(v.Seq)
	case KindMapping:
		return compactJSON(v.Map)
	default:
		return v.Text
	}
}

// IsEmpty reports whether the value carries no content.
func (v LabelValue) IsEmpty() bool {
	switch v.Kind {
	case KindSequence:
		return len(v.Seq) == 0
	case KindMapping:
		return len(v.Map) == 0
	default:
		return v.Text == ""
	}
}

// MarshalJSON encodes the value as its natural JSON form.
func (v LabelValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindSequence:
		if v.Seq == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Seq)
	case KindMapping:
		if v.Map == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.Map)
	default:
		return json.Marshal(v.Text)
	}
}

// UnmarshalJSON decodes any JSON value with the same coercion rule the
// response parser applies.
func (v *LabelValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = coerceValue(raw)
	return nil
}

func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
