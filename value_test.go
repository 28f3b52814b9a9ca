package attrs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelValue_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind ValueKind
		text string
	}{
		{"string", `"red"`, KindText, "red"},
		{"integer", `42`, KindText, "42"},
		{"float keeps literal", `0.10`, KindText, "0.10"},
		{"bool", `true`, KindText, "true"},
		{"null", `null`, KindText, ""},
		{"list", `["a", 1]`, KindSequence, `["a",1]`},
		{"object", `{"k": "v"}`, KindMapping, `{"k":"v"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v LabelValue
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &v))
			assert.Equal(t, tt.kind, v.Kind)
			assert.Equal(t, tt.text, v.String())
		})
	}
}

func TestLabelValue_MarshalJSON(t *testing.T) {
	label := map[string]LabelValue{
		"color": TextValue("red"),
		"tags":  SequenceValue([]any{"a", "b"}),
		"dims":  MappingValue(map[string]any{"w": json.Number("3")}),
		"none":  {Kind: KindSequence},
	}
	b, err := json.Marshal(label)
	require.NoError(t, err)
	assert.JSONEq(t, `{"color":"red","tags":["a","b"],"dims":{"w":3},"none":[]}`, string(b))
}

func TestLabelValue_IsEmpty(t *testing.T) {
	assert.True(t, TextValue("").IsEmpty())
	assert.True(t, SequenceValue(nil).IsEmpty())
	assert.True(t, MappingValue(map[string]any{}).IsEmpty())
	assert.False(t, TextValue("x").IsEmpty())
	assert.False(t, SequenceValue([]any{"x"}).IsEmpty())
}

func TestValueKind_String(t *testing.T) {
	assert.Equal(t, "text", KindText.String())
	assert.Equal(t, "sequence", KindSequence.String())
	assert.Equal(t, "mapping", KindMapping.String())
	assert.Equal(t, "ValueKind(9)", ValueKind(9).String())
}

func TestCompactJSON_NoHTMLEscape(t *testing.T) {
	assert.Equal(t, `["<b>","a&b"]`, compactJSON([]any{"<b>", "a&b"}))
}
