package attrs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tailscale/hujson"
)

const (
	// maxEnumOptions bounds the option list emitted as an enum definition.
	maxEnumOptions = 500

	multilabelInstruction = "The output format should be all the labels separated by semicolons. For example: label1;label2;label3"
)

// AttributeJSON is the per-call view of the configured attributes: the text
// block shown to the model and the schema its answer must satisfy.
type AttributeJSON struct {
	Text   string
	Schema *OutputSchema
}

// SchemaProperty is one entry of OutputSchema.Properties.
type SchemaProperty struct {
	Ref   string `json:"$ref,omitempty"`
	Title string `json:"title,omitempty"`
	Type  string `json:"type,omitempty"`
}

// OutputSchema is the JSON schema of an answer object.
type OutputSchema struct {
	Title                string                     `json:"title"`
	Description          string                     `json:"description"`
	Type                 string                     `json:"type"`
	Properties           map[string]SchemaProperty  `json:"properties"`
	Required             []string                   `json:"required"`
	AdditionalProperties bool                       `json:"additionalProperties"`
	Definitions          map[string]json.RawMessage `json:"definitions"`
}

type enumDefinition struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Enum        []string `json:"enum"`
}

func newOutputSchema() *OutputSchema {
	return &OutputSchema{
		Title:       "AnswerFormat",
		Description: "Answer to the provided prompt.",
		Type:        "object",
		Properties:  map[string]SchemaProperty{},
		Required:    []string{},
		Definitions: map[string]json.RawMessage{},
	}
}

// BuildAttributeJSON renders defs into the prompt text block and the output
// schema. selected and selectedDesc override the static options and option
// descriptions of the attributes they name.
func BuildAttributeJSON(defs []AttributeDefinition, selected map[string][]string, selectedDesc map[string]map[string]*string) (*AttributeJSON, error) {
	schema := newOutputSchema()
	entries := make([][2]string, 0, len(defs))

	for i := range defs {
		a := &defs[i]
		if err := a.Validate(); err != nil {
			return nil, err
		}

		desc := a.Description
		if a.IsMultilabel() {
			desc += " " + multilabelInstruction
		}

		options := a.effectiveOptions(selected)
		optionsDesc := a.OptionsDesc
		if d, ok := selectedDesc[a.Name]; ok {
			optionsDesc = d
		}
		if len(options) > 0 {
			desc += "\nOptions:\n" + strings.Join(options, ",")
			desc += describeOptions(options, optionsDesc)
		}
		entries = append(entries, [2]string{a.Name, desc})

		ref := SchemaProperty{Ref: "#/definitions/" + a.Name}
		switch {
		case a.Schema != "":
			def, err := hujson.Standardize([]byte(a.Schema))
			if err != nil {
				return nil, fmt.Errorf("%w %s: schema: %w", ErrInvalidAttribute, a.Name, err)
			}
			schema.Definitions[a.Name] = json.RawMessage(bytes.TrimSpace(def))
			schema.Properties[a.Name] = ref
		case a.IsClassification() && len(options) > 0 && len(options) < maxEnumOptions:
			def, err := json.Marshal(enumDefinition{Title: a.Name, Description: "An enumeration.", Enum: options})
			if err != nil {
				return nil, err
			}
			schema.Definitions[a.Name] = def
			schema.Properties[a.Name] = ref
		default:
			schema.Properties[a.Name] = SchemaProperty{Title: a.Name, Type: "string"}
		}
		schema.Required = append(schema.Required, a.Name)
	}

	text, err := indentedObject(entries)
	if err != nil {
		return nil, err
	}
	return &AttributeJSON{Text: text, Schema: schema}, nil
}

// describeOptions renders the option descriptions that are present, in option
// order first and then any described labels not in the option list.
func describeOptions(options []string, desc map[string]*string) string {
	if len(desc) == 0 {
		return ""
	}
	var b strings.Builder
	seen := make(map[string]struct{}, len(options))
	for _, o := range options {
		seen[o] = struct{}{}
		if d := desc[o]; d != nil {
			fmt.Fprintf(&b, "\n%s: %s", o, *d)
		}
	}
	for _, k := range sortedKeys(desc) {
		if _, ok := seen[k]; ok {
			continue
		}
		if d := desc[k]; d != nil {
			fmt.Fprintf(&b, "\n%s: %s", k, *d)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "\nDescription for each option:" + b.String()
}

// indentedObject writes a JSON object with four-space indentation keeping
// the entry order.
func indentedObject(entries [][2]string) (string, error) {
	if len(entries) == 0 {
		return "{}", nil
	}
	var b strings.Builder
	b.WriteString("{\n")
	for i, kv := range entries {
		k, err := jsonString(kv[0])
		if err != nil {
			return "", err
		}
		v, err := jsonString(kv[1])
		if err != nil {
			return "", err
		}
		b.WriteString("    ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		if i < len(entries)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString("}")
	return b.String(), nil
}

func jsonString(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
