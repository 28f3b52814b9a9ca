package attrs

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

type parseStrategy struct {
	name string
	fn   func(text string) (map[string]any, error)
}

// parseStrategies run in order until one succeeds.
var parseStrategies = []parseStrategy{
	{name: "code_fence", fn: parseCodeFence},
	{name: "brace_extraction", fn: parseBraceExtraction},
}

// SanitizeJSONResponse strips surrounding whitespace and markdown code fences.
func SanitizeJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parseCodeFence(text string) (map[string]any, error) {
	return decodeRelaxedObject(SanitizeJSONResponse(text))
}

// parseBraceExtraction parses the span from the first `{` to the last `}`.
func parseBraceExtraction(text string) (map[string]any, error) {
	start, end := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, ErrNoJSONObject
	}
	return decodeRelaxedObject(escapeNewlinesInStrings(text[start : end+1]))
}

// ParseLabel runs the parse strategies over a raw completion. Lists and
// objects are kept; other values become text. The returned error is the
// last strategy's failure.
func ParseLabel(text string) (map[string]LabelValue, []ParseAttempt, error) {
	attempts := make([]ParseAttempt, 0, len(parseStrategies))
	var lastErr error
	for _, s := range parseStrategies {
		obj, err := s.fn(text)
		attempts = append(attempts, ParseAttempt{Strategy: s.name, Err: err})
		if err != nil {
			lastErr = err
			continue
		}
		label := make(map[string]LabelValue, len(obj))
		for k, v := range obj {
			label[k] = coerceValue(v)
		}
		return label, attempts, nil
	}
	return nil, attempts, lastErr
}

// ParseResponse turns a completion into an annotation. It never fails:
// unparseable output yields an unsuccessful annotation carrying an
// INVALID_LLM_RESPONSE_ERROR, and values outside the advertised options are
// removed and reported in Diagnostics.
func (t *Task) ParseResponse(resp Response, row Row, prompt string, selected *LabelVocabulary) *LLMAnnotation {
	snapshot := selected.Snapshot()
	ann := &LLMAnnotation{
		ID:             uuid.NewString(),
		RawResponse:    resp.Text,
		Prompt:         prompt,
		CurrSample:     snapshotRow(row),
		GenerationInfo: resp.GenerationInfo,
		SelectedLabels: snapshot,
	}

	label, attempts, err := ParseLabel(resp.Text)
	ann.Attempts = attempts
	if err != nil {
		t.log.Error("error parsing LLM response", "response", resp.Text, "error", err)
		ann.Label = map[string]LabelValue{}
		ann.Error = &LabelingError{Type: ErrorTypeInvalidLLMResponse, Message: err.Error()}
		return ann
	}
	if len(attempts) > 1 {
		t.log.Info("recovered LLM response by searching for a JSON object",
			"strategy", attempts[len(attempts)-1].Strategy, "first_error", attempts[0].Err)
	}

	ann.SuccessfullyLabeled = true
	ann.Label = label
	ann.Diagnostics = t.filterLabel(label, snapshot)
	return ann
}

// filterLabel applies the option sets in place and reports what it removed.
func (t *Task) filterLabel(label map[string]LabelValue, selected map[string][]string) []Diagnostic {
	var diags []Diagnostic
	sep := t.cfg.separator()
	for i := range t.cfg.Attributes {
		a := &t.cfg.Attributes[i]
		options := a.effectiveOptions(selected)
		if len(options) == 0 {
			continue
		}
		v, ok := label[a.Name]
		if !ok {
			continue
		}

		switch {
		case a.IsClassification():
			text := v.String()
			if containsString(options, text) {
				continue
			}
			delete(label, a.Name)
			t.log.Warn("attribute value is not in the labels list",
				"attribute", a.Name, "value", text)
			diags = append(diags, Diagnostic{Attribute: a.Name, Value: text, Discarded: []string{text}, Dropped: true})

		case a.IsMultilabel():
			tokens := labelTokens(v, sep)
			var kept, discarded []string
			for _, tok := range tokens {
				tok = strings.TrimSpace(tok)
				if containsString(options, tok) {
					kept = append(kept, tok)
				} else {
					discarded = append(discarded, tok)
				}
			}
			if len(discarded) == 0 {
				continue
			}
			d := Diagnostic{Attribute: a.Name, Value: v.String(), Discarded: discarded}
			if len(kept) == 0 {
				delete(label, a.Name)
				d.Dropped = true
			} else {
				label[a.Name] = TextValue(strings.Join(kept, sep))
			}
			t.log.Warn("attribute labels are not in the labels list",
				slog.String("attribute", a.Name),
				slog.Any("discarded", discarded),
				slog.Any("kept", kept))
			diags = append(diags, d)
		}
	}
	return diags
}

// labelTokens splits a multi-label value. Sequences contribute one token
// per element.
func labelTokens(v LabelValue, sep string) []string {
	if v.Kind == KindSequence {
		out := make([]string, 0, len(v.Seq))
		for _, item := range v.Seq {
			out = append(out, scalarText(item))
		}
		return out
	}
	return strings.Split(v.String(), sep)
}
