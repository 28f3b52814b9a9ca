package attrs

import (
	"encoding/json"
	"fmt"
)

// Response is one model completion.
type Response struct {
	Text           string
	GenerationInfo map[string]any
}

// ParseAttempt records one parse strategy run. Err is nil on success.
type ParseAttempt struct {
	Strategy string `json:"strategy"`
	Err      error  `json:"-"`
}

// Diagnostic records a value discarded by option validation, or a label
// that does not conform to the output schema. Attribute is empty for
// violations of the object as a whole.
type Diagnostic struct {
	Attribute string   `json:"attribute"`
	Value     string   `json:"value"`
	Discarded []string `json:"discarded"`
	Dropped   bool     `json:"dropped"` // the attribute key was removed
	Violation string   `json:"violation,omitempty"`
}

// LLMAnnotation is the labeling result of one row.
type LLMAnnotation struct {
	ID                  string                `json:"id"`
	SuccessfullyLabeled bool                  `json:"successfully_labeled"`
	Label               map[string]LabelValue `json:"label"`
	RawResponse         string                `json:"raw_response"`
	Prompt              string                `json:"prompt"`
	Error               *LabelingError        `json:"error,omitempty"`
	ConfidenceScore     map[string]float64    `json:"confidence_score,omitempty"`
	CurrSample          []byte                `json:"curr_sample,omitempty"`
	GenerationInfo      map[string]any        `json:"generation_info,omitempty"`
	SelectedLabels      map[string][]string   `json:"selected_labels_map,omitempty"`
	Attempts            []ParseAttempt        `json:"parse_attempts,omitempty"`
	Diagnostics         []Diagnostic          `json:"diagnostics,omitempty"`
}

// Sample decodes the snapshot of the input row.
func (a *LLMAnnotation) Sample() (Row, error) {
	if len(a.CurrSample) == 0 {
		return nil, nil
	}
	var r Row
	if err := json.Unmarshal(a.CurrSample, &r); err != nil {
		return nil, fmt.Errorf("decode sample: %w", err)
	}
	return r, nil
}

// LabelText returns the text form of one attribute and whether it is present.
func (a *LLMAnnotation) LabelText(attr string) (string, bool) {
	v, ok := a.Label[attr]
	if !ok {
		return "", false
	}
	return v.String(), true
}

func snapshotRow(r Row) []byte {
	if r == nil {
		return nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return b
}
