package attrs

import (
	"sort"
	"strings"
)

// MetricResult is one named metric value.
type MetricResult struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// AttributeAnnotation is the slice of an LLMAnnotation concerning one
// attribute.
type AttributeAnnotation struct {
	RowIndex            int
	Attribute           string
	SuccessfullyLabeled bool
	Label               LabelValue
	ConfidenceScore     float64
	Error               *LabelingError
}

func (a AttributeAnnotation) completed() bool {
	return a.SuccessfullyLabeled && !a.Label.IsEmpty()
}

// Metric scores predictions against ground truth aligned by position.
type Metric interface {
	Compute(preds []AttributeAnnotation, truth []string) []MetricResult
}

// SupportMetric counts the evaluated rows.
type SupportMetric struct{}

func (SupportMetric) Compute(preds []AttributeAnnotation, _ []string) []MetricResult {
	return []MetricResult{{Name: "support", Value: float64(len(preds))}}
}

// CompletionRateMetric is the share of rows that produced a non-empty value.
type CompletionRateMetric struct{}

func (CompletionRateMetric) Compute(preds []AttributeAnnotation, _ []string) []MetricResult {
	if len(preds) == 0 {
		return []MetricResult{{Name: "completion_rate", Value: 0}}
	}
	done := 0
	for _, p := range preds {
		if p.completed() {
			done++
		}
	}
	return []MetricResult{{Name: "completion_rate", Value: float64(done) / float64(len(preds))}}
}

// AccuracyMetric is the exact-match rate among completed rows, comparing
// whitespace-trimmed text.
type AccuracyMetric struct{}

func (AccuracyMetric) Compute(preds []AttributeAnnotation, truth []string) []MetricResult {
	total, correct := 0, 0
	for i, p := range preds {
		if !p.completed() || i >= len(truth) {
			continue
		}
		total++
		if matches(p, truth[i]) {
			correct++
		}
	}
	if total == 0 {
		return []MetricResult{{Name: "accuracy", Value: 0}}
	}
	return []MetricResult{{Name: "accuracy", Value: float64(correct) / float64(total)}}
}

// AUROCMetric is the area under the ROC curve of confidence scores against
// correctness. Nothing is reported unless both correct and incorrect
// completed rows exist.
type AUROCMetric struct{}

func (AUROCMetric) Compute(preds []AttributeAnnotation, truth []string) []MetricResult {
	var pos, neg []float64
	for i, p := range preds {
		if !p.completed() || i >= len(truth) {
			continue
		}
		if matches(p, truth[i]) {
			pos = append(pos, p.ConfidenceScore)
		} else {
			neg = append(neg, p.ConfidenceScore)
		}
	}
	if len(pos) == 0 || len(neg) == 0 {
		return nil
	}
	return []MetricResult{{Name: "auroc", Value: auroc(pos, neg)}}
}

func matches(p AttributeAnnotation, truth string) bool {
	return strings.TrimSpace(p.Label.String()) == strings.TrimSpace(truth)
}

// auroc computes the Mann-Whitney statistic with ties counted as one half.
func auroc(pos, neg []float64) float64 {
	sorted := append([]float64(nil), neg...)
	sort.Float64s(sorted)
	var sum float64
	for _, p := range pos {
		below := sort.SearchFloat64s(sorted, p)
		equal := sort.Search(len(sorted), func(i int) bool { return sorted[i] > p }) - below
		sum += float64(below) + 0.5*float64(equal)
	}
	return sum / float64(len(pos)*len(neg))
}
