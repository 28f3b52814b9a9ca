package attrs

import "log/slog"

// Explode splits annotations into per-attribute series keyed by attribute
// name. Attributes are ordered by first appearance, visiting configured
// attributes before unknown keys within one annotation.
func (t *Task) Explode(anns []*LLMAnnotation) ([]string, map[string][]AttributeAnnotation) {
	var order []string
	series := map[string][]AttributeAnnotation{}
	for i, ann := range anns {
		if ann == nil {
			continue
		}
		for _, attr := range t.labelKeys(ann.Label) {
			conf := 0.0
			if ann.ConfidenceScore != nil {
				conf = ann.ConfidenceScore[attr]
			}
			if _, ok := series[attr]; !ok {
				order = append(order, attr)
			}
			series[attr] = append(series[attr], AttributeAnnotation{
				RowIndex:            i,
				Attribute:           attr,
				SuccessfullyLabeled: ann.SuccessfullyLabeled,
				Label:               ann.Label[attr],
				ConfidenceScore:     conf,
				Error:               ann.Error,
			})
		}
	}
	return order, series
}

func (t *Task) labelKeys(label map[string]LabelValue) []string {
	keys := make([]string, 0, len(label))
	known := make(map[string]struct{}, len(t.cfg.Attributes))
	for _, a := range t.cfg.Attributes {
		known[a.Name] = struct{}{}
		if _, ok := label[a.Name]; ok {
			keys = append(keys, a.Name)
		}
	}
	for _, k := range sortedKeys(label) {
		if _, ok := known[k]; !ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Eval scores annotations against ground truth. groundTruth maps an
// attribute to a series aligned with anns; attributes without a series, and
// rows whose ground truth is empty, are skipped. Per-attribute results are
// named "<attribute>:<metric>" and followed by one "Macro:<metric>" mean
// per metric name.
func (t *Task) Eval(anns []*LLMAnnotation, groundTruth map[string][]string, extra ...Metric) []MetricResult {
	order, series := t.Explode(anns)
	metrics := append(append([]Metric(nil), t.metrics...), extra...)

	var results []MetricResult
	var macroOrder []string
	macro := map[string][]float64{}

	for _, attr := range order {
		truth, ok := groundTruth[attr]
		if !ok || truth == nil {
			continue
		}
		var preds []AttributeAnnotation
		var gt []string
		for _, p := range series[attr] {
			if p.RowIndex >= len(truth) || truth[p.RowIndex] == "" {
				continue
			}
			preds = append(preds, p)
			gt = append(gt, truth[p.RowIndex])
		}
		if len(preds) == 0 {
			t.log.Debug("no ground truth rows for attribute", "attribute", attr)
			continue
		}
		for _, m := range metrics {
			for _, r := range m.Compute(preds, gt) {
				results = append(results, MetricResult{Name: attr + ":" + r.Name, Value: r.Value})
				if _, seen := macro[r.Name]; !seen {
					macroOrder = append(macroOrder, r.Name)
				}
				macro[r.Name] = append(macro[r.Name], r.Value)
			}
		}
	}

	for _, name := range macroOrder {
		results = append(results, MetricResult{Name: "Macro:" + name, Value: mean(macro[name])})
	}
	t.log.Debug("evaluated annotations", slog.Int("annotations", len(anns)), slog.Int("results", len(results)))
	return results
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
