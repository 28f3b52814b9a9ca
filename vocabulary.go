package attrs

import (
	"strings"
	"sync"
)

// LabelVocabulary is the set of labels advertised to the model per
// attribute. It is safe for concurrent use; Grow serializes writers. The
// zero value is an empty vocabulary.
type LabelVocabulary struct {
	mu     sync.RWMutex
	labels map[string][]string
}

// NewLabelVocabulary starts a vocabulary from initial. The map is copied.
func NewLabelVocabulary(initial map[string][]string) *LabelVocabulary {
	v := &LabelVocabulary{labels: make(map[string][]string, len(initial))}
	for k, l := range initial {
		v.labels[k] = append([]string(nil), l...)
	}
	return v
}

// Track starts advertising labels for attr, which Grow may then extend.
func (v *LabelVocabulary) Track(attr string, labels ...string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.labels == nil {
		v.labels = make(map[string][]string)
	}
	cur := v.labels[attr]
	for _, l := range labels {
		if !containsString(cur, l) {
			cur = append(cur, l)
		}
	}
	if cur == nil {
		cur = []string{}
	}
	v.labels[attr] = cur
}

// Labels returns a copy of the labels for attr.
func (v *LabelVocabulary) Labels(attr string) ([]string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	l, ok := v.labels[attr]
	if !ok {
		return nil, false
	}
	return append([]string(nil), l...), true
}

// Grow appends labels found in the examples' ground truth to the attributes
// already tracked. Multi-label values are split on sep. It returns the
// number of labels added.
func (v *LabelVocabulary) Grow(defs []AttributeDefinition, examples []Row, sep string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	added := 0
	for _, eg := range examples {
		for i := range defs {
			a := &defs[i]
			cur, ok := v.labels[a.Name]
			if !ok {
				continue
			}
			label := eg[a.Name]
			if label == "" {
				continue
			}
			labels := []string{label}
			if a.IsMultilabel() {
				labels = strings.Split(label, sep)
			}
			for _, l := range labels {
				if !containsString(cur, l) {
					cur = append(cur, l)
					added++
				}
			}
			v.labels[a.Name] = cur
		}
	}
	return added
}

// Snapshot returns a deep copy for one prompt build or parse.
func (v *LabelVocabulary) Snapshot() map[string][]string {
	if v == nil {
		return nil
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string][]string, len(v.labels))
	for k, l := range v.labels {
		out[k] = append([]string(nil), l...)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
