package attrs

import (
	"fmt"
	"strings"
)

// Template is a `{name}` placeholder template. `{{` and `}}` render as
// literal braces; a `{` that does not open a valid placeholder is kept as-is.
type Template struct {
	src  string
	segs []segment
	vars []string
}

type segment struct {
	text  string
	isVar bool
}

// ParseTemplate scans src once. It never fails.
func ParseTemplate(src string) *Template {
	t := &Template{src: src}
	var lit strings.Builder
	seen := map[string]struct{}{}

	flush := func() {
		if lit.Len() > 0 {
			t.segs = append(t.segs, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '{' && i+1 < len(src) && src[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(src) && src[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := placeholderEnd(src, i+1)
			if end < 0 {
				lit.WriteByte(c)
				continue
			}
			name := src[i+1 : end]
			flush()
			t.segs = append(t.segs, segment{text: name, isVar: true})
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				t.vars = append(t.vars, name)
			}
			i = end
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t
}

// placeholderEnd returns the index of the closing brace of a placeholder
// name starting at from, or -1.
func placeholderEnd(s string, from int) int {
	for j := from; j < len(s); j++ {
		switch s[j] {
		case '}':
			if j == from {
				return -1
			}
			return j
		case '{', '"', '\'', ' ', '\t', '\n', '\r', ':':
			return -1
		}
	}
	return -1
}

// Source returns the unparsed template text.
func (t *Template) Source() string { return t.src }

// Variables lists placeholder names in first-appearance order.
func (t *Template) Variables() []string {
	return append([]string(nil), t.vars...)
}

// Execute renders the template and fails on the first unbound variable.
func (t *Template) Execute(vars map[string]string) (string, error) {
	out, missing := t.ExecutePartial(vars)
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingVariable, missing[0])
	}
	return out, nil
}

// ExecutePartial renders unbound variables as empty strings and returns
// their names.
func (t *Template) ExecutePartial(vars map[string]string) (string, []string) {
	var b strings.Builder
	var missing []string
	for _, s := range t.segs {
		if !s.isVar {
			b.WriteString(s.text)
			continue
		}
		v, ok := vars[s.text]
		if !ok {
			missing = appendUnique(missing, s.text)
		}
		b.WriteString(v)
	}
	return b.String(), missing
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
