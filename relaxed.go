package attrs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tailscale/hujson"
)

// decodeRelaxedObject parses s as JSON with comments and trailing commas
// allowed. If that fails it retries once after quoting bare identifier keys
// and rewriting single-quoted strings. The top-level value must be an object.
func decodeRelaxedObject(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, ErrEmptyResponse
	}
	std, err := hujson.Standardize([]byte(s))
	if err != nil {
		var rerr error
		std, rerr = hujson.Standardize([]byte(repairRelaxed(s)))
		if rerr != nil {
			return nil, err
		}
	}

	dec := json.NewDecoder(bytes.NewReader(std))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotJSONObject, v)
	}
	return obj, nil
}

// repairRelaxed quotes bare identifier keys and turns single-quoted strings
// into double-quoted ones. String contents and comments are copied as is.
func repairRelaxed(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "\ufeff")
	var b strings.Builder
	b.Grow(len(s) + 16)
	var last byte // last significant byte outside strings and comments
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			i = copyString(&b, s, i)
			last = '"'
		case c == '/' && i+1 < len(s) && (s[i+1] == '/' || s[i+1] == '*'):
			i = copyComment(&b, s, i)
		case isIdentStart(c) && (last == '{' || last == ','):
			j := i + 1
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			k := j
			for k < len(s) && isSpace(s[k]) {
				k++
			}
			if k < len(s) && s[k] == ':' {
				b.WriteByte('"')
				b.WriteString(s[i:j])
				b.WriteByte('"')
			} else {
				b.WriteString(s[i:j])
			}
			last = s[j-1]
			i = j
		default:
			b.WriteByte(c)
			if !isSpace(c) {
				last = c
			}
			i++
		}
	}
	return b.String()
}

// copyString writes the string starting at s[i] as a double-quoted string
// and returns the index after its closing quote.
func copyString(b *strings.Builder, s string, i int) int {
	q := s[i]
	b.WriteByte('"')
	for i++; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			if q == '\'' && s[i+1] == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte(c)
				b.WriteByte(s[i+1])
			}
			i++
		case c == q:
			b.WriteByte('"')
			return i + 1
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	return i
}

func copyComment(b *strings.Builder, s string, i int) int {
	end := len(s)
	if s[i+1] == '/' {
		if n := strings.IndexByte(s[i:], '\n'); n >= 0 {
			end = i + n
		}
	} else if n := strings.Index(s[i+2:], "*/"); n >= 0 {
		end = i + 2 + n + 2
	}
	b.WriteString(s[i:end])
	return end
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || ('0' <= c && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// escapeNewlinesInStrings replaces raw newlines inside double-quoted spans
// with `\n`. Quotes are paired left to right; escapes are not interpreted.
func escapeNewlinesInStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inString = !inString
			b.WriteByte(c)
		case c == '\n' && inString:
			b.WriteString(`\n`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
