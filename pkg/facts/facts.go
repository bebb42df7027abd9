// Package facts persists fact sets as executable local-fact scripts.
//
// An artifact is a POSIX shell script that prints its facts as JSON:
//
//	#!/bin/sh
//	cat <<EOF
//	{
//	    "color": "blue"
//	}
//	EOF
//
// Keys are sorted and indented with four spaces. The script can be executed
// by a fact gatherer or parsed directly with Extract.
package facts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Set is a fact name → value mapping.
type Set map[string]any

const (
	header = "#!/bin/sh\ncat <<EOF\n"
	footer = "\nEOF"
)

// Clone returns a shallow copy of s. A nil set clones to an empty one.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Keys returns the fact names in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Render produces the artifact content for s.
func Render(s Set) ([]byte, error) {
	if s == nil {
		s = Set{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(map[string]any(s)); err != nil {
		return nil, fmt.Errorf("encode facts: %w", err)
	}
	body := heredocSafe(bytes.TrimRight(buf.Bytes(), "\n"))

	out := make([]byte, 0, len(header)+len(body)+len(footer))
	out = append(out, header...)
	out = append(out, body...)
	out = append(out, footer...)
	return out, nil
}

// heredocSafe rewrites the characters an unquoted heredoc would interpret.
// They can only occur inside JSON strings, where the \u form is equivalent,
// so the shell prints exactly the JSON that Extract decodes.
func heredocSafe(js []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(js))
	for i := 0; i < len(js); i++ {
		switch c := js[i]; c {
		case '$':
			out.WriteString("\\u0024")
		case '`':
			out.WriteString("\\u0060")
		case '\\':
			if i+1 < len(js) && js[i+1] == '\\' {
				out.WriteString("\\u005c")
				i++
				continue
			}
			out.WriteByte(c)
			if i+1 < len(js) {
				i++
				out.WriteByte(js[i])
			}
		default:
			out.WriteByte(c)
		}
	}
	return out.Bytes()
}

// ErrNoFacts is returned by Extract when the content holds no heredoc body.
var ErrNoFacts = errors.New("no embedded facts found")

// Extract parses the JSON embedded between the cat <<EOF and EOF markers.
// Content that is bare JSON is accepted as well.
func Extract(content []byte) (Set, error) {
	text := string(content)
	body := text
	if start := strings.Index(text, "<<EOF\n"); start >= 0 {
		rest := text[start+len("<<EOF\n"):]
		end := strings.LastIndex(rest, "\nEOF")
		if end < 0 {
			return nil, fmt.Errorf("unterminated heredoc: %w", ErrNoFacts)
		}
		body = rest[:end]
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrNoFacts
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var s Set
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode facts: %w", err)
	}
	if s == nil {
		s = Set{}
	}
	return normalizeNumbers(s), nil
}

// normalizeNumbers turns json.Number into int64 where exact, float64 otherwise.
func normalizeNumbers(s Set) Set {
	for k, v := range s {
		s[k] = normalizeValue(v)
	}
	return s
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, inner := range t {
			t[k] = normalizeValue(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = normalizeValue(inner)
		}
		return t
	default:
		return v
	}
}

// FactName makes a name safe for use as an artifact name: '.' and '/'
// become '_'.
func FactName(name string) string {
	return strings.NewReplacer(".", "_", "/", "_").Replace(name)
}

// RoleName reduces a role reference to the role itself: the last path
// segment, without a trailing ",version". github.com/you/your.role becomes
// your.role.
func RoleName(role string) string {
	role = strings.TrimRight(role, "/")
	if i := strings.LastIndex(role, "/"); i >= 0 {
		role = role[i+1:]
	}
	if i := strings.Index(role, ","); i >= 0 {
		role = role[:i]
	}
	return role
}
