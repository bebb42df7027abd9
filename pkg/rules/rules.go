// Package rules validates and normalizes candidate answers.
//
// A variable's constraints are folded into exactly one Rule when the
// variable is loaded. Precedence is regexp, then choices, then type; the
// same rule drives both Validate and Sanitize so the two never disagree.
package rules

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Kind is the closed set of rule families.
type Kind int

const (
	None Kind = iota
	Regexp
	Choices
	Boolean
	Path
	Email
	Hostname
)

func (k Kind) String() string {
	switch k {
	case Regexp:
		return "regexp"
	case Choices:
		return "choices"
	case Boolean:
		return "boolean"
	case Path:
		return "path"
	case Email:
		return "email"
	case Hostname:
		return "hostname"
	default:
		return "none"
	}
}

var (
	truthy = []string{"true", "yes", "1"}
	falsy  = []string{"false", "no", "0"}
)

// Choice is one selectable answer: Key is typed, Label is stored.
type Choice struct {
	Key   string
	Label string
}

// Rule is a resolved validation rule.
type Rule struct {
	Kind    Kind
	Source  string         // pattern as declared
	Pattern *regexp.Regexp // Source anchored at position 0
	Choices []Choice
}

// Compile anchors pattern at the start of input, matching only a prefix the
// way the prompt has always matched.
func Compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("compile regexp %q: %w", pattern, err)
	}
	return re, nil
}

// TypeKind maps a declared type name to its rule kind. ok is false for
// unknown names.
func TypeKind(typ string) (Kind, bool) {
	switch typ {
	case "":
		return None, true
	case "bool", "boolean":
		return Boolean, true
	case "path":
		return Path, true
	case "email":
		return Email, true
	case "hostname":
		return Hostname, true
	default:
		return None, false
	}
}

// Validate reports whether raw satisfies r. When it does not, reason
// describes the failed rule for display in the next prompt.
func Validate(r Rule, raw string) (ok bool, reason string) {
	switch r.Kind {
	case Regexp:
		if r.Pattern == nil || r.Pattern.MatchString(raw) {
			return true, ""
		}
		return false, "must match " + r.Source
	case Choices:
		if _, found := r.label(raw); found {
			return true, ""
		}
		keys := make([]string, len(r.Choices))
		for i, c := range r.Choices {
			keys[i] = c.Key
		}
		return false, "must be one of " + strings.Join(keys, ", ")
	case Boolean:
		v := strings.ToLower(raw)
		if slices.Contains(truthy, v) || slices.Contains(falsy, v) {
			return true, ""
		}
		return false, "must be one of " + strings.Join(append(append([]string{}, truthy...), falsy...), ", ")
	case Path:
		if strings.HasPrefix(raw, "/") {
			return true, ""
		}
		return false, "must be an absolute path starting with /"
	case Email:
		if strings.Contains(raw, "@") {
			return true, ""
		}
		return false, "must be an email address"
	case Hostname:
		if !strings.Contains(raw, "/") {
			return true, ""
		}
		return false, "must be a hostname without /"
	default:
		return true, ""
	}
}

// Sanitize converts an answer into the stored value. Choices map a key to
// its label, booleans become bool, everything else is returned as is. A
// choices value that is not a key (a trusted default naming the label
// directly) is kept verbatim.
func Sanitize(r Rule, raw string) any {
	switch r.Kind {
	case Choices:
		if label, found := r.label(raw); found {
			return label
		}
		return raw
	case Boolean:
		return Truthy(raw)
	default:
		return raw
	}
}

// Truthy applies the boolean truthy test. It accepts the string form of an
// already normalized bool, which makes Sanitize idempotent for booleans.
func Truthy(raw string) bool {
	return slices.Contains(truthy, strings.ToLower(raw))
}

func (r Rule) label(key string) (string, bool) {
	for _, c := range r.Choices {
		if c.Key == key {
			return c.Label, true
		}
	}
	return "", false
}
