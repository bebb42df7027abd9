// Package eval implements template and condition evaluation for variable
// questions, defaults and when-clauses.
//
// Templates use Go text/template syntax ({{ .hostname }}); the ASCII-safe
// j2((...)) form is rewritten to {{...}} before parsing. Conditions without
// braces are expr-lang boolean expressions over the same variables. Both
// report a reference to an unknown variable as *UndefinedError so callers can
// resolve it and retry.
package eval

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/expr-lang/expr"
)

// UndefinedError reports a reference to a variable that is not in scope.
type UndefinedError struct {
	Name string
	Err  error
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("'%s' is undefined", e.Name)
}

func (e *UndefinedError) Unwrap() error { return e.Err }

// AsUndefined extracts the undefined variable name from err.
func AsUndefined(err error) (string, bool) {
	var ue *UndefinedError
	if errors.As(err, &ue) {
		return ue.Name, true
	}
	return "", false
}

var (
	// text/template with missingkey=error on a map scope.
	missingKeyRe = regexp.MustCompile(`map has no entry for key "([^"]+)"`)
	// expr-lang checker on a map env.
	unknownNameRe = regexp.MustCompile(`unknown name ([A-Za-z_][A-Za-z0-9_]*)`)
)

// Normalize rewrites the j2((expr)) delimiters to the native {{expr}} form.
func Normalize(tmpl string) string {
	if !strings.Contains(tmpl, "j2((") {
		return tmpl
	}
	return strings.ReplaceAll(strings.ReplaceAll(tmpl, "j2((", "{{"), "))", "}}")
}

// Resolve renders a template string against a variable scope.
// Example: Resolve("https://{{ .hostname }}/healthz", {"hostname": "srv1"}) → "https://srv1/healthz"
func Resolve(tmpl string, vars map[string]any) (string, error) {
	tmpl = Normalize(tmpl)
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil // fast path for literals
	}

	t, err := parseTemplate(tmpl)
	if err != nil {
		return "", err
	}

	if vars == nil {
		vars = map[string]any{}
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		if m := missingKeyRe.FindStringSubmatch(err.Error()); m != nil {
			return "", &UndefinedError{Name: m[1], Err: err}
		}
		return "", fmt.Errorf("template eval: %w", err)
	}
	return buf.String(), nil
}

// Check parses tmpl without executing it.
func Check(tmpl string) error {
	tmpl = Normalize(tmpl)
	if !strings.Contains(tmpl, "{{") {
		return nil
	}
	_, err := parseTemplate(tmpl)
	return err
}

func parseTemplate(tmpl string) (*template.Template, error) {
	t, err := template.New("").Funcs(builtinFuncs()).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("template parse: %w", err)
	}
	return t, nil
}

// Condition evaluates a when-clause. A clause containing {{ is rendered as a
// template and judged by Truthy; anything else is compiled as an expr-lang
// expression. Non-bool expression results are judged by Truthy on their
// string form.
func Condition(cond string, vars map[string]any) (bool, error) {
	cond = strings.TrimSpace(Normalize(cond))
	if cond == "" {
		return true, nil // no condition = always true
	}

	if strings.Contains(cond, "{{") {
		val, err := Resolve(cond, vars)
		if err != nil {
			return false, err
		}
		return Truthy(val), nil
	}

	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = v
	}
	program, err := expr.Compile(cond, expr.Env(env))
	if err != nil {
		if m := unknownNameRe.FindStringSubmatch(err.Error()); m != nil {
			return false, &UndefinedError{Name: m[1], Err: err}
		}
		return false, fmt.Errorf("compile condition %q: %w", cond, err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval condition %q: %w", cond, err)
	}
	if b, ok := output.(bool); ok {
		return b, nil
	}
	if output == nil {
		return false, nil
	}
	return Truthy(fmt.Sprint(output)), nil
}

// CheckCondition verifies a when-clause is syntactically valid.
func CheckCondition(cond string) error {
	cond = strings.TrimSpace(Normalize(cond))
	if cond == "" {
		return nil
	}
	if strings.Contains(cond, "{{") {
		return Check(cond)
	}
	if _, err := expr.Compile(cond); err != nil {
		return fmt.Errorf("compile condition %q: %w", cond, err)
	}
	return nil
}

// Truthy judges a rendered value the way a when-clause does: empty, "false",
// "no", "0" and "<no value>" are false, anything else is true.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "no", "0", "<no value>":
		return false
	}
	return true
}

// builtinFuncs provides template functions for expressions.
func builtinFuncs() template.FuncMap {
	return template.FuncMap{
		"eq": func(a, b any) bool {
			return fmt.Sprint(a) == fmt.Sprint(b)
		},
		"ne": func(a, b any) bool {
			return fmt.Sprint(a) != fmt.Sprint(b)
		},
		"contains": func(s, substr any) bool {
			return strings.Contains(fmt.Sprint(s), fmt.Sprint(substr))
		},
		"hasPrefix": func(s, prefix any) bool {
			return strings.HasPrefix(fmt.Sprint(s), fmt.Sprint(prefix))
		},
		"hasSuffix": func(s, suffix any) bool {
			return strings.HasSuffix(fmt.Sprint(s), fmt.Sprint(suffix))
		},
		"lower": func(s any) string {
			return strings.ToLower(fmt.Sprint(s))
		},
		"upper": func(s any) string {
			return strings.ToUpper(fmt.Sprint(s))
		},
		"replace": func(s, old, new any) string {
			return strings.ReplaceAll(fmt.Sprint(s), fmt.Sprint(old), fmt.Sprint(new))
		},
		"default": func(def, val any) any {
			if val == nil || fmt.Sprint(val) == "" {
				return def
			}
			return val
		},
	}
}
