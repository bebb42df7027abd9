package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/yourlabs/remember/pkg/eval"
	"github.com/yourlabs/remember/pkg/rules"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "remember[0].regexp")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateFile performs the full 3-phase validation pipeline on a variables file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*File, []*ValidationError) {
	f, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return f, Validate(f)
}

// Validate runs the semantic and domain phases on an already loaded file.
func Validate(f *File) []*ValidationError {
	var all []*ValidationError
	all = append(all, validateSemantic(f)...)
	all = append(all, ValidateDomain(f)...)
	return all
}

// HasErrors reports whether errs contains anything above warning severity.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity != "warning" {
			return true
		}
	}
	return false
}

// validateSemantic validates the document against the JSON Schema.
func validateSemantic(f *File) []*ValidationError {
	semanticErr := func(format string, args ...any) []*ValidationError {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf(format, args...),
			Severity: "error",
		}}
	}

	data, err := json.Marshal(f)
	if err != nil {
		return semanticErr("marshal for schema validation: %v", err)
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return semanticErr("generate schema: %v", err)
	}

	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return semanticErr("unmarshal schema: %v", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("remember-v0.json", schemaDoc); err != nil {
		return semanticErr("add schema resource: %v", err)
	}
	sch, err := c.Compile("remember-v0.json")
	if err != nil {
		return semanticErr("compile schema: %v", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return semanticErr("unmarshal document: %v", err)
	}

	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return semanticErr("%v", err)
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Path:     strings.Join(cause.InstanceLocation, "/"),
				Message:  fmt.Sprintf("%v", cause.ErrorKind),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain performs Phase 3 domain-level validation.
// Returns a slice of errors; empty means valid.
func ValidateDomain(f *File) []*ValidationError {
	var errs []*ValidationError
	add := func(path, severity, format string, args ...any) {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
			Severity: severity,
		})
	}

	if len(f.Remember) == 0 {
		add("remember", "warning", "no variables declared")
	}
	if err := eval.Check(f.Fact); err != nil {
		add("fact", "error", "invalid fact name template: %v", err)
	}

	seen := make(map[string]int)
	for i := range f.Remember {
		v := &f.Remember[i]
		path := fmt.Sprintf("remember[%d]", i)

		if !identifierRe.MatchString(v.Name) {
			add(path+".name", "error", "name %q is not a valid identifier", v.Name)
		}
		if prev, dup := seen[v.Name]; dup {
			add(path+".name", "error", "duplicate variable %q (first declared at remember[%d])", v.Name, prev)
		} else {
			seen[v.Name] = i
		}

		if v.Question == "" {
			add(path+".question", "warning", "variable %q has no question; the prompt will be empty", v.Name)
		} else if err := eval.Check(v.Question); err != nil {
			add(path+".question", "error", "invalid question template: %v", err)
		}
		if v.Default != nil {
			if err := eval.Check(*v.Default); err != nil {
				add(path+".default", "error", "invalid default template: %v", err)
			}
		}
		if err := eval.CheckCondition(v.When); err != nil {
			add(path+".when", "error", "invalid when clause: %v", err)
		}

		if v.Regexp != "" {
			if _, err := rules.Compile(v.Regexp); err != nil {
				add(path+".regexp", "error", "invalid regex pattern in variable %q: %v", v.Name, err)
			}
		}
		if _, ok := rules.TypeKind(v.Type); !ok {
			add(path+".type", "error", "invalid type %q: must be bool, boolean, path, email, or hostname", v.Type)
		}

		// Only one rule family applies; say which fields lose.
		switch {
		case v.Regexp != "" && len(v.Choices) > 0:
			add(path+".choices", "warning", "choices are ignored because regexp is set")
		case v.Regexp != "" && v.Type != "":
			add(path+".type", "warning", "type %q is ignored because regexp is set", v.Type)
		case len(v.Choices) > 0 && v.Type != "":
			add(path+".type", "warning", "type %q is ignored because choices are set", v.Type)
		}
	}
	return errs
}
