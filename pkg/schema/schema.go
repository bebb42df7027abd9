// Package schema defines the Go struct types for the variables YAML document
// and provides strict YAML parsing.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/yourlabs/remember/pkg/fault"
	"github.com/yourlabs/remember/pkg/rules"
	"gopkg.in/yaml.v3"
)

// File is a variables document: the ordered list of facts to remember.
type File struct {
	// Fact names the stored fact set. It is a template; empty means the
	// role name from the run context.
	Fact     string     `yaml:"fact,omitempty"     json:"fact,omitempty"`
	Intro    string     `yaml:"intro,omitempty"    json:"intro,omitempty"    jsonschema:"description=Markdown shown once before the first question"`
	Remember []Variable `yaml:"remember"           json:"remember"           jsonschema:"required"`
}

// Variable declares one askable value.
type Variable struct {
	Name     string  `yaml:"name"               json:"name"               jsonschema:"required,pattern=^[A-Za-z_][A-Za-z0-9_]*$"`
	Question string  `yaml:"question,omitempty" json:"question,omitempty"`
	Type     string  `yaml:"type,omitempty"     json:"type,omitempty"     jsonschema:"enum=bool,enum=boolean,enum=path,enum=email,enum=hostname"`
	Regexp   string  `yaml:"regexp,omitempty"   json:"regexp,omitempty"`
	Choices  Choices `yaml:"choices,omitempty"  json:"choices,omitempty"`
	Default  *string `yaml:"default,omitempty"  json:"default,omitempty"`
	When     string  `yaml:"when,omitempty"     json:"when,omitempty"`

	rule     rules.Rule
	compiled bool
}

// Choices is an ordered key → label mapping. The key is what the operator
// types, the label is what gets stored.
type Choices []rules.Choice

// UnmarshalYAML keeps the declaration order of a choices mapping.
func (c *Choices) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: choices must be a mapping of key to label", value.Line)
	}
	out := make(Choices, 0, len(value.Content)/2)
	seen := make(map[string]bool)
	for i := 0; i+1 < len(value.Content); i += 2 {
		k, v := value.Content[i], value.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: choice keys and labels must be scalars", k.Line)
		}
		if seen[k.Value] {
			return fmt.Errorf("line %d: duplicate choice %q", k.Line, k.Value)
		}
		seen[k.Value] = true
		out = append(out, rules.Choice{Key: k.Value, Label: v.Value})
	}
	*c = out
	return nil
}

// MarshalJSON renders choices as an object in declaration order.
func (c Choices) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ch := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(ch.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(ch.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// HasDefault reports whether a default expression is declared, including an
// explicitly empty one.
func (v *Variable) HasDefault() bool {
	return v.Default != nil
}

// Rule returns the validation rule resolved at load time. Variables built in
// code are compiled lazily; an invalid regexp then yields a rule that accepts
// everything, which Compile would have rejected.
func (v *Variable) Rule() rules.Rule {
	if !v.compiled {
		_ = v.Compile()
	}
	return v.rule
}

// Compile folds regexp, choices and type into a single rule with precedence
// regexp > choices > type.
func (v *Variable) Compile() error {
	v.compiled = true
	switch {
	case v.Regexp != "":
		re, err := rules.Compile(v.Regexp)
		if err != nil {
			v.rule = rules.Rule{Kind: rules.None}
			return err
		}
		v.rule = rules.Rule{Kind: rules.Regexp, Source: v.Regexp, Pattern: re}
	case len(v.Choices) > 0:
		v.rule = rules.Rule{Kind: rules.Choices, Choices: []rules.Choice(v.Choices)}
	default:
		kind, ok := rules.TypeKind(v.Type)
		if !ok {
			v.rule = rules.Rule{Kind: rules.None}
			return fmt.Errorf("unknown type %q", v.Type)
		}
		v.rule = rules.Rule{Kind: kind}
	}
	return nil
}

// Lookup returns the variable declared with name, or a SpecNotFound error.
func (f *File) Lookup(name string) (*Variable, error) {
	for i := range f.Remember {
		if f.Remember[i].Name == name {
			return &f.Remember[i], nil
		}
	}
	return nil, &fault.Error{Kind: fault.SpecNotFound, Name: name}
}

// LoadFile reads and parses a variables file from disk.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open variables: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a variables document with strict unknown-field rejection and
// resolves every variable's rule. Any structural problem is MalformedSpec.
func Load(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fault.Wrap(fault.MalformedSpec, err, "decode variables")
	}
	for i := range f.Remember {
		v := &f.Remember[i]
		if v.Name == "" {
			return nil, fault.New(fault.MalformedSpec, "remember[%d] has no name", i)
		}
		if err := v.Compile(); err != nil {
			return nil, &fault.Error{Kind: fault.MalformedSpec, Name: v.Name, Msg: "variable " + v.Name, Err: err}
		}
	}
	return &f, nil
}
