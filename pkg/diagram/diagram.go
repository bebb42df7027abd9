// Package diagram draws the dependency graph between the variables of a
// remember file: which variables a question, default, or when-clause reads.
// Supports Mermaid flowchart and ASCII formats.
package diagram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/yourlabs/remember/pkg/eval"
	"github.com/yourlabs/remember/pkg/schema"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Via names the field a reference was found in.
type Via string

const (
	ViaQuestion Via = "question"
	ViaDefault  Via = "default"
	ViaWhen     Via = "when"
)

// Node is one variable. Undeclared nodes are referenced but not declared in
// the file; they must come from the run context.
type Node struct {
	Name     string
	Type     string
	Declared bool
}

// Edge says that To reads From through the given field.
type Edge struct {
	From string
	To   string
	Via  Via
}

// Graph is the variable dependency graph of one file.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// Build extracts the dependency graph of f. Nodes keep declaration order;
// undeclared references follow in order of first use.
func Build(f *schema.File) (*Graph, error) {
	if f == nil {
		return nil, fmt.Errorf("nil variables file")
	}
	g := &Graph{}
	index := make(map[string]int)
	for _, v := range f.Remember {
		index[v.Name] = len(g.Nodes)
		g.Nodes = append(g.Nodes, Node{Name: v.Name, Type: ruleLabel(v), Declared: true})
	}
	ref := func(name string) {
		if _, ok := index[name]; !ok {
			index[name] = len(g.Nodes)
			g.Nodes = append(g.Nodes, Node{Name: name})
		}
	}

	for i := range f.Remember {
		v := &f.Remember[i]
		sources := []struct {
			via  Via
			refs func() ([]string, error)
		}{
			{ViaQuestion, func() ([]string, error) { return eval.References(v.Question) }},
			{ViaDefault, func() ([]string, error) {
				if !v.HasDefault() {
					return nil, nil
				}
				return eval.References(*v.Default)
			}},
			{ViaWhen, func() ([]string, error) { return eval.ConditionReferences(v.When) }},
		}
		for _, src := range sources {
			names, err := src.refs()
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", v.Name, src.via, err)
			}
			for _, n := range names {
				ref(n)
				g.Edges = append(g.Edges, Edge{From: n, To: v.Name, Via: src.via})
			}
		}
	}
	return g, nil
}

func ruleLabel(v schema.Variable) string {
	switch {
	case v.Regexp != "":
		return "regexp"
	case len(v.Choices) > 0:
		return "choices"
	default:
		return v.Type
	}
}

// DependsOn returns the distinct variables name reads, sorted.
func (g *Graph) DependsOn(name string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range g.Edges {
		if e.To == name && !seen[e.From] {
			seen[e.From] = true
			out = append(out, e.From)
		}
	}
	sort.Strings(out)
	return out
}

// Undeclared returns the referenced names no variable declares.
func (g *Graph) Undeclared() []string {
	var out []string
	for _, n := range g.Nodes {
		if !n.Declared {
			out = append(out, n.Name)
		}
	}
	return out
}

// Cycles returns each dependency cycle once, as the list of names on it.
// Self references count as cycles.
func (g *Graph) Cycles() [][]string {
	adj := make(map[string][]string)
	for _, e := range g.Edges {
		adj[e.To] = appendUnique(adj[e.To], e.From)
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int)
	var stack []string
	var cycles [][]string
	var visit func(string)
	visit = func(n string) {
		color[n] = grey
		stack = append(stack, n)
		for _, dep := range adj[n] {
			switch color[dep] {
			case white:
				visit(dep)
			case grey:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == dep {
						cycles = append(cycles, append([]string(nil), stack[i:]...))
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
	}
	for _, n := range g.Nodes {
		if color[n.Name] == white {
			visit(n.Name)
		}
	}
	return cycles
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}

// Generate produces a diagram string from a dependency graph.
func Generate(g *Graph, format Format) (string, error) {
	if g == nil {
		return "", fmt.Errorf("nil graph")
	}
	switch format {
	case FormatMermaid:
		return generateMermaid(g), nil
	case FormatASCII:
		return generateASCII(g), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// --- Mermaid flowchart ---

func generateMermaid(g *Graph) string {
	var b strings.Builder
	b.WriteString("flowchart LR\n")

	for _, n := range g.Nodes {
		b.WriteString("    " + nodeDefinition(n) + "\n")
	}
	for _, e := range g.Edges {
		arrow := "-->"
		if e.Via == ViaWhen {
			arrow = "-.->"
		}
		b.WriteString(fmt.Sprintf("    %s %s|%q| %s\n", safeID(e.From), arrow, string(e.Via), safeID(e.To)))
	}
	for _, n := range g.Nodes {
		if !n.Declared {
			b.WriteString(fmt.Sprintf("    style %s fill:#a00,stroke:#800,color:#fff\n", safeID(n.Name)))
		}
	}
	return b.String()
}

func nodeDefinition(n Node) string {
	id := safeID(n.Name)
	switch {
	case !n.Declared:
		return fmt.Sprintf(`%s(["%s"])`, id, escMermaid(n.Name))
	case n.Type != "":
		return fmt.Sprintf(`%s["%s<br/>%s"]`, id, escMermaid(n.Name), escMermaid(n.Type))
	default:
		return fmt.Sprintf(`%s["%s"]`, id, escMermaid(n.Name))
	}
}

// --- ASCII ---

// generateASCII prints one line per variable: its name, its rule, and what
// it reads through which field.
func generateASCII(g *Graph) string {
	var b strings.Builder
	if len(g.Nodes) == 0 {
		b.WriteString("(no variables)\n")
		return b.String()
	}

	nameWidth, typeWidth := 0, 0
	for _, n := range g.Nodes {
		nameWidth = max(nameWidth, runewidth.StringWidth(n.Name))
		typeWidth = max(typeWidth, runewidth.StringWidth(n.Type))
	}

	for _, n := range g.Nodes {
		line := padRight(n.Name, nameWidth)
		if typeWidth > 0 {
			line += "  " + padRight(n.Type, typeWidth)
		}
		if !n.Declared {
			line += "  ? not declared"
		} else if deps := describeDeps(g, n.Name); deps != "" {
			line += "  ← " + deps
		}
		b.WriteString(strings.TrimRight(line, " ") + "\n")
	}

	for _, c := range g.Cycles() {
		b.WriteString("cycle: " + strings.Join(append(c, c[0]), " → ") + "\n")
	}
	return b.String()
}

// describeDeps renders "a (question, default), b (when)".
func describeDeps(g *Graph, name string) string {
	var order []string
	vias := make(map[string][]string)
	for _, e := range g.Edges {
		if e.To != name {
			continue
		}
		if _, ok := vias[e.From]; !ok {
			order = append(order, e.From)
		}
		vias[e.From] = appendUnique(vias[e.From], string(e.Via))
	}
	parts := make([]string, len(order))
	for i, from := range order {
		parts[i] = fmt.Sprintf("%s (%s)", from, strings.Join(vias[from], ", "))
	}
	return strings.Join(parts, ", ")
}

// --- string helpers ---

func padRight(s string, width int) string {
	return s + strings.Repeat(" ", width-runewidth.StringWidth(s))
}

func safeID(id string) string {
	r := strings.NewReplacer("-", "_", " ", "_", ".", "_")
	return r.Replace(id)
}

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}
