package eval

import (
	"strings"
	"text/template/parse"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// References lists the top-level variables a template reads, in order of
// first use. Fields inside range and with bodies are relative to the new dot
// and are not reported; $.name references there are.
func References(tmpl string) ([]string, error) {
	tmpl = Normalize(tmpl)
	if !strings.Contains(tmpl, "{{") {
		return nil, nil
	}
	t, err := parseTemplate(tmpl)
	if err != nil {
		return nil, err
	}
	c := newCollector()
	if t.Tree != nil {
		c.walkTemplate(t.Tree.Root)
	}
	return c.names, nil
}

// ConditionReferences lists the variables a when-clause reads.
func ConditionReferences(cond string) ([]string, error) {
	cond = strings.TrimSpace(Normalize(cond))
	if cond == "" {
		return nil, nil
	}
	if strings.Contains(cond, "{{") {
		return References(cond)
	}
	tree, err := parser.Parse(cond)
	if err != nil {
		return nil, err
	}
	c := newCollector()
	ast.Walk(&tree.Node, c)
	return c.names, nil
}

type collector struct {
	names []string
	seen  map[string]bool
	// nested is set inside range and with bodies, where dot is rebound.
	nested bool
}

func newCollector() *collector {
	return &collector{seen: make(map[string]bool)}
}

func (c *collector) add(name string) {
	if name == "" || c.seen[name] {
		return
	}
	c.seen[name] = true
	c.names = append(c.names, name)
}

// Visit implements ast.Visitor.
func (c *collector) Visit(node *ast.Node) {
	if id, ok := (*node).(*ast.IdentifierNode); ok {
		c.add(id.Value)
	}
}

func (c *collector) walkTemplate(n parse.Node) {
	switch n := n.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			c.walkTemplate(child)
		}
	case *parse.ActionNode:
		c.walkTemplate(n.Pipe)
	case *parse.TemplateNode:
		c.walkTemplate(n.Pipe)
	case *parse.IfNode:
		c.walkTemplate(n.Pipe)
		c.walkTemplate(n.List)
		c.walkTemplate(n.ElseList)
	case *parse.RangeNode:
		c.walkTemplate(n.Pipe)
		c.walkNested(n.List)
		c.walkTemplate(n.ElseList)
	case *parse.WithNode:
		c.walkTemplate(n.Pipe)
		c.walkNested(n.List)
		c.walkTemplate(n.ElseList)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, cmd := range n.Cmds {
			c.walkTemplate(cmd)
		}
	case *parse.CommandNode:
		for _, arg := range n.Args {
			c.walkTemplate(arg)
		}
	case *parse.ChainNode:
		c.walkTemplate(n.Node)
	case *parse.FieldNode:
		if !c.nested {
			c.add(n.Ident[0])
		}
	case *parse.VariableNode:
		// $.name refers to the root scope.
		if len(n.Ident) > 1 && n.Ident[0] == "$" {
			c.add(n.Ident[1])
		}
	}
}

func (c *collector) walkNested(list *parse.ListNode) {
	prev := c.nested
	c.nested = true
	c.walkTemplate(list)
	c.nested = prev
}
