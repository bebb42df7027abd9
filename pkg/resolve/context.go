package resolve

import (
	"github.com/yourlabs/remember/pkg/facts"
	"github.com/yourlabs/remember/pkg/schema"
)

// Context is the state of one resolution run. It is owned by the caller of
// Run (or of Resolve/Evaluate when used directly) and passed explicitly; the
// Engine itself holds no per-run state.
type Context struct {
	// Vars is the known-variable set templates are evaluated against. It
	// starts as the run context overlaid with the cached facts and only
	// grows.
	Vars map[string]any
	// Facts is the working copy of the durable fact set.
	Facts facts.Set

	file      *schema.File
	resolving map[string]bool // names on the current resolution stack
	asked     map[string]bool // names prompted for during this run
}

// NewContext creates a run context. Cached facts take precedence over run
// context values of the same name.
func NewContext(file *schema.File, runCtx map[string]any, prior facts.Set) *Context {
	if file == nil {
		file = &schema.File{}
	}
	vars := make(map[string]any, len(runCtx)+len(prior))
	for k, v := range runCtx {
		vars[k] = v
	}
	for k, v := range prior {
		vars[k] = v
	}
	return &Context{
		Vars:      vars,
		Facts:     prior.Clone(),
		file:      file,
		resolving: make(map[string]bool),
		asked:     make(map[string]bool),
	}
}

// Known returns the current value of name, if any.
func (c *Context) Known(name string) (any, bool) {
	v, ok := c.Vars[name]
	return v, ok
}

// record stores a final value in both the known-variable set and the facts.
func (c *Context) record(name string, value any) {
	c.Vars[name] = value
	c.Facts[name] = value
}
