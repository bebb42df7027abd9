package resolve

import (
	"context"
	"fmt"

	"github.com/yourlabs/remember/pkg/eval"
	"github.com/yourlabs/remember/pkg/fault"
)

// Evaluate renders a template against rc.Vars. When the template references
// a variable that is not known yet, that variable is resolved (prompting if
// needed, without persisting) and the template is evaluated again.
func (e *Engine) Evaluate(ctx context.Context, rc *Context, tmpl string) (string, error) {
	var out string
	err := e.retry(ctx, rc, tmpl, func() error {
		var err error
		out, err = eval.Resolve(tmpl, rc.Vars)
		return err
	})
	return out, err
}

// Condition evaluates a when-clause with the same dependency resolution as
// Evaluate.
func (e *Engine) Condition(ctx context.Context, rc *Context, cond string) (bool, error) {
	var out bool
	err := e.retry(ctx, rc, cond, func() error {
		var err error
		out, err = eval.Condition(cond, rc.Vars)
		return err
	})
	return out, err
}

// retry runs attempt until it succeeds, resolving one undefined variable per
// failed attempt. It gives up after MaxTries attempts, when a resolved
// variable is still undefined, or on any other evaluation error.
func (e *Engine) retry(ctx context.Context, rc *Context, expr string, attempt func() error) error {
	tried := make(map[string]bool)
	for i := 0; i < e.maxTries(); i++ {
		err := attempt()
		if err == nil {
			return nil
		}

		name, undefined := eval.AsUndefined(err)
		if !undefined {
			return &fault.Error{Kind: fault.UnresolvableExpression, Expr: expr, Err: err}
		}
		if tried[name] {
			return &fault.Error{
				Kind: fault.UnresolvableExpression,
				Name: name,
				Expr: expr,
				Msg:  fmt.Sprintf("could not render: %s (%s has no value)", expr, name),
			}
		}
		tried[name] = true

		e.disp.VV("resolving dependency", "name", name, "expression", expr)
		if _, _, err := e.Resolve(ctx, rc, name); err != nil {
			return err
		}
	}
	return &fault.Error{Kind: fault.UnresolvableExpression, Expr: expr}
}
