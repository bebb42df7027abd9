package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/yourlabs/remember/pkg/eval"
	"github.com/yourlabs/remember/pkg/facts"
	"github.com/yourlabs/remember/pkg/fault"
	"github.com/yourlabs/remember/pkg/schema"
)

// StateSuccess is the previous-run state that suppresses force-ask.
const StateSuccess = "success"

// Request is everything a host supplies for one run on one target.
type Request struct {
	File *schema.File
	// Name is the fact name the result is saved under.
	Name string
	// Prior is the fact set persisted by the previous run.
	Prior facts.Set
	// Context is run metadata visible to templates (role_name, ...).
	Context map[string]any
	// ForceAsk lists variables to ask again even when cached: comma
	// separated names, or "*" / "all".
	ForceAsk string
	// PreviousState is the state recorded by the previous run. "success"
	// disables ForceAsk.
	PreviousState string
	// Overrides are stored as facts last, bypassing resolution.
	Overrides map[string]any
	// State, when set, is recorded as the "state" fact.
	State string
}

// Result is the outcome of a successful run.
type Result struct {
	Name    string
	Facts   facts.Set
	Asked   []string // variables resolved during the run, in order
	Reused  []string // variables taken from the cache
	Skipped []string // variables whose when-clause was false
	Unset   []string // variables left without a value
}

// Run resolves every declared variable in order and saves the fact set.
// On failure nothing is saved; the returned error is a *fault.Error whose
// Partial field holds the facts resolved so far.
func (e *Engine) Run(ctx context.Context, req *Request) (*Result, error) {
	file := req.File
	if file == nil {
		file = &schema.File{}
	}
	rc := NewContext(file, req.Context, req.Prior)
	res := &Result{Name: req.Name}
	fail := func(err error) (*Result, error) {
		return nil, fault.WithPartial(err, rc.Facts)
	}

	suppressed := req.PreviousState == StateSuccess
	for i := range file.Remember {
		v := &file.Remember[i]
		log := e.disp.With("variable", v.Name)
		log.VV("now dealing with variable")

		if v.When != "" {
			ok, err := e.Condition(ctx, rc, v.When)
			if err != nil {
				return fail(err)
			}
			if !ok {
				log.V("skipped", "when", v.When)
				delete(rc.Facts, v.Name)
				res.Skipped = append(res.Skipped, v.Name)
				continue
			}
		}

		force := !suppressed && Forced(req.ForceAsk, v.Name) && !rc.asked[v.Name]
		cur, known := rc.Known(v.Name)
		switch {
		case force || !known:
			_, resolved, err := e.Resolve(ctx, rc, v.Name)
			if err != nil {
				return fail(err)
			}
			if !resolved && known {
				// Forced but nobody to ask: keep the remembered value.
				rc.Facts[v.Name] = cur
				res.Reused = append(res.Reused, v.Name)
				continue
			}
			if !resolved {
				delete(rc.Facts, v.Name)
				res.Unset = append(res.Unset, v.Name)
				continue
			}
			res.Asked = append(res.Asked, v.Name)
		default:
			rc.Facts[v.Name] = cur
			if rc.asked[v.Name] {
				res.Asked = append(res.Asked, v.Name)
			} else {
				res.Reused = append(res.Reused, v.Name)
			}
		}
		log.V("resolved", "value", rc.Vars[v.Name])
	}

	for k, v := range req.Overrides {
		rc.Facts[k] = v
	}
	if req.State != "" {
		rc.Facts["state"] = req.State
	}

	if e.store != nil {
		if err := e.store.Save(req.Name, rc.Facts); err != nil {
			return fail(err)
		}
	}
	res.Facts = rc.Facts
	return res, nil
}

// Forced reports whether the force-ask list selects name.
func Forced(list, name string) bool {
	for _, f := range strings.Split(list, ",") {
		switch f = strings.TrimSpace(f); f {
		case "":
			continue
		case "*", "all":
			return true
		case name:
			return true
		}
	}
	return false
}

// FactName picks the name a run's facts are stored under: the remember_fact
// context value, else the file's fact template, else the role_name context
// value reduced to the role itself. Templates see only the run context.
func FactName(file *schema.File, runCtx map[string]any) (string, error) {
	tmpl := ""
	if v, ok := runCtx["remember_fact"]; ok {
		tmpl = fmt.Sprint(v)
	} else if file != nil {
		tmpl = file.Fact
	}
	if tmpl != "" {
		name, err := eval.Resolve(tmpl, runCtx)
		if err != nil {
			return "", &fault.Error{Kind: fault.UnresolvableExpression, Expr: tmpl, Err: err}
		}
		if name = strings.TrimSpace(name); name != "" {
			return facts.FactName(name), nil
		}
	}
	if role, ok := runCtx["role_name"]; ok && fmt.Sprint(role) != "" {
		return facts.FactName(facts.RoleName(fmt.Sprint(role))), nil
	}
	return "", fault.New(fault.MalformedSpec, "no fact name: set fact in the variables file or provide role_name")
}
