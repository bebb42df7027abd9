// Package resolve decides, variable by variable, whether a fact must be asked
// for, and drives the prompt, validation and template evaluation needed to
// obtain it.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yourlabs/remember/pkg/display"
	"github.com/yourlabs/remember/pkg/facts"
	"github.com/yourlabs/remember/pkg/fault"
	"github.com/yourlabs/remember/pkg/rules"
	"github.com/yourlabs/remember/pkg/schema"
)

// DefaultMaxTries bounds template re-evaluation after dependency resolution.
const DefaultMaxTries = 30

// Prompter collects one answer from the operator. A NotInteractive error
// means no answer is available; Aborted ends the run.
type Prompter interface {
	Prompt(ctx context.Context, text, invalid string) (string, error)
}

// Saver persists a fact set under a fact name.
type Saver interface {
	Save(name string, set facts.Set) error
}

// Engine resolves variables. It is stateless between calls; all run state
// lives in the Context passed in.
type Engine struct {
	prompter Prompter
	store    Saver
	disp     *display.Display

	// MaxTries bounds template re-evaluation. Zero means DefaultMaxTries.
	MaxTries int
}

// New creates an engine. store may be nil, in which case Run does not persist.
func New(p Prompter, store Saver, disp *display.Display) *Engine {
	if disp == nil {
		disp = display.Discard()
	}
	return &Engine{prompter: p, store: store, disp: disp}
}

func (e *Engine) maxTries() int {
	if e.MaxTries > 0 {
		return e.MaxTries
	}
	return DefaultMaxTries
}

// Resolve obtains a final value for name: it prompts, falls back to the
// default on an empty answer, re-prompts until the answer validates, and
// records the sanitized value in rc.
//
// resolved is false when no terminal was available and the variable has no
// default: nothing is recorded and the variable stays unset.
func (e *Engine) Resolve(ctx context.Context, rc *Context, name string) (value any, resolved bool, err error) {
	v, err := rc.file.Lookup(name)
	if err != nil {
		return nil, false, err
	}
	if rc.resolving[name] {
		return nil, false, &fault.Error{
			Kind: fault.UnresolvableExpression,
			Name: name,
			Msg:  fmt.Sprintf("cyclic reference: %s depends on itself", name),
		}
	}
	rc.resolving[name] = true
	defer delete(rc.resolving, name)

	log := e.disp.With("variable", name)

	text, err := e.promptText(ctx, rc, v)
	if err != nil {
		return nil, false, err
	}

	rc.asked[name] = true
	answer, interactive, err := e.ask(ctx, text, "")
	if err != nil {
		return nil, false, err
	}

	rule := v.Rule()
	if answer == "" && v.HasDefault() {
		rendered, err := e.Evaluate(ctx, rc, *v.Default)
		if err != nil {
			return nil, false, err
		}
		value = rules.Sanitize(rule, rendered)
		rc.record(name, value)
		log.VV("using default", "value", value)
		return value, true, nil
	}

	for {
		ok, reason := rules.Validate(rule, answer)
		if ok {
			break
		}
		if !interactive {
			log.Warning("no answer available and no default, leaving unset")
			return nil, false, nil
		}
		answer, interactive, err = e.ask(ctx, text, fmt.Sprintf("%q %s", answer, reason))
		if err != nil {
			return nil, false, err
		}
	}

	if !interactive && answer == "" {
		log.Warning("no answer available and no default, leaving unset")
		return nil, false, nil
	}

	value = rules.Sanitize(rule, answer)
	rc.record(name, value)
	return value, true, nil
}

// ask wraps the prompter, turning NotInteractive into an empty answer.
func (e *Engine) ask(ctx context.Context, text, invalid string) (answer string, interactive bool, err error) {
	answer, err = e.prompter.Prompt(ctx, text, invalid)
	if errors.Is(err, fault.ErrNotInteractive) {
		return "", false, nil
	}
	if err != nil {
		return "", true, err
	}
	return answer, true, nil
}

// promptText composes the question shown for v: the rendered question, the
// current value, the type, the rendered default and the choices.
func (e *Engine) promptText(ctx context.Context, rc *Context, v *schema.Variable) (string, error) {
	styles := e.disp.Styles()

	question, err := e.Evaluate(ctx, rc, v.Question)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(styles.Question.Render(question))
	if cur, ok := rc.Known(v.Name); ok {
		b.WriteString(styles.Current.Render(fmt.Sprintf(" Current: %v", cur)))
	}
	if v.Type != "" {
		b.WriteString(styles.Hint.Render(fmt.Sprintf(" (type: %s)", v.Type)))
	}
	if v.HasDefault() {
		def, err := e.Evaluate(ctx, rc, *v.Default)
		if err != nil {
			return "", err
		}
		b.WriteString(styles.Hint.Render(fmt.Sprintf(" (default: %s)", def)))
	}
	if len(v.Choices) > 0 {
		b.WriteString("\n\nSelect one of the following choices by typing the word on the left of the parenthesis:")
		keys := make([]string, len(v.Choices))
		labels := make([]string, len(v.Choices))
		for i, c := range v.Choices {
			keys[i], labels[i] = c.Key, c.Label
		}
		for _, line := range styles.ChoiceLines(keys, labels) {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	return b.String(), nil
}
