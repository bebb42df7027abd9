package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yourlabs/remember/pkg/diagram"
	"github.com/yourlabs/remember/pkg/display"
	"github.com/yourlabs/remember/pkg/facts"
	"github.com/yourlabs/remember/pkg/fault"
	"github.com/yourlabs/remember/pkg/prompt"
	"github.com/yourlabs/remember/pkg/resolve"
	"github.com/yourlabs/remember/pkg/schema"
)

// --- run ---

var (
	runVars          []string
	runExtra         []string
	runForceAsk      string
	runState         string
	runPreviousState string
	runFactsDir      string
	runFact          string
	runNoEcho        bool
)

var runCmd = &cobra.Command{
	Use:   "run [variables.yaml]",
	Short: "Ask for missing variables and remember them",
	Long: `Resolve every variable declared in the file. Values remembered by a
previous run are reused unless --forceask names them; the rest are asked for
on the terminal. The result is written to <facts-dir>/<fact>.fact.

Examples:
  remember run vars.yaml --var role_name=nginx
  remember run vars.yaml --forceask domain,use_tls
  remember run vars.yaml --extra env=production --state success`,
	Args: cobra.ExactArgs(1),
	RunE: runRemember,
}

// runOptions is everything a run needs besides the terminal.
type runOptions struct {
	File          *schema.File
	Context       map[string]any
	Overrides     map[string]any
	ForceAsk      string
	State         string
	PreviousState string
	FactsDir      string
	Fact          string
}

func runRemember(cmd *cobra.Command, args []string) error {
	disp := newDisplay()
	defer disp.Sync()

	f, err := loadVariables(args[0], disp)
	if err != nil {
		return err
	}
	runCtx, err := parseAssignments(runVars)
	if err != nil {
		return err
	}
	overrides, err := parseAssignments(runExtra)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	driver := prompt.New(prompt.NewTerminal(os.Stdin, os.Stdout), disp)
	driver.Echo = !runNoEcho

	res, err := execute(ctx, runOptions{
		File:          f,
		Context:       runCtx,
		Overrides:     overrides,
		ForceAsk:      firstNonEmpty(runForceAsk, cfg.ForceAsk),
		State:         runState,
		PreviousState: runPreviousState,
		FactsDir:      firstNonEmpty(runFactsDir, cfg.FactsDir),
		Fact:          firstNonEmpty(runFact, cfg.Fact),
	}, &introPrompter{next: driver, disp: disp, intro: f.Intro}, disp)
	if err != nil {
		return err
	}

	printSummary(disp, res)
	return nil
}

// execute loads the cached facts, runs the resolution and saves the result.
func execute(ctx context.Context, opts runOptions, p resolve.Prompter, disp *display.Display) (*resolve.Result, error) {
	runCtx := make(map[string]any, len(opts.Context)+1)
	for k, v := range opts.Context {
		runCtx[k] = v
	}
	if opts.Fact != "" {
		runCtx["remember_fact"] = opts.Fact
	}

	name, err := resolve.FactName(opts.File, runCtx)
	if err != nil {
		return nil, err
	}
	store := facts.NewStore(opts.FactsDir, disp)
	prior, err := store.Load(name)
	if err != nil {
		return nil, err
	}
	disp.V("remembering facts", "name", name, "path", store.Path(name), "cached", len(prior))

	return resolve.New(p, store, disp).Run(ctx, &resolve.Request{
		File:          opts.File,
		Name:          name,
		Prior:         prior,
		Context:       runCtx,
		ForceAsk:      opts.ForceAsk,
		PreviousState: opts.PreviousState,
		Overrides:     opts.Overrides,
		State:         opts.State,
	})
}

// loadVariables reads a variables file and refuses to run one that fails
// validation. Warnings are logged.
func loadVariables(path string, disp *display.Display) (*schema.File, error) {
	f, errs := schema.ValidateFile(path)
	for _, e := range errs {
		if e.Severity == "warning" {
			disp.Warning(e.Message, "path", e.Path)
		}
	}
	if schema.HasErrors(errs) {
		var msgs []string
		for _, e := range errs {
			if e.Severity != "warning" {
				msgs = append(msgs, e.Error())
			}
		}
		return nil, fault.New(fault.MalformedSpec, "%s: %s", path, strings.Join(msgs, "; "))
	}
	return f, nil
}

// introPrompter shows the file's markdown intro before the first question
// of a run. Runs that ask nothing never show it.
type introPrompter struct {
	next  resolve.Prompter
	disp  *display.Display
	intro string
	shown bool
}

func (p *introPrompter) Prompt(ctx context.Context, text, invalid string) (string, error) {
	if !p.shown && strings.TrimSpace(p.intro) != "" {
		p.shown = true
		p.disp.Display(display.RenderMarkdown(p.intro, 80))
	}
	return p.next.Prompt(ctx, text, invalid)
}

func printSummary(disp *display.Display, res *resolve.Result) {
	disp.V("facts saved", "name", res.Name, "asked", len(res.Asked), "reused", len(res.Reused), "skipped", len(res.Skipped))
	if len(res.Unset) > 0 {
		disp.Warning("variables left unset", "names", strings.Join(res.Unset, ", "))
	}
}

// --- show ---

var (
	showFactsDir string
	showArtifact bool
)

var showCmd = &cobra.Command{
	Use:   "show [fact-name]",
	Short: "Print the facts remembered under a fact name",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	store := facts.NewStore(firstNonEmpty(showFactsDir, cfg.FactsDir), newDisplay())
	set, err := store.Load(args[0])
	if err != nil {
		return err
	}
	if showArtifact {
		data, err := facts.Render(set)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	}
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("encode facts: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// --- path ---

var (
	pathVars     []string
	pathFactsDir string
	pathFact     string
)

var pathCmd = &cobra.Command{
	Use:   "path [variables.yaml]",
	Short: "Print the fact artifact path a run would write",
	Long: `Print the fact artifact path a run of the file would write. Without a
file, --fact (or REMEMBER_FACT) names the fact directly.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPath,
}

func runPath(cmd *cobra.Command, args []string) error {
	runCtx, err := parseAssignments(pathVars)
	if err != nil {
		return err
	}
	if fact := firstNonEmpty(pathFact, cfg.Fact); fact != "" {
		runCtx["remember_fact"] = fact
	}
	var f *schema.File
	if len(args) == 1 {
		if f, err = schema.LoadFile(args[0]); err != nil {
			return err
		}
	}
	name, err := resolve.FactName(f, runCtx)
	if err != nil {
		return err
	}
	fmt.Println(facts.NewStore(firstNonEmpty(pathFactsDir, cfg.FactsDir), nil).Path(name))
	return nil
}

// --- deps ---

var depsFormat string

var depsCmd = &cobra.Command{
	Use:   "deps [variables.yaml]",
	Short: "Show which variables each question, default and when-clause reads",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeps,
}

func runDeps(cmd *cobra.Command, args []string) error {
	f, err := schema.LoadFile(args[0])
	if err != nil {
		return err
	}
	g, err := diagram.Build(f)
	if err != nil {
		return err
	}
	out, err := diagram.Generate(g, diagram.Format(depsFormat))
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func init() {
	// run flags
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "Run context value visible to templates (key=value), repeatable")
	runCmd.Flags().StringArrayVar(&runExtra, "extra", nil, "Fact stored as is, overriding resolution (key=value), repeatable")
	runCmd.Flags().StringVar(&runForceAsk, "forceask", "", "Ask again for these variables: comma separated names, or * / all (default $REMEMBER_FORCEASK)")
	runCmd.Flags().StringVar(&runState, "state", "", "Record this run state as the state fact")
	runCmd.Flags().StringVar(&runPreviousState, "previous-state", "", "State of the previous run; success disables --forceask")
	runCmd.Flags().StringVar(&runFactsDir, "facts-dir", "", "Facts directory (default $REMEMBER_FACTS_DIR or "+facts.DefaultDir+")")
	runCmd.Flags().StringVar(&runFact, "fact", "", "Fact name template, overriding the file (default $REMEMBER_FACT)")
	runCmd.Flags().BoolVar(&runNoEcho, "no-echo", false, "Do not echo typed answers")

	// show flags
	showCmd.Flags().StringVar(&showFactsDir, "facts-dir", "", "Facts directory")
	showCmd.Flags().BoolVar(&showArtifact, "artifact", false, "Print the executable artifact instead of JSON")

	// path flags
	pathCmd.Flags().StringArrayVar(&pathVars, "var", nil, "Run context value (key=value), repeatable")
	pathCmd.Flags().StringVar(&pathFactsDir, "facts-dir", "", "Facts directory")
	pathCmd.Flags().StringVar(&pathFact, "fact", "", "Fact name template")

	// deps flags
	depsCmd.Flags().StringVar(&depsFormat, "format", string(diagram.FormatASCII), "Output format: ascii or mermaid")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
