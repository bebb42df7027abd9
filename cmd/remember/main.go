package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yourlabs/remember/pkg/config"
	"github.com/yourlabs/remember/pkg/diagram"
	"github.com/yourlabs/remember/pkg/display"
	"github.com/yourlabs/remember/pkg/fault"
	"github.com/yourlabs/remember/pkg/schema"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// cfg holds environment defaults; flags override it.
var cfg = &config.Config{}

func main() {
	loaded, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, fault.ErrAborted) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

var verbosity int

var rootCmd = &cobra.Command{
	Use:   "remember",
	Short: "Ask for configuration values once and remember them as facts",
	Long: `remember asks an operator for the variables declared in a YAML file,
validates and normalizes each answer, and stores the result as a local fact
artifact so later runs only ask for what is missing.`,
	SilenceUsage: true,
}

func newDisplay() *display.Display {
	return display.New(os.Stdout, max(verbosity, cfg.Verbosity))
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [variables.yaml]",
	Short: "Validate a variables YAML file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	f, errs := schema.ValidateFile(filePath)
	if f != nil && !schema.HasErrors(errs) {
		errs = append(errs, graphWarnings(f)...)
	}
	if len(errs) > 0 {
		var failed []*schema.ValidationError
		var warnings []*schema.ValidationError
		for _, e := range errs {
			if e.Severity == "warning" {
				warnings = append(warnings, e)
			} else {
				failed = append(failed, e)
			}
		}
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", w.Phase, w.Message)
			if w.Path != "" {
				fmt.Fprintf(os.Stderr, "    at: %s\n", w.Path)
			}
		}
		if len(failed) > 0 {
			fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", len(failed))
			for i, e := range failed {
				fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
				if e.Path != "" {
					fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
				}
			}
			return fmt.Errorf("validation failed with %d error(s)", len(failed))
		}
	}
	fmt.Printf("✓ %s is valid (%d variables)\n", filePath, len(f.Remember))
	return nil
}

// graphWarnings reports dependency cycles and names that only the run
// context can provide.
func graphWarnings(f *schema.File) []*schema.ValidationError {
	g, err := diagram.Build(f)
	if err != nil {
		return nil // template syntax is reported by the domain phase
	}
	var out []*schema.ValidationError
	for _, c := range g.Cycles() {
		out = append(out, &schema.ValidationError{
			Phase:    "domain",
			Message:  "dependency cycle: " + strings.Join(append(c, c[0]), " → "),
			Severity: "warning",
		})
	}
	for _, name := range g.Undeclared() {
		out = append(out, &schema.ValidationError{
			Phase:    "domain",
			Message:  fmt.Sprintf("%q is referenced but not declared; it must be passed with --var", name),
			Severity: "warning",
		})
	}
	return out
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export the JSON Schema of variables files to stdout",
	RunE:  runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	var out json.RawMessage = data
	formatted, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(string(formatted))
	return nil
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("remember %s (build: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase diagnostics (-v info, -vv debug)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(versionCmd)
}

// parseAssignments turns repeated key=value flags into a map. Values are
// read as YAML scalars, so true, 3 and 1.5 keep their types; quoted values
// and anything else stay strings.
func parseAssignments(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid assignment %q: expected key=value", p)
		}
		out[k] = scalar(v)
	}
	return out, nil
}

func scalar(raw string) any {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil || len(node.Content) != 1 {
		return raw
	}
	n := node.Content[0]
	if n.Kind != yaml.ScalarNode {
		return raw
	}
	if n.Style != 0 {
		// Quoted: a string without its quotes.
		return n.Value
	}
	var v any
	if err := n.Decode(&v); err != nil || v == nil {
		return raw
	}
	return v
}
