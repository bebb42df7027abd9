package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/yourlabs/remember/pkg/diagram"
	"github.com/yourlabs/remember/pkg/ecosystem/tui"
	"github.com/yourlabs/remember/pkg/facts"
	"github.com/yourlabs/remember/pkg/resolve"
)

var (
	browseVars     []string
	browseFactsDir string
	browseFact     string
)

var browseCmd = &cobra.Command{
	Use:   "browse [variables.yaml]",
	Short: "Browse remembered facts and pick variables to ask again",
	Long: `Open an interactive view of the variables in the file next to the values
remembered for them. Variables marked with space are printed on exit as a
comma separated list, ready for --forceask:

  remember run vars.yaml --forceask "$(remember browse vars.yaml)"`,
	Args: cobra.ExactArgs(1),
	RunE: runBrowse,
}

func runBrowse(cmd *cobra.Command, args []string) error {
	disp := newDisplay()
	defer disp.Sync()

	f, err := loadVariables(args[0], disp)
	if err != nil {
		return err
	}
	runCtx, err := parseAssignments(browseVars)
	if err != nil {
		return err
	}
	if fact := firstNonEmpty(browseFact, cfg.Fact); fact != "" {
		runCtx["remember_fact"] = fact
	}
	name, err := resolve.FactName(f, runCtx)
	if err != nil {
		return err
	}
	cached, err := facts.NewStore(firstNonEmpty(browseFactsDir, cfg.FactsDir), disp).Load(name)
	if err != nil {
		return err
	}
	g, err := diagram.Build(f)
	if err != nil {
		return err
	}

	p := tea.NewProgram(tui.NewModel(name, f, cached, g), tea.WithAltScreen(), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	if m, ok := final.(tui.Model); ok && m.Confirmed() {
		fmt.Println(m.ForceAsk())
	}
	return nil
}

func init() {
	browseCmd.Flags().StringArrayVar(&browseVars, "var", nil, "Run context value (key=value), repeatable")
	browseCmd.Flags().StringVar(&browseFactsDir, "facts-dir", "", "Facts directory")
	browseCmd.Flags().StringVar(&browseFact, "fact", "", "Fact name template")

	rootCmd.AddCommand(browseCmd)
}
