package cmd

import (
	"errors"
	"fmt"

	"github.com/theirongolddev/salesdash/internal/config"
	"github.com/theirongolddev/salesdash/internal/tui"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	path := configPath()
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return err
	}

	vals := tui.SetupValuesFrom(cfg)
	if err := tui.NewSetupForm(&vals).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup canceled; nothing written.")
			return nil
		}
		return err
	}

	vals.Apply(&cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config not saved:\n%w", err)
	}
	if err := config.SaveTo(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", path)
	fmt.Println("  Run `salesdash setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}
