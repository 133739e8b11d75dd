package commands

import (
	"fmt"
	"io"
	"os"

	"git.home.luguber.info/inful/hiveagent/internal/config"
)

// ValidateCmd implements the 'validate' command.
type ValidateCmd struct{}

func (v *ValidateCmd) Run(_ *Global, root *CLI) error {
	return RunValidate(os.Stdout, root.Config)
}

// RunValidate loads configPath and prints a short summary when it is valid.
func RunValidate(out io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "configuration %s is valid\n", configPath)
	_, _ = fmt.Fprintf(out, "  sync period: %ds, window: %s\n", cfg.Sync.PeriodSeconds, cfg.Sync.Window)
	_, _ = fmt.Fprintf(out, "  state backend: %s, staleness horizon: %s\n", cfg.State.Backend, cfg.State.StalenessHorizon)
	_, _ = fmt.Fprintf(out, "  coordinator: %s\n", cfg.Coordinator.Transport)
	return nil
}
