package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/hiveagent/internal/config"
	"git.home.luguber.info/inful/hiveagent/internal/daemon"
	"git.home.luguber.info/inful/hiveagent/internal/logfields"
	"git.home.luguber.info/inful/hiveagent/internal/version"
)

// RunCmd implements the 'run' command.
type RunCmd struct{}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	logger := NewLogger(os.Stderr, cfg.Logging, root.Verbose)
	slog.SetDefault(logger)
	g.Logger = logger

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunAgent(ctx, cfg, root.Config)
}

// RunAgent builds the agent from cfg and blocks until ctx is cancelled.
func RunAgent(ctx context.Context, cfg *config.Config, configPath string, opts ...daemon.Option) error {
	opts = append([]daemon.Option{daemon.WithConfigPath(configPath)}, opts...)
	agent, err := daemon.New(cfg, opts...)
	if err != nil {
		return err
	}

	slog.Info("Starting hiveagent",
		slog.String("version", version.Version),
		logfields.Path(configPath))
	if err := agent.Run(ctx); err != nil {
		return err
	}
	slog.Info("hiveagent stopped")
	return nil
}
