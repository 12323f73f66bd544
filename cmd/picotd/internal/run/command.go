package run

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sipeed/picotd/cmd/picotd/internal"
	"github.com/sipeed/picotd/cmd/picotd/internal/app"
	"github.com/sipeed/picotd/cmd/picotd/internal/demo"
	"github.com/sipeed/picotd/pkg/daemon"
	"github.com/sipeed/picotd/pkg/logger"
)

func NewRunCommand() *cobra.Command {
	var debug bool
	var driver string

	cmd := &cobra.Command{
		Use:     "run",
		Aliases: []string{"r"},
		Short:   "Run the bot until interrupted",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd, debug, driver)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().StringVar(&driver, "engine", "", "Override engine.driver (telegram or loopback)")

	return cmd
}

func runBot(cmd *cobra.Command, debug bool, driver string) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	if driver != "" {
		cfg.Engine.Driver = driver
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if err := app.SetupLogging(cfg, debug); err != nil {
		return err
	}
	defer logger.DisableFileLogging()

	pid := daemon.NewPIDFile(cfg.DatabasePath())
	if err := pid.Acquire(); err != nil {
		var running *daemon.ProcessRunningError
		if errors.As(err, &running) {
			return fmt.Errorf("engine database %s is in use: %w", cfg.DatabasePath(), err)
		}
		return err
	}
	defer pid.Release()

	eng, err := app.NewEngine(cfg)
	if err != nil {
		return err
	}
	a, err := app.New(cfg, eng, demo.NewRouter)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "%s picotd %s running on %s engine (Ctrl+C to stop)\n",
		internal.Logo, internal.FormatVersion(), cfg.Engine.Driver)
	logger.InfoCF("run", "Bot started", map[string]any{
		"engine":  cfg.Engine.Driver,
		"persist": cfg.Persist.Store,
	})

	return a.Run(ctx)
}
