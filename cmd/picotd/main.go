// picotd - bot framework over a TDLib-style client engine
// License: MIT

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sipeed/picotd/cmd/picotd/internal"
	"github.com/sipeed/picotd/cmd/picotd/internal/run"
	"github.com/sipeed/picotd/cmd/picotd/internal/simulate"
	"github.com/sipeed/picotd/cmd/picotd/internal/version"
)

func NewPicotdCommand() *cobra.Command {
	short := fmt.Sprintf("%s picotd - Telegram bots on a client engine", internal.Logo)

	cmd := &cobra.Command{
		Use:           "picotd",
		Short:         short,
		Example:       "picotd run\npicotd simulate /help",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&internal.ConfigPath, "config", "c", "",
		"Config file (JSON or YAML, default $PICOTD_CONFIG or ~/.picotd/config.json)")

	cmd.AddCommand(
		run.NewRunCommand(),
		simulate.NewSimulateCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewPicotdCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
