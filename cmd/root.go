// Package cmd implements the boardsynth command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "boardsynth",
		Short: "Synthesize and repair crawlers for public job boards",
		Long: `boardsynth analyzes a board page, generates a crawler module for it,
validates the module, runs it against the live board and repairs it until it
collects records or its attempt budgets run out.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default ./config.yml or ./config/config.yml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("log-level", "", "log level override (debug, info, warn, error)")

	for key, name := range map[string]string{
		"config":       "config",
		"app.debug":    "debug",
		"logger.level": "log-level",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	viper.SetEnvPrefix("BOARDSYNTH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	root.AddCommand(
		newAnalyzeCommand(),
		newSynthCommand(),
		newBatchCommand(),
		newHTTPDCommand(),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI until completion or SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}
