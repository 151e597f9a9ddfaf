package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/service"
)

// errExhausted makes the process exit non-zero when a run gives up.
var errExhausted = errors.New("attempt budgets exhausted")

func newSynthCommand() *cobra.Command {
	var (
		flags     boardFlags
		out       string
		maxStatic int
		maxLive   int
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize, validate and live-test a crawler for one board",
		Example: `  boardsynth synth --name Incheon --url https://ice.example/board/list --out incheon.go
  boardsynth synth --name Incheon --url https://ice.example/board/list --max-live 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := newCommandDeps()
			if err != nil {
				return err
			}
			defer func() { _ = deps.Logger.Sync() }()

			board, err := flags.board()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-static") {
				deps.Config.Pipeline.MaxStaticAttempts = maxStatic
			}
			if cmd.Flags().Changed("max-live") {
				deps.Config.Pipeline.MaxLiveAttempts = maxLive
			}

			svc, err := service.Build(cmd.Context(), deps.Config, nil, deps.Logger)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := svc.Close(); closeErr != nil {
					deps.Logger.Warn("Close failed", logger.Error(closeErr))
				}
			}()

			res, err := svc.Synthesize(cmd.Context(), board)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			renderHistory(w, res.Outcome)
			renderErrors(w, res.Outcome)

			if out != "" {
				module := res.FinalModule
				if module == nil {
					module = res.LastModule
				}
				if module != nil {
					if err = os.WriteFile(out, []byte(module.SourceText), 0o600); err != nil {
						return fmt.Errorf("write module: %w", err)
					}
					fmt.Fprintf(w, "module written to %s\n", out)
				}
			}

			if !res.Success {
				return fmt.Errorf("%s: %w", board.Name, errExhausted)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.name, "name", "", "board name")
	cmd.Flags().StringVar(&flags.url, "url", "", "board list page URL")
	cmd.Flags().StringVar(&flags.region, "region", "", "region stamped on collected records")
	cmd.Flags().StringVar(&flags.markupFile, "markup-file", "", "analyze this markup instead of fetching the page")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the final (or last) module source to this file")
	cmd.Flags().IntVar(&maxStatic, "max-static", 0, "static repair budget (negative disables repairs)")
	cmd.Flags().IntVar(&maxLive, "max-live", 0, "live repair budget (negative disables repairs)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
