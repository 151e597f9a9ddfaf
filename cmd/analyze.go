package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/analyzer"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/fetcher"
)

func newAnalyzeCommand() *cobra.Command {
	var flags boardFlags

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Print selector candidates for a board as YAML",
		Long: `Analyze samples the board page (or reads --markup-file) and prints the
selector set the pipeline would start from, with per-field candidates.`,
		Example: `  boardsynth analyze --name Incheon --url https://ice.example/board/list
  boardsynth analyze --name Incheon --url https://ice.example/board/list --markup-file list.html`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := newCommandDeps()
			if err != nil {
				return err
			}
			board, err := flags.board()
			if err != nil {
				return err
			}

			markup := board.SampledMarkup
			if !board.HasMarkup() {
				f := fetcher.New(deps.Config.Fetcher, deps.Logger)
				if markup, err = f.Markup(cmd.Context(), board.URL); err != nil {
					return fmt.Errorf("sample %s: %w", board.URL, err)
				}
			}

			report := analyzer.New(deps.Logger).Inspect(markup)
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err = enc.Encode(report); err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.Flags().StringVar(&flags.name, "name", "", "board name")
	cmd.Flags().StringVar(&flags.url, "url", "", "board list page URL")
	cmd.Flags().StringVar(&flags.markupFile, "markup-file", "", "read page markup from this file instead of fetching")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
