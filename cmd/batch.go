package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/service"
)

// boardsFile is the YAML layout read by batch.
type boardsFile struct {
	Boards []domain.BoardSource `yaml:"boards"`
}

func loadBoards(path string) ([]domain.BoardSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boards file: %w", err)
	}
	var f boardsFile
	if err = yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse boards file: %w", err)
	}
	if len(f.Boards) == 0 {
		return nil, fmt.Errorf("%s lists no boards", path)
	}
	return f.Boards, nil
}

func newBatchCommand() *cobra.Command {
	var (
		file        string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the pipeline for every board in a YAML file",
		Example: `  boardsynth batch --file boards.yml --concurrency 8

boards.yml:
  boards:
    - name: Incheon
      url: https://ice.example/board/list
      region: 인천`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := newCommandDeps()
			if err != nil {
				return err
			}
			defer func() { _ = deps.Logger.Sync() }()

			boards, err := loadBoards(file)
			if err != nil {
				return err
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

			results, runErr := svc.SynthesizeAll(cmd.Context(), boards, concurrency)
			renderBatch(cmd.OutOrStdout(), results)

			failed := 0
			for _, r := range results {
				if r.Outcome == nil || !r.Outcome.Success {
					failed++
				}
			}
			if failed > 0 {
				return errors.Join(runErr, fmt.Errorf("%d of %d boards: %w", failed, len(results), errExhausted))
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "boards.yml", "YAML file listing boards")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "boards run at once (default from config)")
	return cmd
}
