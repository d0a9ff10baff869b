package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"repoharness/internal/history"
	"repoharness/internal/ui"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "extract-history",
	Short: "Extract commit lineage for every cloned repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cloneLog, err := loadCloneLog(cfg)
		if err != nil {
			return err
		}

		limit := cfg.HistoryLimit
		if historyLimit > 0 {
			limit = historyLimit
		}

		ctx, cancel := signalContext()
		defer cancel()

		histories, err := history.New(limit).ExtractAll(ctx, cloneLog, cfg.OutputDir)
		if err != nil {
			return err
		}
		ui.ShowSuccess(fmt.Sprintf("extracted history for %d repositories", len(histories)))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "commit history limit per repository")
	rootCmd.AddCommand(historyCmd)
}
