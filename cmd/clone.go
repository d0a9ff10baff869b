package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"repoharness/internal/cloner"
	"repoharness/internal/pipeline"
	"repoharness/internal/ui"
	"repoharness/pkg/models"
)

var (
	cloneManifest     string
	cloneOutputDir    string
	cloneSkipExisting bool
)

var cloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Clone every manifest repository at its pinned commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		manifestPath := cfg.ManifestFile
		if cloneManifest != "" {
			manifestPath = cloneManifest
		}
		if cloneOutputDir != "" {
			cfg.OutputDir = cloneOutputDir
		}

		entries, err := pipeline.LoadManifest(manifestPath)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		results, err := cloner.New(cfg.OutputDir).CloneAll(ctx, entries, cloneSkipExisting)
		if err != nil {
			return err
		}

		failed := 0
		for _, result := range results {
			if !result.Cloned() {
				failed++
			}
		}
		if failed > 0 {
			ui.ShowWarning(fmt.Sprintf("%d of %d repositories failed to clone", failed, len(results)))
			return fmt.Errorf("clone finished with %d failure(s)", failed)
		}
		ui.ShowSuccess(fmt.Sprintf("%d repositories ready under %s", len(results), cfg.OutputDir))
		return nil
	},
}

func init() {
	cloneCmd.Flags().StringVar(&cloneManifest, "manifest", "", "override the commits manifest path")
	cloneCmd.Flags().StringVar(&cloneOutputDir, "output-dir", "", "override the clone output directory")
	cloneCmd.Flags().BoolVar(&cloneSkipExisting, "skip-existing", true, "skip repositories already present on disk")
	rootCmd.AddCommand(cloneCmd)
}

// loadCloneLog is shared by the stage commands that iterate cloned repos.
func loadCloneLog(cfg *models.Config) ([]models.RepositoryCloneResult, error) {
	results, err := cloner.LoadCloneLog(cloner.New(cfg.OutputDir).LogPath())
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no clone log found under %s, run clone first", cfg.OutputDir)
	}
	return results, nil
}
