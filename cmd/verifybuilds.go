package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"repoharness/internal/buildverify"
	"repoharness/internal/deps"
	"repoharness/internal/ui"
	"repoharness/pkg/models"
)

var (
	verifyDryRun  bool
	verifyTimeout int
)

var verifyBuildsCmd = &cobra.Command{
	Use:   "verify-builds",
	Short: "Attempt the build step of every cloned repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cloneLog, err := loadCloneLog(cfg)
		if err != nil {
			return err
		}

		timeout := time.Duration(cfg.Install.TimeoutMinutes) * time.Minute
		if verifyTimeout > 0 {
			timeout = time.Duration(verifyTimeout) * time.Minute
		}
		verifier := buildverify.New(buildverify.Options{
			Timeout: timeout,
			DryRun:  verifyDryRun,
		})

		ctx, cancel := signalContext()
		defer cancel()

		var requirements []models.BuildRequirement
		for _, entry := range cloneLog {
			if !entry.Cloned() {
				continue
			}
			requirements = append(requirements, deps.Inspect(entry.LocalPath))
		}

		results, err := verifier.VerifyAll(ctx, requirements, cfg.OutputDir)
		if err != nil {
			return err
		}

		failed := 0
		for _, result := range results {
			if result.Status == models.BuildFailed || result.Status == models.BuildTimeout {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d build(s) failed, see %s", failed, buildverify.ResultsFile)
		}
		ui.ShowSuccess(fmt.Sprintf("verified %d repositories", len(results)))
		return nil
	},
}

func init() {
	verifyBuildsCmd.Flags().BoolVar(&verifyDryRun, "dry-run", false, "discover build commands without running them")
	verifyBuildsCmd.Flags().IntVar(&verifyTimeout, "timeout", 0, "per-build timeout in minutes")
	rootCmd.AddCommand(verifyBuildsCmd)
}
