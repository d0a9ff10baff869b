package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"repoharness/internal/pipeline"
)

var (
	runManifest     string
	runSkipExisting bool
	runDryRun       bool
	runSkipPatch    bool
	runSharedEnv    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline over every manifest repository",
	Long: "Runs clone, history extraction, dependency install, build verification\n" +
		"and provider switch for each manifest entry in sequence. A failure in one\n" +
		"repository never blocks the others; the exit code reports whether any failed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if runManifest != "" {
			cfg.ManifestFile = runManifest
		}

		p, err := pipeline.New(*cfg, pipeline.Options{
			SkipExisting:  runSkipExisting,
			DryRun:        runDryRun,
			SkipPatch:     runSkipPatch,
			SharedEnvPath: runSharedEnv,
		})
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		summary, err := p.Run(ctx)
		if err != nil {
			return err
		}

		pipeline.PrintSummary(os.Stdout, summary)
		if summary.HasFailures() {
			return fmt.Errorf("batch run finished with failures")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runManifest, "manifest", "", "override the commits manifest path")
	runCmd.Flags().BoolVar(&runSkipExisting, "skip-existing", true, "skip repositories already present on disk")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "run detection only, no installs, builds or patches")
	runCmd.Flags().BoolVar(&runSkipPatch, "skip-patch", false, "run every stage except the provider switch")
	runCmd.Flags().StringVar(&runSharedEnv, "shared-env", ".env", "shared environment file merged into repositories")
	rootCmd.AddCommand(runCmd)
}
