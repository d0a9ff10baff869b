package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"repoharness/internal/common"
	"repoharness/internal/deps"
	"repoharness/internal/pipeline"
	"repoharness/internal/ui"
	apperrors "repoharness/pkg/errors"
	"repoharness/pkg/models"
)

var (
	installPythonOnly bool
	installNodeOnly   bool
	installDryRun     bool
	installTimeout    int
)

var installDepsCmd = &cobra.Command{
	Use:   "install-deps",
	Short: "Detect and install dependencies for every cloned repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		if installPythonOnly && installNodeOnly {
			return apperrors.ConfigError("--python-only and --node-only are mutually exclusive", "install")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cloneLog, err := loadCloneLog(cfg)
		if err != nil {
			return err
		}

		timeout := time.Duration(cfg.Install.TimeoutMinutes) * time.Minute
		if installTimeout > 0 {
			timeout = time.Duration(installTimeout) * time.Minute
		}
		installer := deps.NewInstaller(deps.Options{
			Timeout:    timeout,
			PythonOnly: installPythonOnly || cfg.Install.PythonOnly,
			NodeOnly:   installNodeOnly || cfg.Install.NodeOnly,
			DryRun:     installDryRun,
		})

		ctx, cancel := signalContext()
		defer cancel()

		var (
			requirements []models.BuildRequirement
			results      []models.InstallResult
			failed       int
		)
		for _, entry := range cloneLog {
			if ctx.Err() != nil {
				break
			}
			if !entry.Cloned() {
				continue
			}

			requirement := deps.Inspect(entry.LocalPath)
			requirements = append(requirements, requirement)

			for _, result := range installer.Install(ctx, requirement) {
				results = append(results, result)
				if !result.Success && !result.Skipped {
					failed++
				}
			}
		}

		if err := common.WriteJSONFile(filepath.Join(cfg.OutputDir, deps.RequirementsFile), requirements); err != nil {
			return err
		}
		if err := common.WriteJSONFile(filepath.Join(cfg.OutputDir, pipeline.InstallResultsFile), results); err != nil {
			return err
		}

		if failed > 0 {
			return fmt.Errorf("%d install step(s) failed, see %s", failed, pipeline.InstallResultsFile)
		}
		ui.ShowSuccess(fmt.Sprintf("dependencies installed for %d repositories", len(requirements)))
		return nil
	},
}

func init() {
	installDepsCmd.Flags().BoolVar(&installPythonOnly, "python-only", false, "install only python dependencies")
	installDepsCmd.Flags().BoolVar(&installNodeOnly, "node-only", false, "install only node dependencies")
	installDepsCmd.Flags().BoolVar(&installDryRun, "dry-run", false, "detect only, run no installer")
	installDepsCmd.Flags().IntVar(&installTimeout, "timeout", 0, "per-ecosystem timeout in minutes")
	rootCmd.AddCommand(installDepsCmd)
}
