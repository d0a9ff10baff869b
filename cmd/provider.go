package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"repoharness/internal/config"
	"repoharness/internal/provider"
	"repoharness/internal/ui"
	"repoharness/pkg/models"
)

var (
	providerSharedEnv  string
	providerConfigFile string
)

var setupProviderCmd = &cobra.Command{
	Use:   "setup-provider <repo>",
	Short: "Switch a repository's LLM and database config to the standardized backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		repoPath, err := resolveRepoPath(cfg, args[0])
		if err != nil {
			return err
		}

		sharedEnv, err := config.LoadEnvSnapshot(providerSharedEnv)
		if err != nil {
			return err
		}

		providerCfg := cfg.Provider
		if providerConfigFile != "" {
			override, err := loadProviderOverride(providerConfigFile)
			if err != nil {
				return err
			}
			providerCfg = override
		}

		harness := provider.New(providerCfg, cfg.Database, sharedEnv)
		record, err := harness.Setup(repoPath)
		if err != nil {
			return err
		}
		ui.ShowSuccess(fmt.Sprintf("patched %d file(s), created %d (session %s)",
			len(record.ModifiedFiles), len(record.CreatedFiles), record.SessionID))
		ui.ShowInfo("undo with: repoharness restore " + args[0])
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <repo>",
	Short: "Undo every provider switch recorded for a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		repoPath, err := resolveRepoPath(cfg, args[0])
		if err != nil {
			return err
		}

		harness := provider.New(cfg.Provider, cfg.Database, nil)
		if err := harness.Restore(repoPath); err != nil {
			return err
		}
		ui.ShowSuccess("repository restored to its pre-patch state")
		return nil
	},
}

// resolveRepoPath accepts either a path or a folder name under the output
// directory.
func resolveRepoPath(cfg *models.Config, arg string) (string, error) {
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		return arg, nil
	}
	candidate := filepath.Join(cfg.OutputDir, arg)
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate, nil
	}
	return "", fmt.Errorf("repository %q not found (looked in %s)", arg, cfg.OutputDir)
}

// loadProviderOverride reads a standalone YAML provider configuration.
func loadProviderOverride(path string) (models.ProviderConfig, error) {
	var providerCfg models.ProviderConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return providerCfg, fmt.Errorf("failed to read provider config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &providerCfg); err != nil {
		return providerCfg, fmt.Errorf("invalid provider config %s: %w", path, err)
	}
	return providerCfg, nil
}

func init() {
	setupProviderCmd.Flags().StringVar(&providerSharedEnv, "shared-env", ".env", "shared environment file merged into the repository")
	setupProviderCmd.Flags().StringVar(&providerConfigFile, "provider-config", "", "YAML file overriding the target provider settings")
	rootCmd.AddCommand(setupProviderCmd)
	rootCmd.AddCommand(restoreCmd)
}
