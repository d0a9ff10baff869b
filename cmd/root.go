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

	"repoharness/internal/config"
	"repoharness/internal/ui"
	"repoharness/pkg/logger"
	"repoharness/pkg/models"
)

var (
	cfgFile  string
	logLevel string

	rootCmd = &cobra.Command{
		Use:   "repoharness",
		Short: "Clone, build and standardize a corpus of AI-agent repositories",
		Long: "Repo Harness clones third-party AI-agent repositories at pinned commits,\n" +
			"extracts their commit history, installs dependencies, verifies builds and\n" +
			"reversibly switches their LLM and database configuration to a standardized\n" +
			"Azure OpenAI and PostgreSQL backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command and maps failures to the process exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.repoharness/harness.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func initConfig() {
	if cfgFile != "" {
		os.Setenv("REPOHARNESS_CONFIG", cfgFile)
	}

	viper.SetConfigFile(config.GetConfigFile())
	viper.SetEnvPrefix("REPOHARNESS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		// A missing config file falls back to defaults at load time
		_ = err
	}
}

// applyViperOverrides overlays values viper resolved from the config file or
// REPOHARNESS_* environment variables onto the loaded configuration. Secrets
// are excluded: those stay with the decrypting loader.
func applyViperOverrides(cfg *models.Config) {
	if v := viper.GetString("output_dir"); v != "" {
		cfg.OutputDir = v
	}
	if v := viper.GetString("manifest_file"); v != "" {
		cfg.ManifestFile = v
	}
	if v := viper.GetInt("history_limit"); v > 0 {
		cfg.HistoryLimit = v
	}
	if v := viper.GetInt("install.timeout_minutes"); v > 0 {
		cfg.Install.TimeoutMinutes = v
	}
	if v := viper.GetString("log.level"); v != "" {
		cfg.Log.Level = v
	}
	if v := viper.GetString("log.format"); v != "" {
		cfg.Log.Format = v
	}
}

// loadConfig reads the persisted configuration, overlays viper-resolved
// values and initializes logging. The --log-level flag wins last.
func loadConfig() (*models.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	applyViperOverrides(cfg)
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := logger.Initialize(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return cfg, nil
}

// signalContext returns a context cancelled by SIGINT/SIGTERM so batch runs
// stop cooperatively between repositories.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
