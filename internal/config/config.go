package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"repoharness/internal/common"
	"repoharness/pkg/models"
)

// GetConfigPath returns the directory holding the harness configuration
func GetConfigPath() string {
	if configPath := os.Getenv("REPOHARNESS_CONFIG"); configPath != "" {
		return filepath.Dir(configPath)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".repoharness")
}

// GetConfigFile returns the harness configuration file path
func GetConfigFile() string {
	if configFile := os.Getenv("REPOHARNESS_CONFIG"); configFile != "" {
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			return filepath.Join(GetConfigPath(), "harness.yaml")
		}
		return cleaned
	}
	return filepath.Join(GetConfigPath(), "harness.yaml")
}

// Default returns the configuration used when no file exists yet.
func Default() *models.Config {
	return &models.Config{
		OutputDir:    "repos",
		ManifestFile: "commits.json",
		HistoryLimit: 100,
		Install: models.InstallConfig{
			TimeoutMinutes: 10,
		},
		Provider: models.ProviderConfig{
			APIVersion: "2024-02-01",
		},
		Database: models.DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "postgres",
			SSLMode: "disable",
		},
		Log: models.LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the harness configuration, decrypting any encrypted secrets.
// A missing file yields the defaults, not an error.
func Load() (*models.Config, error) {
	configFile := GetConfigFile()

	cleanedPath, err := common.CleanPath(configFile)
	if err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	if _, err := os.Stat(cleanedPath); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(cleanedPath) // #nosec G304 - path is validated
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := DecryptConfigSecrets(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the harness configuration, encrypting secrets at rest.
func Save(cfg *models.Config) error {
	configPath := GetConfigPath()
	if err := os.MkdirAll(configPath, common.DirPermissionSecure); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Work on a copy so the caller's view stays decrypted
	toSave := *cfg
	if err := EncryptConfigSecrets(&toSave); err != nil {
		return err
	}

	data, err := yaml.Marshal(&toSave)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(GetConfigFile(), data, common.FilePermissionSecure); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Exists reports whether a harness configuration file is present
func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}
