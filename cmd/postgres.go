package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"repoharness/internal/dockerdb"
	"repoharness/internal/ui"
	"repoharness/pkg/models"
)

var (
	pgDBName string
	pgPort   int
)

var setupPostgresCmd = &cobra.Command{
	Use:   "setup-postgres <repo>",
	Short: "Start a dedicated PostgreSQL container for a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		spec := containerSpec(cfg, args[0])

		ctx, cancel := signalContext()
		defer cancel()

		manager := dockerdb.New(dockerdb.Options{Dir: cfg.OutputDir})
		if err := manager.Setup(ctx, spec); err != nil {
			return err
		}
		ui.ShowSuccess(fmt.Sprintf("postgres for %s ready on port %d", spec.RepoName, spec.Port))
		ui.ShowInfo("connection string: " + dockerdb.DSN(spec))
		return nil
	},
}

var stopPostgresCmd = &cobra.Command{
	Use:   "stop-postgres <repo>",
	Short: "Tear down a repository's PostgreSQL container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		spec := containerSpec(cfg, args[0])

		ctx, cancel := signalContext()
		defer cancel()

		manager := dockerdb.New(dockerdb.Options{Dir: cfg.OutputDir})
		if err := manager.Stop(ctx, spec); err != nil {
			return err
		}
		ui.ShowSuccess("container stopped")
		return nil
	},
}

// containerSpec derives a per-repository container identity from the shared
// database defaults.
func containerSpec(cfg *models.Config, repo string) models.DbContainerSpec {
	name := sanitizeName(filepath.Base(repo))

	dbName := pgDBName
	if dbName == "" {
		dbName = cfg.Database.DBName
	}
	port := pgPort
	if port == 0 {
		port = cfg.Database.Port
	}

	return models.DbContainerSpec{
		RepoName:      name,
		ContainerName: "harness-pg-" + name,
		Port:          port,
		DBName:        dbName,
		User:          cfg.Database.User,
		Password:      cfg.Database.Password,
	}
}

// sanitizeName keeps the container name within docker's allowed charset.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}

func init() {
	setupPostgresCmd.Flags().StringVar(&pgDBName, "db-name", "", "database name (default from config)")
	setupPostgresCmd.Flags().IntVar(&pgPort, "port", 0, "host port to bind (default from config)")
	rootCmd.AddCommand(setupPostgresCmd)
	rootCmd.AddCommand(stopPostgresCmd)
}
