package dockerdb

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"repoharness/internal/common"
	"repoharness/internal/deps"
	apperrors "repoharness/pkg/errors"
	"repoharness/pkg/logger"
	"repoharness/pkg/models"
)

const (
	postgresImage     = "postgres:16-alpine"
	defaultAttempts   = 15
	defaultInterval   = 2 * time.Second
	composeProjectDir = "compose"

	// Every docker CLI invocation carries a deadline so a wedged daemon
	// cannot hang the harness. Image pulls make up/down the slow path.
	queryTimeout   = 15 * time.Second
	composeTimeout = 3 * time.Minute
)

// Connector opens a database handle for a readiness probe.
type Connector func(dsn string) (*sql.DB, error)

// Options configures a Manager.
type Options struct {
	Runner   deps.CommandRunner
	Dir      string // where compose definitions are written
	Attempts int
	Interval time.Duration
	Connect  Connector
}

// Manager provisions one PostgreSQL container per repository through the
// docker CLI and a generated compose definition.
type Manager struct {
	runner   deps.CommandRunner
	dir      string
	attempts int
	interval time.Duration
	connect  Connector
}

// New creates a Manager; zero options select the defaults.
func New(opts Options) *Manager {
	if opts.Runner == nil {
		opts.Runner = deps.ExecRunner{}
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Connect == nil {
		opts.Connect = gormConnector
	}
	return &Manager{
		runner:   opts.Runner,
		dir:      opts.Dir,
		attempts: opts.Attempts,
		interval: opts.Interval,
		connect:  opts.Connect,
	}
}

func gormConnector(dsn string) (*sql.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, err
	}
	return db.DB()
}

// DSN renders the container's connection string.
func DSN(spec models.DbContainerSpec) string {
	return fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		spec.User, spec.Password, spec.Port, spec.DBName)
}

type composeService struct {
	Image         string            `yaml:"image"`
	ContainerName string            `yaml:"container_name"`
	Environment   map[string]string `yaml:"environment"`
	Ports         []string          `yaml:"ports"`
	Restart       string            `yaml:"restart"`
}

type composeDefinition struct {
	Services map[string]composeService `yaml:"services"`
}

// ComposeFile renders the minimal compose definition for a container spec.
func ComposeFile(spec models.DbContainerSpec) ([]byte, error) {
	def := composeDefinition{
		Services: map[string]composeService{
			"postgres": {
				Image:         postgresImage,
				ContainerName: spec.ContainerName,
				Environment: map[string]string{
					"POSTGRES_USER":     spec.User,
					"POSTGRES_PASSWORD": spec.Password,
					"POSTGRES_DB":       spec.DBName,
				},
				Ports:   []string{fmt.Sprintf("%d:5432", spec.Port)},
				Restart: "unless-stopped",
			},
		},
	}
	return yaml.Marshal(def)
}

func (m *Manager) composePath(spec models.DbContainerSpec) string {
	return filepath.Join(m.dir, composeProjectDir, spec.RepoName+".yaml")
}

// runDocker invokes the docker CLI under a bounded context; the runner kills
// the subprocess when the deadline expires.
func (m *Manager) runDocker(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return m.runner.Run(runCtx, m.dir, "docker", args...)
}

// Setup ensures a PostgreSQL container matching the spec is running and
// accepting connections. An already running container is a no-op success.
func (m *Manager) Setup(ctx context.Context, spec models.DbContainerSpec) error {
	log := logger.WithRepo(spec.RepoName, "postgres")

	if err := m.runner.LookPath("docker"); err != nil {
		return apperrors.New(apperrors.ErrCodeDockerMissing, "docker CLI not found in PATH").
			WithSuggestions("Install Docker and ensure the daemon is running")
	}

	running, err := m.containerRunning(ctx, spec.ContainerName)
	if err != nil {
		return err
	}
	if running {
		log.Infof("container %s already running", spec.ContainerName)
		return nil
	}

	if err := checkPortFree(spec.Port); err != nil {
		return err
	}

	path := m.composePath(spec)
	data, err := ComposeFile(spec)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to render compose definition")
	}
	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionNormal); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeFileOperation, "failed to create compose directory")
	}
	if err := os.WriteFile(path, data, common.FilePermissionNormal); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeFileOperation, "failed to write compose definition")
	}

	log.Infof("starting container %s on port %d", spec.ContainerName, spec.Port)
	output, err := m.runDocker(ctx, composeTimeout, "compose", "-f", path, "up", "-d")
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeContainerStart,
			fmt.Sprintf("failed to start container %s", spec.ContainerName)).
			WithContext("output", output)
	}

	if err := m.waitReady(ctx, spec); err != nil {
		return err
	}
	log.Infof("container %s is ready", spec.ContainerName)
	return nil
}

// Stop tears the container down. A missing container is a no-op success.
func (m *Manager) Stop(ctx context.Context, spec models.DbContainerSpec) error {
	log := logger.WithRepo(spec.RepoName, "postgres")

	if err := m.runner.LookPath("docker"); err != nil {
		return apperrors.New(apperrors.ErrCodeDockerMissing, "docker CLI not found in PATH")
	}

	running, err := m.containerRunning(ctx, spec.ContainerName)
	if err != nil {
		return err
	}
	if !running {
		log.Infof("container %s not running, nothing to stop", spec.ContainerName)
		return nil
	}

	path := m.composePath(spec)
	if _, statErr := os.Stat(path); statErr == nil {
		output, err := m.runDocker(ctx, composeTimeout, "compose", "-f", path, "down", "-v")
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeContainerStart,
				fmt.Sprintf("failed to stop container %s", spec.ContainerName)).
				WithContext("output", output)
		}
	} else {
		output, err := m.runDocker(ctx, composeTimeout, "rm", "-f", spec.ContainerName)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeContainerStart,
				fmt.Sprintf("failed to remove container %s", spec.ContainerName)).
				WithContext("output", output)
		}
	}
	log.Infof("container %s stopped", spec.ContainerName)
	return nil
}

func (m *Manager) containerRunning(ctx context.Context, name string) (bool, error) {
	output, err := m.runDocker(ctx, queryTimeout,
		"ps", "--filter", "name=^/"+name+"$", "--format", "{{.Names}}")
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeContainerStart, "docker ps failed").
			WithContext("output", output)
	}
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if strings.TrimSpace(line) == name {
			return true, nil
		}
	}
	return false, nil
}

// checkPortFree distinguishes a bound host port from a failed container
// start so the operator gets an actionable error.
func checkPortFree(port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return apperrors.New(apperrors.ErrCodePortInUse,
			fmt.Sprintf("port %d is already bound by another process", port)).
			WithContext("port", port).
			WithSuggestions(
				"Stop the process holding the port or pick another with --port",
			)
	}
	listener.Close()
	return nil
}

func (m *Manager) waitReady(ctx context.Context, spec models.DbContainerSpec) error {
	dsn := DSN(spec)
	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		db, err := m.connect(dsn)
		if err == nil {
			err = db.PingContext(ctx)
			db.Close()
			if err == nil {
				return nil
			}
		}
		lastErr = err

		if attempt < m.attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.interval):
			}
		}
	}
	return apperrors.New(apperrors.ErrCodeDBNotReady,
		fmt.Sprintf("database in %s not ready after %d attempts", spec.ContainerName, m.attempts)).
		WithContext("last_error", fmt.Sprint(lastErr)).
		WithSuggestions("Check container logs with: docker logs " + spec.ContainerName)
}
