package deps

import (
	"context"
	"strings"
	"time"

	apperrors "repoharness/pkg/errors"
	"repoharness/pkg/logger"
	"repoharness/pkg/models"
)

// DefaultTimeout bounds each install invocation.
const DefaultTimeout = 10 * time.Minute

// Options configures an Installer.
type Options struct {
	Runner     CommandRunner
	Timeout    time.Duration
	PythonOnly bool
	NodeOnly   bool
	DryRun     bool
}

// Installer runs per-ecosystem dependency installs for inspected projects.
// Installation is not idempotent by design: re-running re-installs, but a
// re-run never corrupts a partially installed environment beyond what the
// package manager itself would.
type Installer struct {
	runner  CommandRunner
	timeout time.Duration
	python  bool
	node    bool
	dryRun  bool
}

// NewInstaller creates an Installer; zero options select the defaults.
func NewInstaller(opts Options) *Installer {
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Installer{
		runner:  opts.Runner,
		timeout: opts.Timeout,
		python:  !opts.NodeOnly,
		node:    !opts.PythonOnly,
		dryRun:  opts.DryRun,
	}
}

// Install runs every applicable ecosystem install for one project. A hybrid
// project yields two independent results; neither blocks the other.
func (i *Installer) Install(ctx context.Context, req models.BuildRequirement) []models.InstallResult {
	var results []models.InstallResult

	if i.python && (req.ProjectType == models.ProjectPython || req.ProjectType == models.ProjectHybrid) {
		results = append(results, i.runEcosystem(ctx, req, models.ProjectPython, req.PythonManager))
	}
	if i.node && (req.ProjectType == models.ProjectNode || req.ProjectType == models.ProjectHybrid) {
		results = append(results, i.runEcosystem(ctx, req, models.ProjectNode, req.NodeManager))
	}

	return results
}

func (i *Installer) runEcosystem(ctx context.Context, req models.BuildRequirement, eco models.ProjectType, manager models.PackageManager) models.InstallResult {
	result := models.InstallResult{
		ProjectPath: req.ProjectPath,
		Ecosystem:   eco,
		Manager:     manager,
	}

	name, args := installCommand(manager, req)
	log := logger.WithRepo(req.ProjectPath, "install").WithField("manager", string(manager))

	if i.dryRun {
		log.Infof("dry-run: would execute %s %s", name, strings.Join(args, " "))
		result.Success = true
		result.Skipped = true
		return result
	}

	// Missing global tooling is reported distinctly so it can be fixed
	// once rather than chased per-repo.
	if err := i.runner.LookPath(name); err != nil {
		log.Warnf("tool %s not found", name)
		result.Failure = models.FailureMissingTool
		result.Output = apperrors.MissingToolError(name).Error()
		return result
	}

	runCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	output, err := i.runner.Run(runCtx, req.ProjectPath, name, args...)
	result.Output = tail(output, 4000)

	if err != nil {
		switch {
		case ctx.Err() != nil:
			// The run itself was cancelled; not this project's fault.
			log.Warnf("install cancelled: %v", ctx.Err())
			result.Failure = models.FailureCancelled
		case runCtx.Err() == context.DeadlineExceeded:
			appErr := apperrors.TimeoutError("dependency install", i.timeout)
			log.Error(appErr.Message)
			result.Failure = models.FailureTimeout
			result.Output = joinOutput(result.Output, appErr.Error())
		default:
			log.Errorf("install failed: %v", err)
			result.Failure = models.FailureExitCode
		}
		return result
	}

	log.Info("install succeeded")
	result.Success = true
	return result
}

// installCommand maps a package manager to its install invocation.
func installCommand(manager models.PackageManager, req models.BuildRequirement) (string, []string) {
	switch manager {
	case models.ManagerPoetry:
		return "poetry", []string{"install", "--no-interaction"}
	case models.ManagerUv:
		return "uv", []string{"sync"}
	case models.ManagerPip:
		if hasManifest(req, "requirements.txt") {
			return "pip", []string{"install", "-r", "requirements.txt"}
		}
		return "pip", []string{"install", "-e", "."}
	case models.ManagerYarn:
		return "yarn", []string{"install"}
	case models.ManagerPnpm:
		return "pnpm", []string{"install"}
	case models.ManagerBun:
		return "bun", []string{"install"}
	default:
		return "npm", []string{"install"}
	}
}

func hasManifest(req models.BuildRequirement, name string) bool {
	for _, m := range req.ManifestFiles {
		if m == name {
			return true
		}
	}
	return false
}

// tail keeps the last n bytes of subprocess output; failures are usually
// explained at the end.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

func joinOutput(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
