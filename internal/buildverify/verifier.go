package buildverify

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"repoharness/internal/common"
	"repoharness/internal/deps"
	apperrors "repoharness/pkg/errors"
	"repoharness/pkg/logger"
	"repoharness/pkg/models"
)

// ResultsFile is the persisted array of build results.
const ResultsFile = "build_results.json"

// DefaultTimeout bounds each build attempt, mirroring the install bound.
const DefaultTimeout = 10 * time.Minute

// Options configures a Verifier.
type Options struct {
	Runner  deps.CommandRunner
	Timeout time.Duration
	DryRun  bool
}

// Verifier attempts a project's build step and reports pass/fail with
// captured output. It never mutates repository sources; transient build
// artifacts (dist/, node_modules cache) are the only acceptable side
// effects.
type Verifier struct {
	runner  deps.CommandRunner
	timeout time.Duration
	dryRun  bool
}

// New creates a Verifier; zero options select the defaults.
func New(opts Options) *Verifier {
	if opts.Runner == nil {
		opts.Runner = deps.ExecRunner{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Verifier{runner: opts.Runner, timeout: opts.Timeout, dryRun: opts.DryRun}
}

// Verify discovers and runs the project's build command. A project with no
// discoverable build step reports BuildNoBuildCommand, which is
// informational, not a failure.
func (v *Verifier) Verify(ctx context.Context, req models.BuildRequirement) models.BuildResult {
	result := models.BuildResult{ProjectPath: req.ProjectPath}
	log := logger.WithRepo(req.ProjectPath, "build")

	name, args, found := discoverBuildCommand(req)
	if !found {
		log.Info("no build command discovered")
		result.Status = models.BuildNoBuildCommand
		return result
	}
	result.Command = name + " " + strings.Join(args, " ")

	if v.dryRun {
		log.Infof("dry-run: would execute %s", result.Command)
		result.Status = models.BuildSuccess
		result.Output = "dry-run"
		return result
	}

	if err := v.runner.LookPath(name); err != nil {
		log.Errorf("build tool %s not found", name)
		result.Status = models.BuildFailed
		result.Output = apperrors.MissingToolError(name).Error()
		return result
	}

	runCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	output, err := v.runner.Run(runCtx, req.ProjectPath, name, args...)
	result.Output = output
	switch {
	case err != nil && ctx.Err() != nil:
		// The run itself was cancelled; not this project's fault.
		log.Warnf("build cancelled: %v", ctx.Err())
		result.Status = models.BuildCancelled
	case err != nil && runCtx.Err() == context.DeadlineExceeded:
		appErr := apperrors.TimeoutError("build", v.timeout)
		log.Error(appErr.Message)
		result.Status = models.BuildTimeout
		if result.Output != "" {
			result.Output += "\n"
		}
		result.Output += appErr.Error()
	case err != nil:
		log.Errorf("build failed: %v", err)
		result.Status = models.BuildFailed
	default:
		log.Info("build succeeded")
		result.Status = models.BuildSuccess
	}
	return result
}

// VerifyAll runs Verify over every requirement, persisting the results
// under outputDir. Cancellation stops between projects; completed results
// are still written.
func (v *Verifier) VerifyAll(ctx context.Context, reqs []models.BuildRequirement, outputDir string) ([]models.BuildResult, error) {
	results := make([]models.BuildResult, 0, len(reqs))
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			break
		}
		results = append(results, v.Verify(ctx, req))
	}

	if err := common.WriteJSONFile(filepath.Join(outputDir, ResultsFile), results); err != nil {
		return results, err
	}
	return results, nil
}

// discoverBuildCommand finds the project's build step: a package.json
// "build" script run through the selected node manager, else a python
// package build. Absence of both is not an error.
func discoverBuildCommand(req models.BuildRequirement) (string, []string, bool) {
	if cmd, args, ok := nodeBuildCommand(req); ok {
		return cmd, args, true
	}
	if cmd, args, ok := pythonBuildCommand(req); ok {
		return cmd, args, true
	}
	return "", nil, false
}

func nodeBuildCommand(req models.BuildRequirement) (string, []string, bool) {
	data, err := os.ReadFile(filepath.Join(req.ProjectPath, "package.json"))
	if err != nil {
		return "", nil, false
	}

	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return "", nil, false
	}
	if _, ok := pkg.Scripts["build"]; !ok {
		return "", nil, false
	}

	manager := req.NodeManager
	if manager == models.ManagerNone {
		manager = models.ManagerNpm
	}
	return string(manager), []string{"run", "build"}, true
}

func pythonBuildCommand(req models.BuildRequirement) (string, []string, bool) {
	if _, err := os.Stat(filepath.Join(req.ProjectPath, "setup.py")); err == nil {
		return "python", []string{"setup.py", "build"}, true
	}

	data, err := os.ReadFile(filepath.Join(req.ProjectPath, "pyproject.toml"))
	if err == nil && strings.Contains(string(data), "[build-system]") {
		return "python", []string{"-m", "build", "--no-isolation"}, true
	}
	return "", nil, false
}
