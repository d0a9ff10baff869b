package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"repoharness/internal/buildverify"
	"repoharness/internal/cloner"
	"repoharness/internal/common"
	"repoharness/internal/config"
	"repoharness/internal/deps"
	"repoharness/internal/history"
	"repoharness/internal/provider"
	"repoharness/pkg/logger"
	"repoharness/pkg/models"
)

// InstallResultsFile is the persisted array of per-ecosystem install results.
const InstallResultsFile = "install_results.json"

// Options configures a batch run beyond what the config file carries.
type Options struct {
	Runner        deps.CommandRunner
	SkipExisting  bool
	DryRun        bool
	SkipPatch     bool
	SharedEnvPath string
}

// RepoOutcome is the per-repository roll-up shown in the final summary.
type RepoOutcome struct {
	URL     string
	Folder  string
	Clone   models.CloneStatus
	History bool
	Install []models.InstallResult
	Build   models.BuildStatus
	Patched bool
	Err     string
}

// Summary aggregates a batch run.
type Summary struct {
	Outcomes []RepoOutcome
}

// HasFailures reports whether any repository failed a stage. It drives the
// process exit code; per-repository failures never abort the batch itself.
func (s Summary) HasFailures() bool {
	for _, o := range s.Outcomes {
		if o.Err != "" {
			return true
		}
	}
	return false
}

// Pipeline drives every repository through clone, history extraction,
// dependency install, build verification and provider switch, one stage at
// a time. Artifacts are flushed after each repository so an interrupted run
// resumes where it stopped.
type Pipeline struct {
	cfg       models.Config
	opts      Options
	cloner    *cloner.Cloner
	extractor *history.Extractor
	installer *deps.Installer
	verifier  *buildverify.Verifier
	harness   *provider.Harness
}

// New assembles a Pipeline from the configuration.
func New(cfg models.Config, opts Options) (*Pipeline, error) {
	timeout := deps.DefaultTimeout
	if cfg.Install.TimeoutMinutes > 0 {
		timeout = time.Duration(cfg.Install.TimeoutMinutes) * time.Minute
	}

	sharedEnvPath := opts.SharedEnvPath
	if sharedEnvPath == "" {
		sharedEnvPath = ".env"
	}
	sharedEnv, err := config.LoadEnvSnapshot(sharedEnvPath)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:       cfg,
		opts:      opts,
		cloner:    cloner.New(cfg.OutputDir),
		extractor: history.New(cfg.HistoryLimit),
		installer: deps.NewInstaller(deps.Options{
			Runner:     opts.Runner,
			Timeout:    timeout,
			PythonOnly: cfg.Install.PythonOnly,
			NodeOnly:   cfg.Install.NodeOnly,
			DryRun:     opts.DryRun,
		}),
		verifier: buildverify.New(buildverify.Options{
			Runner:  opts.Runner,
			Timeout: timeout,
			DryRun:  opts.DryRun,
		}),
		harness: provider.New(cfg.Provider, cfg.Database, sharedEnv),
	}, nil
}

// Run processes every manifest entry sequentially. Only a pre-flight
// manifest failure returns an error; anything that goes wrong inside a
// repository is recorded in its outcome and the batch moves on.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	entries, err := LoadManifest(p.cfg.ManifestFile)
	if err != nil {
		return Summary{}, err
	}

	var (
		summary      Summary
		cloneResults []models.RepositoryCloneResult
		histories    []models.RepositoryHistory
		requirements []models.BuildRequirement
		installs     []models.InstallResult
		builds       []models.BuildResult
	)

	for _, entry := range entries {
		if ctx.Err() != nil {
			logger.Get().Warn("batch run cancelled, stopping before next repository")
			break
		}

		outcome := p.processRepo(ctx, entry,
			&cloneResults, &histories, &requirements, &installs, &builds)
		summary.Outcomes = append(summary.Outcomes, outcome)

		p.flushArtifacts(cloneResults, histories, requirements, installs, builds)
	}
	return summary, nil
}

func (p *Pipeline) processRepo(
	ctx context.Context,
	entry models.ManifestEntry,
	cloneResults *[]models.RepositoryCloneResult,
	histories *[]models.RepositoryHistory,
	requirements *[]models.BuildRequirement,
	installs *[]models.InstallResult,
	builds *[]models.BuildResult,
) RepoOutcome {
	outcome := RepoOutcome{URL: entry.RepoURL}

	cloneResult := p.cloner.Clone(ctx, entry.RepoURL, entry.CommitSHA, p.opts.SkipExisting)
	*cloneResults = append(*cloneResults, cloneResult)
	outcome.Clone = cloneResult.Status
	if !cloneResult.Cloned() {
		outcome.Err = cloneResult.Error
		return outcome
	}
	repoPath := cloneResult.LocalPath
	outcome.Folder = filepath.Base(repoPath)

	repoHistory, err := p.extractor.Extract(repoPath, entry.RepoURL, entry.CommitSHA)
	if err != nil {
		outcome.Err = err.Error()
		return outcome
	}
	*histories = append(*histories, *repoHistory)
	outcome.History = true

	requirement := deps.Inspect(repoPath)
	*requirements = append(*requirements, requirement)

	installResults := p.installer.Install(ctx, requirement)
	*installs = append(*installs, installResults...)
	outcome.Install = installResults
	for _, result := range installResults {
		if result.Failure == models.FailureCancelled {
			outcome.Err = "run cancelled"
			return outcome
		}
		if !result.Success && !result.Skipped {
			outcome.Err = "dependency install failed"
			return outcome
		}
	}

	buildResult := p.verifier.Verify(ctx, requirement)
	*builds = append(*builds, buildResult)
	outcome.Build = buildResult.Status
	if buildResult.Status == models.BuildCancelled {
		outcome.Err = "run cancelled"
		return outcome
	}
	if buildResult.Status == models.BuildFailed || buildResult.Status == models.BuildTimeout {
		outcome.Err = "build verification failed"
		return outcome
	}

	if !p.opts.SkipPatch && !p.opts.DryRun {
		if _, err := p.harness.Setup(repoPath); err != nil {
			outcome.Err = err.Error()
			return outcome
		}
		outcome.Patched = true
	}
	return outcome
}

// flushArtifacts rewrites every artifact file. Write failures are logged,
// not fatal; the in-memory state is still intact for the next flush.
func (p *Pipeline) flushArtifacts(
	cloneResults []models.RepositoryCloneResult,
	histories []models.RepositoryHistory,
	requirements []models.BuildRequirement,
	installs []models.InstallResult,
	builds []models.BuildResult,
) {
	artifacts := map[string]interface{}{
		cloner.CloneLogFile:     cloneResults,
		history.HistoryFile:     histories,
		deps.RequirementsFile:   requirements,
		InstallResultsFile:      installs,
		buildverify.ResultsFile: builds,
	}
	for name, value := range artifacts {
		path := filepath.Join(p.cfg.OutputDir, name)
		if err := common.WriteJSONFile(path, value); err != nil {
			logger.Get().WithField("artifact", name).Errorf("failed to write artifact: %v", err)
		}
	}
}
