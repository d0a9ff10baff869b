package buildverify

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoharness/internal/common"
	"repoharness/internal/testutil"
	"repoharness/pkg/models"
)

// fakeRunner scripts subprocess behavior per tool name.
type fakeRunner struct {
	missing map[string]bool
	fail    map[string]bool
	hang    map[string]bool
	calls   [][]string
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.hang[name] {
		<-ctx.Done()
		return "partial output", ctx.Err()
	}
	if f.fail[name] {
		return "error TS2304: cannot find name", fmt.Errorf("exit status 2")
	}
	return "compiled successfully", nil
}

func (f *fakeRunner) LookPath(name string) error {
	if f.missing[name] {
		return fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return nil
}

func nodeProject(t *testing.T, scripts string, manager models.PackageManager) models.BuildRequirement {
	t.Helper()
	h := testutil.NewTestHelper(t)
	dir := t.TempDir()
	h.WriteFile(dir, "package.json", scripts)
	return models.BuildRequirement{
		ProjectPath: dir,
		ProjectType: models.ProjectNode,
		NodeManager: manager,
	}
}

func TestVerifyNodeBuildScript(t *testing.T) {
	req := nodeProject(t, `{"scripts":{"build":"tsc"}}`, models.ManagerNpm)
	runner := &fakeRunner{}
	v := New(Options{Runner: runner})

	result := v.Verify(context.Background(), req)

	assert.Equal(t, models.BuildSuccess, result.Status)
	assert.Equal(t, "npm run build", result.Command)
	assert.Equal(t, "compiled successfully", result.Output)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"npm", "run", "build"}, runner.calls[0])
}

func TestVerifyUsesDetectedNodeManager(t *testing.T) {
	req := nodeProject(t, `{"scripts":{"build":"next build"}}`, models.ManagerPnpm)
	runner := &fakeRunner{}
	v := New(Options{Runner: runner})

	result := v.Verify(context.Background(), req)

	assert.Equal(t, models.BuildSuccess, result.Status)
	assert.Equal(t, []string{"pnpm", "run", "build"}, runner.calls[0])
}

func TestVerifyNoBuildCommand(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{
			name:  "package.json without build script",
			files: map[string]string{"package.json": `{"scripts":{"test":"jest"}}`},
		},
		{
			name:  "python without build system",
			files: map[string]string{"requirements.txt": "openai\n"},
		},
		{
			name:  "empty project",
			files: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testutil.NewTestHelper(t)
			dir := t.TempDir()
			for name, content := range tt.files {
				h.WriteFile(dir, name, content)
			}

			runner := &fakeRunner{}
			v := New(Options{Runner: runner})
			result := v.Verify(context.Background(), models.BuildRequirement{ProjectPath: dir})

			assert.Equal(t, models.BuildNoBuildCommand, result.Status)
			assert.Empty(t, runner.calls, "no subprocess should run")
		})
	}
}

func TestVerifyPythonSetupPy(t *testing.T) {
	h := testutil.NewTestHelper(t)
	dir := t.TempDir()
	h.WriteFile(dir, "setup.py", "from setuptools import setup\nsetup()\n")

	runner := &fakeRunner{}
	v := New(Options{Runner: runner})
	result := v.Verify(context.Background(), models.BuildRequirement{
		ProjectPath: dir,
		ProjectType: models.ProjectPython,
	})

	assert.Equal(t, models.BuildSuccess, result.Status)
	assert.Equal(t, []string{"python", "setup.py", "build"}, runner.calls[0])
}

func TestVerifyPythonPyprojectBuildSystem(t *testing.T) {
	h := testutil.NewTestHelper(t)
	dir := t.TempDir()
	h.WriteFile(dir, "pyproject.toml", "[build-system]\nrequires = [\"hatchling\"]\n")

	runner := &fakeRunner{}
	v := New(Options{Runner: runner})
	result := v.Verify(context.Background(), models.BuildRequirement{
		ProjectPath: dir,
		ProjectType: models.ProjectPython,
	})

	assert.Equal(t, models.BuildSuccess, result.Status)
	assert.Equal(t, []string{"python", "-m", "build", "--no-isolation"}, runner.calls[0])
}

func TestVerifyBuildFailureCapturesOutput(t *testing.T) {
	req := nodeProject(t, `{"scripts":{"build":"tsc"}}`, models.ManagerYarn)
	runner := &fakeRunner{fail: map[string]bool{"yarn": true}}
	v := New(Options{Runner: runner})

	result := v.Verify(context.Background(), req)

	assert.Equal(t, models.BuildFailed, result.Status)
	assert.Contains(t, result.Output, "TS2304")
}

func TestVerifyTimeoutDistinctFromFailure(t *testing.T) {
	req := nodeProject(t, `{"scripts":{"build":"webpack"}}`, models.ManagerNpm)
	runner := &fakeRunner{hang: map[string]bool{"npm": true}}
	v := New(Options{Runner: runner, Timeout: 50 * time.Millisecond})

	result := v.Verify(context.Background(), req)

	assert.Equal(t, models.BuildTimeout, result.Status)
	assert.Contains(t, result.Output, "partial output")
	assert.Contains(t, result.Output, "Re-run with a larger --timeout")
}

func TestVerifyCancellationIsNotAFailure(t *testing.T) {
	req := nodeProject(t, `{"scripts":{"build":"webpack"}}`, models.ManagerNpm)
	runner := &fakeRunner{hang: map[string]bool{"npm": true}}
	v := New(Options{Runner: runner, Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result := v.Verify(ctx, req)
	assert.Equal(t, models.BuildCancelled, result.Status)
}

func TestVerifyMissingToolFails(t *testing.T) {
	req := nodeProject(t, `{"scripts":{"build":"vite build"}}`, models.ManagerBun)
	runner := &fakeRunner{missing: map[string]bool{"bun": true}}
	v := New(Options{Runner: runner})

	result := v.Verify(context.Background(), req)

	assert.Equal(t, models.BuildFailed, result.Status)
	assert.Contains(t, result.Output, "not found")
	assert.Empty(t, runner.calls, "missing tool must not be executed")
}

func TestVerifyDryRunSkipsExecution(t *testing.T) {
	req := nodeProject(t, `{"scripts":{"build":"tsc"}}`, models.ManagerNpm)
	runner := &fakeRunner{}
	v := New(Options{Runner: runner, DryRun: true})

	result := v.Verify(context.Background(), req)

	assert.Equal(t, models.BuildSuccess, result.Status)
	assert.Empty(t, runner.calls)
}

func TestVerifyAllPersistsResults(t *testing.T) {
	good := nodeProject(t, `{"scripts":{"build":"tsc"}}`, models.ManagerNpm)
	bad := nodeProject(t, `{"scripts":{"build":"tsc"}}`, models.ManagerYarn)
	reqs := []models.BuildRequirement{good, bad}

	outputDir := t.TempDir()
	runner := &fakeRunner{fail: map[string]bool{"yarn": true}}
	v := New(Options{Runner: runner})

	results, err := v.VerifyAll(context.Background(), reqs, outputDir)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.BuildSuccess, results[0].Status)
	assert.Equal(t, models.BuildFailed, results[1].Status)

	var persisted []models.BuildResult
	found, err := common.ReadJSONFile(filepath.Join(outputDir, ResultsFile), &persisted)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, persisted, 2)
}

func TestVerifyAllStopsOnCancel(t *testing.T) {
	reqs := []models.BuildRequirement{
		nodeProject(t, `{"scripts":{"build":"tsc"}}`, models.ManagerNpm),
		nodeProject(t, `{"scripts":{"build":"tsc"}}`, models.ManagerNpm),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := New(Options{Runner: &fakeRunner{}})
	results, err := v.VerifyAll(ctx, reqs, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, results)
}
