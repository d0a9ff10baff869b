package deps

import (
	"context"
	"os/exec"
)

// CommandRunner abstracts subprocess execution so installs and builds can be
// exercised in tests without real package managers.
type CommandRunner interface {
	// Run executes a command in dir and returns its combined output. The
	// process is killed when ctx expires.
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
	// LookPath reports whether a tool is available globally.
	LookPath(name string) error
}

// ExecRunner runs real subprocesses.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func (ExecRunner) LookPath(name string) error {
	_, err := exec.LookPath(name)
	return err
}
