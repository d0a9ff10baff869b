package models

// ProjectType classifies a repository by the package ecosystems it uses.
type ProjectType string

const (
	ProjectPython  ProjectType = "python"
	ProjectNode    ProjectType = "node"
	ProjectHybrid  ProjectType = "hybrid"
	ProjectUnknown ProjectType = "unknown"
)

// PackageManager identifies the installer selected for an ecosystem.
type PackageManager string

const (
	ManagerPip    PackageManager = "pip"
	ManagerPoetry PackageManager = "poetry"
	ManagerUv     PackageManager = "uv"
	ManagerNpm    PackageManager = "npm"
	ManagerYarn   PackageManager = "yarn"
	ManagerPnpm   PackageManager = "pnpm"
	ManagerBun    PackageManager = "bun"
	ManagerNone   PackageManager = ""
)

// BuildRequirement is derived by static inspection of a repository's manifest
// files. It is recomputed on demand and never treated as a source of truth.
type BuildRequirement struct {
	ProjectPath       string           `json:"project_path"`
	ProjectType       ProjectType      `json:"project_type"`
	PythonManager     PackageManager   `json:"python_manager,omitempty"`
	NodeManager       PackageManager   `json:"node_manager,omitempty"`
	ManifestFiles     []string         `json:"manifest_files"`
	EnvVarsReferenced []string         `json:"env_vars_referenced,omitempty"`
}

// FailureKind distinguishes failures that need different operator responses.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureExitCode    FailureKind = "exit_code"    // installer or build exited non-zero
	FailureTimeout     FailureKind = "timeout"      // bounded invocation exceeded its deadline
	FailureMissingTool FailureKind = "missing_tool" // required global tooling absent
	FailureCancelled   FailureKind = "cancelled"    // the surrounding run was interrupted
)

// InstallResult reports one ecosystem's install attempt within a repository.
// A hybrid repository yields two independent results.
type InstallResult struct {
	ProjectPath string         `json:"project_path"`
	Ecosystem   ProjectType    `json:"ecosystem"`
	Manager     PackageManager `json:"manager"`
	Success     bool           `json:"success"`
	Failure     FailureKind    `json:"failure,omitempty"`
	Output      string         `json:"output,omitempty"`
	Skipped     bool           `json:"skipped,omitempty"`
}

// BuildStatus is the outcome of a build verification attempt.
type BuildStatus string

const (
	BuildSuccess        BuildStatus = "success"
	BuildFailed         BuildStatus = "failed"
	BuildTimeout        BuildStatus = "timeout"
	BuildNoBuildCommand BuildStatus = "no_build_command"
	BuildCancelled      BuildStatus = "cancelled"
)

// BuildResult reports a repository's build verification with captured output.
type BuildResult struct {
	ProjectPath string      `json:"project_path"`
	Command     string      `json:"command,omitempty"`
	Status      BuildStatus `json:"status"`
	Output      string      `json:"output,omitempty"`
}
