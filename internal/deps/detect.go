package deps

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"repoharness/pkg/models"
)

// RequirementsFile is the persisted array of build requirements.
const RequirementsFile = "build_requirements.json"

var pythonManifests = []string{
	"requirements.txt",
	"pyproject.toml",
	"setup.py",
	"Pipfile",
}

var nodeManifests = []string{
	"package.json",
}

// Inspect classifies a repository by static inspection of its manifest
// files. The result is always re-derivable from the filesystem and is never
// treated as a source of truth.
func Inspect(projectPath string) models.BuildRequirement {
	req := models.BuildRequirement{
		ProjectPath: projectPath,
		ProjectType: models.ProjectUnknown,
	}

	hasPython := collectManifests(projectPath, pythonManifests, &req)
	hasNode := collectManifests(projectPath, nodeManifests, &req)

	switch {
	case hasPython && hasNode:
		req.ProjectType = models.ProjectHybrid
	case hasPython:
		req.ProjectType = models.ProjectPython
	case hasNode:
		req.ProjectType = models.ProjectNode
	}

	if hasPython {
		req.PythonManager = pythonManager(projectPath)
	}
	if hasNode {
		req.NodeManager = nodeManager(projectPath)
	}

	req.EnvVarsReferenced = envExampleKeys(projectPath)
	return req
}

func collectManifests(projectPath string, names []string, req *models.BuildRequirement) bool {
	found := false
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(projectPath, name)); err == nil {
			req.ManifestFiles = append(req.ManifestFiles, name)
			found = true
		}
	}
	return found
}

// pythonManager selects the installer by lockfile precedence: a poetry or uv
// lockfile wins over a bare requirements file.
func pythonManager(projectPath string) models.PackageManager {
	if exists(projectPath, "poetry.lock") {
		return models.ManagerPoetry
	}
	if exists(projectPath, "uv.lock") {
		return models.ManagerUv
	}
	if exists(projectPath, "pyproject.toml") && pyprojectUsesPoetry(projectPath) {
		return models.ManagerPoetry
	}
	return models.ManagerPip
}

// nodeManager selects the installer by lockfile precedence; a bare
// package.json defaults to npm.
func nodeManager(projectPath string) models.PackageManager {
	switch {
	case exists(projectPath, "yarn.lock"):
		return models.ManagerYarn
	case exists(projectPath, "pnpm-lock.yaml"):
		return models.ManagerPnpm
	case exists(projectPath, "bun.lockb") || exists(projectPath, "bun.lock"):
		return models.ManagerBun
	default:
		return models.ManagerNpm
	}
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

func pyprojectUsesPoetry(projectPath string) bool {
	data, err := os.ReadFile(filepath.Join(projectPath, "pyproject.toml"))
	if err != nil {
		return false
	}
	return strings.Contains(string(data), "[tool.poetry]")
}

// envExampleKeys collects environment variable names referenced by the
// project's example env files.
func envExampleKeys(projectPath string) []string {
	seen := map[string]bool{}
	for _, name := range []string{".env.example", ".env.sample", ".env.template"} {
		path := filepath.Join(projectPath, name)
		f, err := os.Open(path)
		if err != nil {
			continue
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if idx := strings.Index(line, "="); idx > 0 {
				key := strings.TrimSpace(line[:idx])
				if key != "" {
					seen[key] = true
				}
			}
		}
		f.Close()
	}

	if len(seen) == 0 {
		return nil
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
