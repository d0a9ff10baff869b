package provider

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"

	"repoharness/internal/config"
	"repoharness/internal/patch"
	apperrors "repoharness/pkg/errors"
	"repoharness/pkg/models"
)

// Target is the standardized configuration every repository is switched to.
type Target struct {
	Provider  models.ProviderConfig
	Database  models.DatabaseConfig
	SharedEnv *config.EnvSnapshot
}

// DSN renders the standardized PostgreSQL connection string.
func (t Target) DSN() string {
	sslMode := t.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		t.Database.User, t.Database.Password, t.Database.Host,
		t.Database.Port, t.Database.DBName, sslMode)
}

// envValues returns the environment keys the harness standardizes across
// every repository.
func (t Target) envValues() map[string]string {
	values := map[string]string{
		"AZURE_OPENAI_ENDPOINT":    t.Provider.Endpoint,
		"AZURE_OPENAI_API_KEY":     t.Provider.APIKey,
		"AZURE_OPENAI_DEPLOYMENT":  t.Provider.Deployment,
		"AZURE_OPENAI_API_VERSION": t.Provider.APIVersion,
		"OPENAI_API_VERSION":       t.Provider.APIVersion,
		"OPENAI_API_TYPE":          "azure",
		"DATABASE_URL":             t.DSN(),
	}
	if t.Provider.LangfuseHost != "" {
		values["LANGFUSE_HOST"] = t.Provider.LangfuseHost
		values["LANGFUSE_PUBLIC_KEY"] = t.Provider.LangfusePublic
		values["LANGFUSE_SECRET_KEY"] = t.Provider.LangfuseSecret
	}
	return values
}

// Detector rewrites one slice of a repository's configuration surface.
// Detectors run in a fixed priority order; a file claimed by an earlier
// detector is skipped by later ones.
type Detector interface {
	Name() string
	Apply(repoPath string, tx *patch.Session, claimed map[string]bool, target Target) ([]string, error)
}

// defaultDetectors is the fixed priority order. Env files are rewritten
// first so a framework-specific source rewrite never races the generic
// env injection for the same file.
func defaultDetectors() []Detector {
	return []Detector{
		envFileDetector{},
		pythonConfigDetector{},
		nodeConfigDetector{},
		requirementsDetector{},
		packageJSONDetector{},
	}
}

// skipDirs are never descended into during source scans.
var skipDirs = map[string]bool{
	".git":              true,
	"node_modules":      true,
	".venv":             true,
	"venv":              true,
	"__pycache__":       true,
	"dist":              true,
	patch.BackupDirName: true,
}

// envFileDetector rewrites every root-level .env* file to the target
// provider keys. The shared environment snapshot is merged into .env with
// repository-local values winning for non-provider keys; the provider keys
// themselves always take the target values. A repository with no .env gets
// one created.
type envFileDetector struct{}

func (envFileDetector) Name() string { return "env-files" }

func (envFileDetector) Apply(repoPath string, tx *patch.Session, claimed map[string]bool, target Target) ([]string, error) {
	entries, err := os.ReadDir(repoPath)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeFileOperation, "failed to list repository root")
	}

	var modified []string
	sawDotEnv := false

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || claimed[name] {
			continue
		}
		if name != ".env" && !strings.HasPrefix(name, ".env.") {
			continue
		}
		if name == ".env" {
			sawDotEnv = true
		}

		values, err := godotenv.Read(filepath.Join(repoPath, name))
		if err != nil {
			values = map[string]string{}
		}
		if name == ".env" && target.SharedEnv != nil {
			for _, key := range target.SharedEnv.Keys() {
				if _, exists := values[key]; !exists {
					values[key] = target.SharedEnv.Get(key)
				}
			}
		}
		for key, value := range target.envValues() {
			values[key] = value
		}

		if err := tx.Record(name); err != nil {
			return modified, err
		}
		if err := godotenv.Write(values, filepath.Join(repoPath, name)); err != nil {
			return modified, apperrors.Wrap(err, apperrors.ErrCodePatchConflict,
				fmt.Sprintf("failed to rewrite %s", name))
		}
		modified = append(modified, name)
	}

	if !sawDotEnv {
		values := map[string]string{}
		if target.SharedEnv != nil {
			for _, key := range target.SharedEnv.Keys() {
				values[key] = target.SharedEnv.Get(key)
			}
		}
		for key, value := range target.envValues() {
			values[key] = value
		}
		if err := tx.RecordCreate(".env"); err != nil {
			return modified, err
		}
		if err := godotenv.Write(values, filepath.Join(repoPath, ".env")); err != nil {
			return modified, apperrors.Wrap(err, apperrors.ErrCodePatchConflict, "failed to create .env")
		}
		modified = append(modified, ".env")
	}
	return modified, nil
}

// rewriteRule is a single textual substitution. All rules are written so a
// second application is a no-op, which keeps re-running setup idempotent.
type rewriteRule struct {
	pattern *regexp.Regexp
	replace string
}

var pythonRules = []rewriteRule{
	{regexp.MustCompile(`from openai import OpenAI\b`), "from openai import AzureOpenAI"},
	{regexp.MustCompile(`from langchain_openai import ChatOpenAI\b`), "from langchain_openai import AzureChatOpenAI"},
	{regexp.MustCompile(`\bChatOpenAI\(`), "AzureChatOpenAI("},
	{regexp.MustCompile(`\bOpenAI\(`), "AzureOpenAI("},
}

var nodeRules = []rewriteRule{
	{regexp.MustCompile(`import OpenAI from (['"])openai['"]`), "import { AzureOpenAI } from ${1}openai${1}"},
	{regexp.MustCompile(`import \{ OpenAI \} from (['"])openai['"]`), "import { AzureOpenAI } from ${1}openai${1}"},
	{regexp.MustCompile(`\bnew OpenAI\(`), "new AzureOpenAI("},
}

const openAIBaseURL = "https://api.openai.com/v1"

func applyRules(content string, rules []rewriteRule, target Target) string {
	for _, rule := range rules {
		content = rule.pattern.ReplaceAllString(content, rule.replace)
	}
	if target.Provider.Endpoint != "" {
		content = strings.ReplaceAll(content, openAIBaseURL, target.Provider.Endpoint)
	}
	return content
}

// rewriteSources walks the repository for files matching exts and applies
// the substitution rules, recording and rewriting only files whose content
// actually changes.
func rewriteSources(repoPath string, tx *patch.Session, claimed map[string]bool, target Target, exts map[string]bool, rules []rewriteRule) ([]string, error) {
	var modified []string
	err := filepath.WalkDir(repoPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !exts[filepath.Ext(d.Name())] {
			return nil
		}

		relPath, err := filepath.Rel(repoPath, path)
		if err != nil || claimed[relPath] {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rewritten := applyRules(string(data), rules, target)
		if rewritten == string(data) {
			return nil
		}

		if err := tx.Record(relPath); err != nil {
			return err
		}
		info, statErr := d.Info()
		mode := os.FileMode(0644)
		if statErr == nil {
			mode = info.Mode()
		}
		if err := os.WriteFile(path, []byte(rewritten), mode); err != nil {
			return err
		}
		modified = append(modified, relPath)
		return nil
	})
	if err != nil {
		return modified, apperrors.Wrap(err, apperrors.ErrCodePatchConflict, "source rewrite failed")
	}
	return modified, nil
}

// pythonConfigDetector rewrites OpenAI-family client initialization in
// python sources to the Azure equivalents.
type pythonConfigDetector struct{}

func (pythonConfigDetector) Name() string { return "python-config" }

func (pythonConfigDetector) Apply(repoPath string, tx *patch.Session, claimed map[string]bool, target Target) ([]string, error) {
	return rewriteSources(repoPath, tx, claimed, target, map[string]bool{".py": true}, pythonRules)
}

// nodeConfigDetector does the same for javascript and typescript sources.
type nodeConfigDetector struct{}

func (nodeConfigDetector) Name() string { return "node-config" }

func (nodeConfigDetector) Apply(repoPath string, tx *patch.Session, claimed map[string]bool, target Target) ([]string, error) {
	exts := map[string]bool{".js": true, ".ts": true, ".mjs": true, ".cjs": true}
	return rewriteSources(repoPath, tx, claimed, target, exts, nodeRules)
}

// requirementsDetector ensures the provider SDK (and langfuse, when
// observability is configured) appears in requirements.txt.
type requirementsDetector struct{}

func (requirementsDetector) Name() string { return "requirements" }

func (requirementsDetector) Apply(repoPath string, tx *patch.Session, claimed map[string]bool, target Target) ([]string, error) {
	const fileName = "requirements.txt"
	if claimed[fileName] {
		return nil, nil
	}
	path := filepath.Join(repoPath, fileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeFileOperation, "failed to read requirements.txt")
	}

	var missing []string
	for _, dep := range requiredPythonDeps(target) {
		if !hasRequirement(string(data), dep) {
			missing = append(missing, dep)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	if err := tx.Record(fileName); err != nil {
		return nil, err
	}
	content := string(data)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += strings.Join(missing, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodePatchConflict, "failed to rewrite requirements.txt")
	}
	return []string{fileName}, nil
}

func requiredPythonDeps(target Target) []string {
	deps := []string{"openai"}
	if target.Provider.LangfuseHost != "" {
		deps = append(deps, "langfuse")
	}
	return deps
}

func hasRequirement(content, name string) bool {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		spec := strings.FieldsFunc(line, func(r rune) bool {
			return r == '=' || r == '<' || r == '>' || r == '~' || r == '[' || r == ';' || r == ' '
		})
		if len(spec) > 0 && strings.EqualFold(spec[0], name) {
			return true
		}
	}
	return false
}

// packageJSONDetector ensures the openai package is a declared dependency.
type packageJSONDetector struct{}

func (packageJSONDetector) Name() string { return "package-json" }

func (packageJSONDetector) Apply(repoPath string, tx *patch.Session, claimed map[string]bool, target Target) ([]string, error) {
	const fileName = "package.json"
	if claimed[fileName] {
		return nil, nil
	}
	path := filepath.Join(repoPath, fileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeFileOperation, "failed to read package.json")
	}

	var pkg map[string]interface{}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, apperrors.PatchConflictError(fileName, "parseable JSON object").
			WithContext("parse_error", err.Error())
	}

	deps, _ := pkg["dependencies"].(map[string]interface{})
	if deps == nil {
		deps = map[string]interface{}{}
	}
	if _, exists := deps["openai"]; exists {
		return nil, nil
	}
	deps["openai"] = "^4.0.0"
	pkg["dependencies"] = deps

	out, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to encode package.json")
	}
	out = append(out, '\n')

	if err := tx.Record(fileName); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodePatchConflict, "failed to rewrite package.json")
	}
	return []string{fileName}, nil
}
