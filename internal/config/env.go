package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"

	"repoharness/internal/common"
)

// EnvSnapshot is an immutable view of the shared root environment file,
// captured once per run and passed into per-repository operations. Workers
// never read the shared file directly, so concurrent repos cannot race on it.
type EnvSnapshot struct {
	values map[string]string
}

// LoadEnvSnapshot reads the shared root-level environment file. A missing
// file yields an empty snapshot.
func LoadEnvSnapshot(path string) (*EnvSnapshot, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &EnvSnapshot{values: map[string]string{}}, nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	return &EnvSnapshot{values: values}, nil
}

// SnapshotFromMap builds a snapshot from explicit values, copying the map.
func SnapshotFromMap(values map[string]string) *EnvSnapshot {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &EnvSnapshot{values: copied}
}

// Get returns a value from the snapshot.
func (s *EnvSnapshot) Get(key string) string {
	return s.values[key]
}

// Keys returns the snapshot's keys in sorted order.
func (s *EnvSnapshot) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MergeInto merges the snapshot's defaults with a repository's own env file.
// Repository-local values win over shared defaults. The merged result is
// written back to the repository env file.
func (s *EnvSnapshot) MergeInto(repoEnvPath string) (map[string]string, error) {
	merged := make(map[string]string, len(s.values))
	for k, v := range s.values {
		merged[k] = v
	}

	if _, err := os.Stat(repoEnvPath); err == nil {
		local, err := godotenv.Read(repoEnvPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read repo env file %s: %w", repoEnvPath, err)
		}
		for k, v := range local {
			merged[k] = v
		}
	}

	if err := os.MkdirAll(filepath.Dir(repoEnvPath), common.DirPermissionNormal); err != nil {
		return nil, fmt.Errorf("failed to create env file directory: %w", err)
	}
	if err := godotenv.Write(merged, repoEnvPath); err != nil {
		return nil, fmt.Errorf("failed to write merged env file: %w", err)
	}

	return merged, nil
}
