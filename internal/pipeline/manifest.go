package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	apperrors "repoharness/pkg/errors"
	"repoharness/pkg/models"
)

// LoadManifest reads the commits manifest, a JSON array of
// (repo_url, commit_sha) pairs. An unreadable or malformed manifest is the
// one condition that aborts a batch run before any repository is processed.
func LoadManifest(path string) ([]models.ManifestEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeManifestUnreadable,
			fmt.Sprintf("failed to read manifest %s", path)).
			WithSuggestions("Check the manifest_file path in the configuration")
	}

	var entries []models.ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeManifestUnreadable,
			fmt.Sprintf("manifest %s is not a JSON array of entries", path))
	}

	for i, entry := range entries {
		if entry.RepoURL == "" || entry.CommitSHA == "" {
			return nil, apperrors.New(apperrors.ErrCodeManifestUnreadable,
				fmt.Sprintf("manifest entry %d is missing repo_url or commit_sha", i))
		}
	}
	return entries, nil
}
