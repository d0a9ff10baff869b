package models

// PatchRecord is the persisted manifest of one provider-switch session.
// It is written before the first in-place edit and guarantees every modified
// file has a pristine copy under BackupDir.
type PatchRecord struct {
	SessionID     string   `json:"session_id"`
	RepoPath      string   `json:"repo_path"`
	ModifiedFiles []string `json:"modified_files"` // relative to RepoPath
	CreatedFiles  []string `json:"created_files,omitempty"`
	BackupDir     string   `json:"backup_dir"`
	CreatedAt     string   `json:"created_at"`
}
