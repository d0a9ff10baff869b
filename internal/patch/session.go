package patch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"repoharness/internal/common"
	apperrors "repoharness/pkg/errors"
	"repoharness/pkg/models"
)

// BackupDirName is the per-repo directory holding patch session backups.
const BackupDirName = ".harness_backups"

const recordFileName = "record.json"

// Session is a reversible edit transaction over one repository. It must be
// begun before the first file write; every file is backed up byte-for-byte
// exactly once per session, so the backup always reflects the pristine
// pre-session state.
type Session struct {
	id       string
	repoPath string
	dir      string
	created  time.Time
	recorded []string
	added    []string
	seen     map[string]bool
}

// Begin opens a new patch session for a repository, creating its backup
// directory and persisting an empty record before any edit happens.
func Begin(repoPath string) (*Session, error) {
	cleaned, err := common.CleanPath(repoPath)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBackupFailed, "invalid repository path")
	}

	s := &Session{
		id:       uuid.New().String(),
		repoPath: cleaned,
		created:  time.Now().UTC(),
		seen:     map[string]bool{},
	}
	s.dir = filepath.Join(cleaned, BackupDirName, s.id)

	if err := os.MkdirAll(s.dir, common.DirPermissionNormal); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBackupFailed, "failed to create backup directory")
	}
	if err := s.save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Record backs up a file before its first modification in this session.
// Later calls for the same file are no-ops. relPath is relative to the
// repository root; the file must exist.
func (s *Session) Record(relPath string) error {
	if s.seen[relPath] {
		return nil
	}

	src := filepath.Join(s.repoPath, relPath)
	dst := filepath.Join(s.dir, relPath)

	if err := os.MkdirAll(filepath.Dir(dst), common.DirPermissionNormal); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBackupFailed, "failed to create backup subdirectory")
	}
	if err := copyFile(src, dst); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBackupFailed,
			fmt.Sprintf("failed to back up %s", relPath)).
			WithContext("file", relPath)
	}

	s.seen[relPath] = true
	s.recorded = append(s.recorded, relPath)
	return s.save()
}

// RecordCreate marks a file that did not exist before this session. It has
// no backup; rollback removes it instead of restoring it.
func (s *Session) RecordCreate(relPath string) error {
	if s.seen[relPath] {
		return nil
	}
	s.seen[relPath] = true
	s.added = append(s.added, relPath)
	return s.save()
}

// Recorded reports whether the file already has a pristine backup.
func (s *Session) Recorded(relPath string) bool {
	return s.seen[relPath]
}

// Manifest returns the session's persisted record.
func (s *Session) Manifest() models.PatchRecord {
	files := make([]string, len(s.recorded))
	copy(files, s.recorded)
	added := make([]string, len(s.added))
	copy(added, s.added)
	return models.PatchRecord{
		SessionID:     s.id,
		RepoPath:      s.repoPath,
		ModifiedFiles: files,
		CreatedFiles:  added,
		BackupDir:     s.dir,
		CreatedAt:     s.created.Format(time.RFC3339Nano),
	}
}

// Commit accepts the session's edits and discards the backups.
func (s *Session) Commit() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeFileOperation, "failed to discard backup directory")
	}
	return nil
}

// Rollback copies every backup over its working file, then discards the
// backup directory. If any single copy fails the whole rollback reports
// failure and the backup directory is retained so a retry stays possible.
func (s *Session) Rollback() error {
	var failed []string
	for _, relPath := range s.recorded {
		src := filepath.Join(s.dir, relPath)
		dst := filepath.Join(s.repoPath, relPath)
		if err := copyFile(src, dst); err != nil {
			failed = append(failed, relPath)
		}
	}
	for _, relPath := range s.added {
		err := os.Remove(filepath.Join(s.repoPath, relPath))
		if err != nil && !os.IsNotExist(err) {
			failed = append(failed, relPath)
		}
	}

	if len(failed) > 0 {
		return apperrors.New(apperrors.ErrCodeRestoreIncomplete,
			fmt.Sprintf("restore failed for %d of %d files; backups retained", len(failed), len(s.recorded)+len(s.added))).
			WithContext("failed_files", failed).
			WithContext("backup_dir", s.dir).
			WithSuggestions(
				"Fix filesystem permissions and re-run restore",
				"Backups remain intact under "+s.dir,
			)
	}

	return s.Commit()
}

func (s *Session) save() error {
	record := s.Manifest()
	path := filepath.Join(s.dir, recordFileName)
	if err := common.WriteJSONFile(path, record); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBackupFailed, "failed to persist patch record")
	}
	return nil
}

// Sessions returns every persisted session for a repository, newest first.
func Sessions(repoPath string) ([]*Session, error) {
	root := filepath.Join(repoPath, BackupDirName)
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeFileOperation, "failed to read backup directory")
	}

	var sessions []*Session
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		s, err := load(repoPath, entry.Name())
		if err != nil {
			// A torn session directory is skipped, not fatal
			continue
		}
		sessions = append(sessions, s)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].created.After(sessions[j].created)
	})
	return sessions, nil
}

func load(repoPath, sessionID string) (*Session, error) {
	dir := filepath.Join(repoPath, BackupDirName, sessionID)

	var record models.PatchRecord
	found, err := common.ReadJSONFile(filepath.Join(dir, recordFileName), &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("session %s has no record", sessionID)
	}

	created, err := time.Parse(time.RFC3339Nano, record.CreatedAt)
	if err != nil {
		created = time.Time{}
	}

	s := &Session{
		id:       record.SessionID,
		repoPath: record.RepoPath,
		dir:      dir,
		created:  created,
		recorded: record.ModifiedFiles,
		added:    record.CreatedFiles,
		seen:     map[string]bool{},
	}
	for _, f := range record.ModifiedFiles {
		s.seen[f] = true
	}
	for _, f := range record.CreatedFiles {
		s.seen[f] = true
	}
	return s, nil
}

// copyFile copies src over dst byte-for-byte, preserving the source mode.
// The copy goes through a temp file and rename so a failed copy never
// leaves a half-written target.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
