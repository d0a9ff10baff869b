package provider

import (
	"fmt"
	"os"
	"path/filepath"

	"repoharness/internal/config"
	"repoharness/internal/patch"
	apperrors "repoharness/pkg/errors"
	"repoharness/pkg/logger"
	"repoharness/pkg/models"
)

// Harness switches a repository's LLM and database configuration to the
// standardized provider, keeping byte-for-byte backups so the switch can be
// fully undone.
type Harness struct {
	target    Target
	detectors []Detector
}

// New builds a Harness for the given target configuration. sharedEnv may be
// nil when no shared environment file exists.
func New(providerCfg models.ProviderConfig, dbCfg models.DatabaseConfig, sharedEnv *config.EnvSnapshot) *Harness {
	return &Harness{
		target: Target{
			Provider:  providerCfg,
			Database:  dbCfg,
			SharedEnv: sharedEnv,
		},
		detectors: defaultDetectors(),
	}
}

// Setup rewrites the repository's configuration surface to the target
// provider. Every modified file is backed up before its first edit; the
// returned record describes the session that Restore undoes. Re-running
// Setup on an already patched repository converges to the same end state.
func (h *Harness) Setup(repoPath string) (models.PatchRecord, error) {
	log := logger.WithRepo(repoPath, "patch")

	tx, err := patch.Begin(repoPath)
	if err != nil {
		return models.PatchRecord{}, err
	}

	claimed := map[string]bool{}
	for _, detector := range h.detectors {
		files, err := detector.Apply(repoPath, tx, claimed, h.target)
		for _, f := range files {
			claimed[f] = true
		}
		if err != nil {
			log.Errorf("detector %s failed: %v", detector.Name(), err)
			if rbErr := tx.Rollback(); rbErr != nil {
				return tx.Manifest(), rbErr
			}
			os.Remove(filepath.Join(repoPath, patch.BackupDirName))
			return models.PatchRecord{}, apperrors.Wrap(err, apperrors.ErrCodePatchConflict,
				fmt.Sprintf("provider setup aborted by detector %s", detector.Name()))
		}
		if len(files) > 0 {
			log.Infof("detector %s patched %d file(s)", detector.Name(), len(files))
		}
	}

	record := tx.Manifest()
	log.WithField("session", record.SessionID).
		Infof("provider switch complete, %d modified, %d created",
			len(record.ModifiedFiles), len(record.CreatedFiles))
	return record, nil
}

// Restore undoes every patch session recorded for the repository, newest
// first, so stacked setups unwind to the pristine clone. A repository with
// no sessions is a no-op success. A failed rollback stops the unwind and
// leaves the remaining backups intact for a retry.
func (h *Harness) Restore(repoPath string) error {
	log := logger.WithRepo(repoPath, "restore")

	sessions, err := patch.Sessions(repoPath)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		log.Info("no patch sessions recorded, nothing to restore")
		return nil
	}

	for _, session := range sessions {
		if err := session.Rollback(); err != nil {
			return err
		}
	}
	// Remove the backup root once it is empty so the tree matches the
	// pristine clone exactly.
	os.Remove(filepath.Join(repoPath, patch.BackupDirName))

	log.Infof("restored %d session(s)", len(sessions))
	return nil
}
