package history

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"repoharness/internal/common"
	apperrors "repoharness/pkg/errors"
	"repoharness/pkg/logger"
	"repoharness/pkg/models"
)

// HistoryFile is the persisted array of repository histories.
const HistoryFile = "repo_histories.json"

// DefaultLimit caps the recorded commit history per repository.
const DefaultLimit = 100

// Extractor reconstructs commit lineage for already-cloned repositories.
type Extractor struct {
	limit int
}

// New creates an Extractor; limit <= 0 selects DefaultLimit.
func New(limit int) *Extractor {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Extractor{limit: limit}
}

// Extract walks the researched commit's own first-parent history, newest
// first. The prior commit is the researched commit's first parent; a root
// commit yields a nil prior commit, which is not an error.
func (e *Extractor) Extract(repoPath, baseURL, researchedSHA string) (*models.RepositoryHistory, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeGitHistory, "failed to open repository").
			WithContext("path", repoPath)
	}

	commit, err := repo.CommitObject(plumbing.NewHash(researchedSHA))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeCommitNotFound, "researched commit not found").
			WithContext("sha", researchedSHA)
	}

	result := &models.RepositoryHistory{
		BaseURL:          baseURL,
		Folder:           filepath.Base(repoPath),
		ResearchedCommit: toCommitRef(commit),
	}

	// First-parent walk from the researched commit itself.
	current := commit
	total := 0
	for current != nil {
		total++
		if len(result.CommitHistory) < e.limit {
			result.CommitHistory = append(result.CommitHistory, toCommitRef(current))
		}

		if current.NumParents() == 0 {
			break
		}
		parent, err := current.Parent(0)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeGitHistory, "failed to walk parent commit").
				WithContext("sha", current.Hash.String())
		}
		// The prior commit comes straight from the walk so it stays
		// populated even when the history cap is 1.
		if total == 1 {
			prior := toCommitRef(parent)
			result.PriorCommit = &prior
		}
		current = parent
	}
	result.TotalCommitsInHistory = total

	return result, nil
}

// ExtractAll processes every cloned repository from a clone log. Entries
// whose clone failed are skipped with a warning rather than treated as a
// hard error. The collected histories are persisted to outputDir.
func (e *Extractor) ExtractAll(ctx context.Context, cloneLog []models.RepositoryCloneResult, outputDir string) ([]models.RepositoryHistory, error) {
	var histories []models.RepositoryHistory

	for _, entry := range cloneLog {
		select {
		case <-ctx.Done():
			return histories, ctx.Err()
		default:
		}

		repoLog := logger.WithRepo(filepath.Base(entry.LocalPath), "history")
		if !entry.Cloned() {
			repoLog.Warnf("skipping %s: clone status is %s", entry.SourceURL, entry.Status)
			continue
		}

		h, err := e.Extract(entry.LocalPath, entry.SourceURL, entry.CommitSHA)
		if err != nil {
			repoLog.Errorf("history extraction failed: %v", err)
			continue
		}

		repoLog.Infof("extracted %d commits (total lineage %d)",
			len(h.CommitHistory), h.TotalCommitsInHistory)
		histories = append(histories, *h)
	}

	path := filepath.Join(outputDir, HistoryFile)
	if err := common.WriteJSONFile(path, histories); err != nil {
		return histories, err
	}
	return histories, nil
}

// toCommitRef converts a go-git commit into the persisted form. Dates keep
// their original offset but are always explicit, never naive local time.
func toCommitRef(c *object.Commit) models.CommitRef {
	return models.CommitRef{
		SHA:         c.Hash.String(),
		AuthorName:  c.Author.Name,
		AuthorEmail: c.Author.Email,
		Date:        c.Author.When.Format(time.RFC3339),
		Message:     strings.TrimSpace(c.Message),
	}
}
