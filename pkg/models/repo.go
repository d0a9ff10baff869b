package models

// ManifestEntry is one row of the commits manifest the batch run iterates over.
type ManifestEntry struct {
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
}

// CommitRef describes a single commit extracted from a repository's log.
type CommitRef struct {
	SHA         string `json:"sha"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	Date        string `json:"date"` // RFC3339 with explicit offset
	Message     string `json:"message"`
}

// CloneStatus is the outcome of a single clone attempt.
type CloneStatus string

const (
	CloneSuccess CloneStatus = "success"
	CloneExists  CloneStatus = "exists"
	CloneFailed  CloneStatus = "failed"
)

// RepositoryCloneResult records one clone attempt. Entries are append-only;
// re-runs either append a new entry or short-circuit with CloneExists.
type RepositoryCloneResult struct {
	SourceURL string      `json:"source_url"`
	CommitSHA string      `json:"commit_sha"`
	LocalPath string      `json:"local_path"`
	Status    CloneStatus `json:"status"`
	Error     string      `json:"error,omitempty"`
}

// Cloned reports whether the repository is usable on disk (freshly cloned
// or already present from an earlier run).
func (r RepositoryCloneResult) Cloned() bool {
	return r.Status == CloneSuccess || r.Status == CloneExists
}

// RepositoryHistory is the commit lineage of one cloned repository, scoped
// to the researched commit's own first-parent history.
type RepositoryHistory struct {
	BaseURL               string      `json:"base_url"`
	Folder                string      `json:"folder"`
	ResearchedCommit      CommitRef   `json:"researched_commit"`
	PriorCommit           *CommitRef  `json:"prior_commit"` // nil iff the researched commit has no parent
	CommitHistory         []CommitRef `json:"commit_history"`
	TotalCommitsInHistory int         `json:"total_commits_in_history"`
}
