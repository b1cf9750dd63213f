package deploy

import (
	"time"

	"github.com/google/uuid"
)

// Event announces a finished deployment.
type Event struct {
	ID          uuid.UUID `json:"id"`
	Task        string    `json:"task"`
	Round       int       `json:"round"`
	RepoURL     string    `json:"repo_url"`
	CommitSHA   string    `json:"commit_sha"`
	PagesURL    string    `json:"pages_url"`
	CompletedAt time.Time `json:"completed_at"`
}
