package types

import "time"

// Run statuses.
const (
	RunOK        = "ok"
	RunUnchanged = "unchanged"
	RunFailed    = "failed"
)

// Run records one reconciliation of an existing document into an output.
type Run struct {
	ID                  string        `json:"id"`
	Target              string        `json:"target"`
	ExistingPath        string        `json:"existing_path"`
	OutputPath          string        `json:"output_path"`
	InputHash           string        `json:"input_hash"`
	OutputHash          string        `json:"output_hash,omitempty"`
	Status              string        `json:"status"`
	ErrorMsg            string        `json:"error_msg,omitempty"`
	PathsAdded          int           `json:"paths_added"`
	PathsRemoved        int           `json:"paths_removed"`
	ExtensionsPreserved int           `json:"extensions_preserved"`
	BytesWritten        int64         `json:"bytes_written"`
	Duration            time.Duration `json:"duration"`
	CreatedAt           time.Time     `json:"created_at"`
}

// User is a record served by the user endpoints.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}
