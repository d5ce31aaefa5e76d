// Package history keeps a ledger of build runs in SQLite. The build service
// consults it for the configuration signature of the last successful build.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/walker"
)

// Status is the final state of a build.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// BuildRecord is the ledger entry for one build run.
type BuildRecord struct {
	ID           string                `json:"id"`
	StartedAt    time.Time             `json:"started_at"`
	Duration     int64                 `json:"duration_ms"`
	Status       Status                `json:"status"`
	Sources      []string              `json:"sources"`
	Full         bool                  `json:"full,omitempty"`
	Signature    string                `json:"signature"`
	ManifestHash string                `json:"manifest_hash,omitempty"`
	Stats        walker.Stats          `json:"stats"`
	Skipped      []walker.SkippedEntry `json:"skipped,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// ToJSON serializes the record to JSON.
func (r *BuildRecord) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal build record: %w", err)
	}
	return data, nil
}

// FromJSON deserializes a record from JSON.
func FromJSON(data []byte) (*BuildRecord, error) {
	var r BuildRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal build record: %w", err)
	}
	return &r, nil
}
