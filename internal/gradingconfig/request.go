package gradingconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Request is the snapshot handed to the grading service. It shares no memory
// with the store that produced it.
type Request struct {
	Papers      []FileRef `json:"papers" validate:"dive"`
	PapersText  string    `json:"papers_text"`
	RubricText  string    `json:"rubric_text"`
	RubricFiles []FileRef `json:"rubric_files" validate:"dive"`
	Thresholds  Criteria  `json:"thresholds"`
	Weightages  Criteria  `json:"weightages"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasPapers reports whether any paper source is present.
func (r Request) HasPapers() bool {
	return len(r.Papers) > 0 || r.PapersText != ""
}

// HasRubric reports whether any rubric source is present.
func (r Request) HasRubric() bool {
	return len(r.RubricFiles) > 0 || r.RubricText != ""
}

// Fingerprint hashes the configuration content, ignoring CreatedAt, so that
// identical configurations share a key.
func (r Request) Fingerprint() string {
	content := r
	content.CreatedAt = time.Time{}
	payload, err := json.Marshal(content)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
