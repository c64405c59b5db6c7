package dto

import (
	"time"

	"github.com/noah-isme/gema-grading-api/internal/gradingconfig"
	"github.com/noah-isme/gema-grading-api/pkg/ai"
)

// SessionResponse describes a mounted configuration session.
type SessionResponse struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	State     gradingconfig.State `json:"state"`
}

// TextUpdateRequest replaces a free-text field verbatim. Empty text is allowed.
type TextUpdateRequest struct {
	Text string `json:"text" validate:"max=200000"`
}

// CriterionUpdateRequest sets a threshold or weightage for one section.
type CriterionUpdateRequest struct {
	Value *float64 `json:"value" validate:"required,gte=0,lte=1"`
}

// AnalysisResponse is returned after a configuration has been analyzed.
type AnalysisResponse struct {
	ID          string           `json:"id"`
	SessionID   string           `json:"session_id"`
	Fingerprint string           `json:"fingerprint"`
	Cached      bool             `json:"cached"`
	Result      ai.GradingResult `json:"result"`
	Request     RequestSummary   `json:"request"`
	DurationMs  int64            `json:"duration_ms"`
	CreatedAt   time.Time        `json:"created_at"`
}

// RequestSummary condenses the grading request stored alongside a result.
type RequestSummary struct {
	PaperCount      int                    `json:"paper_count"`
	RubricFileCount int                    `json:"rubric_file_count"`
	HasPapersText   bool                   `json:"has_papers_text"`
	HasRubricText   bool                   `json:"has_rubric_text"`
	Thresholds      gradingconfig.Criteria `json:"thresholds"`
	Weightages      gradingconfig.Criteria `json:"weightages"`
}

// NewRequestSummary builds a summary from a grading request.
func NewRequestSummary(request gradingconfig.Request) RequestSummary {
	return RequestSummary{
		PaperCount:      len(request.Papers),
		RubricFileCount: len(request.RubricFiles),
		HasPapersText:   request.PapersText != "",
		HasRubricText:   request.RubricText != "",
		Thresholds:      request.Thresholds,
		Weightages:      request.Weightages,
	}
}

// NewSessionResponse maps a session snapshot to its API representation.
func NewSessionResponse(id string, createdAt time.Time, state gradingconfig.State) SessionResponse {
	return SessionResponse{ID: id, CreatedAt: createdAt, State: state}
}

// StateEvent is pushed to websocket subscribers whenever a session changes.
type StateEvent struct {
	Type      string              `json:"type"`
	SessionID string              `json:"session_id"`
	State     gradingconfig.State `json:"state"`
}
