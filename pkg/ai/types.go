package ai

import "context"

// Document references a paper or rubric file by name and storage handle.
type Document struct {
	Name     string `json:"name"`
	Handle   string `json:"handle"`
	MimeType string `json:"mime_type,omitempty"`
}

// GradingInput carries a grading configuration to the grading backend.
type GradingInput struct {
	Papers      []Document
	PapersText  string
	RubricText  string
	RubricFiles []Document
	Thresholds  map[string]float64
	Weightages  map[string]float64
}

// CriterionResult is the outcome of one criterion for one paper.
type CriterionResult struct {
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Weightage float64 `json:"weightage"`
	Passed    bool    `json:"passed"`
}

// PaperResult aggregates criterion results for a paper.
type PaperResult struct {
	Name     string                     `json:"name"`
	Criteria map[string]CriterionResult `json:"criteria"`
	Overall  float64                    `json:"overall"`
	Passed   bool                       `json:"passed"`
	Feedback string                     `json:"feedback"`
}

// GradingResult is returned by a Grader.
type GradingResult struct {
	Model  string        `json:"model"`
	Papers []PaperResult `json:"papers"`
}

// Grader grades papers against a rubric and per-criterion settings.
type Grader interface {
	Grade(ctx context.Context, input GradingInput) (GradingResult, error)
}
