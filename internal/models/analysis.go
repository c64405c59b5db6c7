package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// AnalysisStatusGraded marks a record produced by a fresh grading call.
	AnalysisStatusGraded = "graded"
	// AnalysisStatusCached marks a record served from the result cache.
	AnalysisStatusCached = "cached"
)

// AnalysisRecord is the audit entry written each time a configuration is analyzed.
// It stores a summary of the request, never the uploaded documents.
type AnalysisRecord struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	SessionID       string         `gorm:"size:36;index;not null" json:"session_id"`
	Fingerprint     string         `gorm:"size:64;index;not null" json:"fingerprint"`
	Status          string         `gorm:"size:16;not null" json:"status"`
	PaperCount      int            `json:"paper_count"`
	RubricFileCount int            `json:"rubric_file_count"`
	HasPapersText   bool           `json:"has_papers_text"`
	HasRubricText   bool           `json:"has_rubric_text"`
	Thresholds      datatypes.JSON `gorm:"type:json" json:"thresholds"`
	Weightages      datatypes.JSON `gorm:"type:json" json:"weightages"`
	Result          datatypes.JSON `gorm:"type:json" json:"result"`
	Model           string         `gorm:"size:64" json:"model"`
	DurationMs      int64          `json:"duration_ms"`
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`
}
