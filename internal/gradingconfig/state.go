package gradingconfig

// RubricMode tells the presentation layer which rubric editor to show.
type RubricMode string

const (
	RubricModeText  RubricMode = "text"
	RubricModeFiles RubricMode = "files"
)

// State is a read-only view of a store, including values derived from it.
type State struct {
	Version        uint64     `json:"version"`
	Papers         []FileRef  `json:"papers"`
	PapersText     string     `json:"papers_text"`
	RubricText     string     `json:"rubric_text"`
	RubricFiles    []FileRef  `json:"rubric_files"`
	Thresholds     Criteria   `json:"thresholds"`
	Weightages     Criteria   `json:"weightages"`
	HasPaperFiles  bool       `json:"has_paper_files"`
	HasRubricFiles bool       `json:"has_rubric_files"`
	RubricMode     RubricMode `json:"rubric_mode"`
	WeightageTotal float64    `json:"weightage_total"`
}
