package ai

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed grading_response.schema.json
var gradingResponseSchema string

var responseSchema = jsonschema.MustCompileString("grading_response.schema.json", gradingResponseSchema)

type rawPaper struct {
	Name     string             `json:"name"`
	Feedback string             `json:"feedback"`
	Scores   map[string]float64 `json:"scores"`
}

type rawResponse struct {
	Papers []rawPaper `json:"papers"`
}

// ParseResponse validates a model reply against the response schema and scores
// every paper against the thresholds and weightages of input.
func ParseResponse(content string, input GradingInput) ([]PaperResult, error) {
	decoder := json.NewDecoder(bytes.NewReader([]byte(content)))
	decoder.UseNumber()
	var document interface{}
	if err := decoder.Decode(&document); err != nil {
		return nil, fmt.Errorf("parse grading json: %w", err)
	}
	if err := responseSchema.Validate(document); err != nil {
		return nil, fmt.Errorf("grading response rejected: %w", err)
	}

	var data rawResponse
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return nil, fmt.Errorf("decode grading response: %w", err)
	}

	results := make([]PaperResult, 0, len(data.Papers))
	for _, paper := range data.Papers {
		results = append(results, ScorePaper(paper.Name, paper.Scores, paper.Feedback, input))
	}
	return results, nil
}

// ScorePaper combines raw criterion scores with the configured thresholds and
// weightages. Scores are clamped to [0,1]. The overall score is the weighted
// mean; a zero weightage total falls back to the plain mean.
func ScorePaper(name string, scores map[string]float64, feedback string, input GradingInput) PaperResult {
	keys := make([]string, 0, len(input.Thresholds))
	for key := range input.Thresholds {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := PaperResult{
		Name:     name,
		Criteria: make(map[string]CriterionResult, len(keys)),
		Passed:   true,
		Feedback: feedback,
	}

	var weighted, weightTotal, plain float64
	for _, key := range keys {
		score := clamp(scores[key])
		threshold := input.Thresholds[key]
		weightage := input.Weightages[key]
		passed := score >= threshold

		result.Criteria[key] = CriterionResult{
			Score:     score,
			Threshold: threshold,
			Weightage: weightage,
			Passed:    passed,
		}
		if !passed {
			result.Passed = false
		}
		weighted += score * weightage
		weightTotal += weightage
		plain += score
	}

	switch {
	case weightTotal > 0:
		result.Overall = round(weighted / weightTotal)
	case len(keys) > 0:
		result.Overall = round(plain / float64(len(keys)))
	}
	return result
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
