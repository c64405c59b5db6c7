package gradingconfig

import (
	"encoding/json"
	"fmt"
	"math"
)

const (
	// DefaultThreshold is the acceptance level every section starts with.
	DefaultThreshold = 0.5
	// DefaultWeightage is the score contribution every section starts with.
	DefaultWeightage = 0.25

	valueSteps = 10
)

// Criteria holds one value per section. The zero value maps every section to 0.
type Criteria struct {
	values [sectionCount]float64
}

// UniformCriteria returns criteria with every section set to value.
func UniformCriteria(value float64) Criteria {
	var c Criteria
	for i := range c.values {
		c.values[i] = value
	}
	return c
}

// DefaultThresholds returns the initial threshold settings.
func DefaultThresholds() Criteria {
	return UniformCriteria(DefaultThreshold)
}

// DefaultWeightages returns the initial weightage settings.
func DefaultWeightages() Criteria {
	return UniformCriteria(DefaultWeightage)
}

// Get returns the value stored for section. Unknown sections read as 0.
func (c Criteria) Get(section Section) float64 {
	if !section.Valid() {
		return 0
	}
	return c.values[section]
}

// With returns a copy of c with section set to value after normalization.
func (c Criteria) With(section Section, value float64) (Criteria, error) {
	if !section.Valid() {
		return c, fmt.Errorf("section %d: %w", int(section), ErrInvalidArgument)
	}
	normalized, err := NormalizeValue(value)
	if err != nil {
		return c, err
	}
	c.values[section] = normalized
	return c, nil
}

// Total sums the values across all sections, rounded to two decimals.
func (c Criteria) Total() float64 {
	var sum float64
	for _, v := range c.values {
		sum += v
	}
	return math.Round(sum*100) / 100
}

// Map returns the criteria keyed by section name.
func (c Criteria) Map() map[string]float64 {
	out := make(map[string]float64, sectionCount)
	for i, v := range c.values {
		out[sectionNames[i]] = v
	}
	return out
}

// Validate checks every value is finite and inside [0,1].
func (c Criteria) Validate() error {
	for i, v := range c.values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			return fmt.Errorf("%s value %v: %w", sectionNames[i], v, ErrInvalidArgument)
		}
	}
	return nil
}

// MarshalJSON encodes the criteria as an object keyed by section name.
func (c Criteria) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

// UnmarshalJSON requires every section to be present exactly once.
func (c *Criteria) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != int(sectionCount) {
		return fmt.Errorf("criteria must contain %d sections, got %d: %w", sectionCount, len(raw), ErrInvalidArgument)
	}
	var decoded Criteria
	var seen [sectionCount]bool
	for name, v := range raw {
		section, err := ParseSection(name)
		if err != nil {
			return err
		}
		if seen[section] {
			return fmt.Errorf("section %s given more than once: %w", section, ErrInvalidArgument)
		}
		seen[section] = true
		decoded.values[section] = v
	}
	for i, ok := range seen {
		if !ok {
			return fmt.Errorf("section %s missing: %w", Section(i), ErrInvalidArgument)
		}
	}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*c = decoded
	return nil
}

// NormalizeValue rejects non-finite or out-of-range values and snaps the rest
// onto the 0.1 grid used by the sliders.
func NormalizeValue(value float64) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("value must be finite: %w", ErrInvalidArgument)
	}
	if value < 0 || value > 1 {
		return 0, fmt.Errorf("value %v outside [0,1]: %w", value, ErrInvalidArgument)
	}
	return math.Round(value*valueSteps) / valueSteps, nil
}
