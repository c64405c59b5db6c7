package gradingconfig

import (
	"fmt"
	"strings"
)

// Section identifies one of the fixed grading criteria.
type Section int

const (
	SectionRelevance Section = iota
	SectionGrammar
	SectionStructure
	SectionDepth

	sectionCount
)

var sectionNames = [sectionCount]string{
	SectionRelevance: "relevance",
	SectionGrammar:   "grammar",
	SectionStructure: "structure",
	SectionDepth:     "depth",
}

// Sections returns every section in display order.
func Sections() []Section {
	return []Section{SectionRelevance, SectionGrammar, SectionStructure, SectionDepth}
}

// ParseSection resolves a section from its lower-case name.
func ParseSection(name string) (Section, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range sectionNames {
		if candidate == normalized {
			return Section(i), nil
		}
	}
	return 0, fmt.Errorf("unknown section %q: %w", name, ErrInvalidArgument)
}

// Valid reports whether s is one of the fixed sections.
func (s Section) Valid() bool {
	return s >= 0 && s < sectionCount
}

func (s Section) String() string {
	if !s.Valid() {
		return fmt.Sprintf("section(%d)", int(s))
	}
	return sectionNames[s]
}

// MarshalText encodes the section by name.
func (s Section) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("section %d: %w", int(s), ErrInvalidArgument)
	}
	return []byte(sectionNames[s]), nil
}

// UnmarshalText decodes a section name.
func (s *Section) UnmarshalText(text []byte) error {
	parsed, err := ParseSection(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
