package gradingconfig

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Observer receives the settled state after every mutation that changed the store.
type Observer func(State)

// Option customises a Store.
type Option func(*Store)

// WithValidator replaces the validator used by BuildRequest.
func WithValidator(v *validator.Validate) Option {
	return func(s *Store) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithClock overrides the time source stamped on built requests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store holds the configuration of one grading session. Every method is
// atomic with respect to the others; observers run after the lock is released.
type Store struct {
	mu          sync.RWMutex
	papers      []FileRef
	papersText  string
	rubricFiles []FileRef
	rubricText  string
	thresholds  Criteria
	weightages  Criteria
	version     uint64

	observers    map[uint64]Observer
	nextObserver uint64

	validator *validator.Validate
	now       func() time.Time
}

// NewStore creates a store holding the default configuration.
func NewStore(opts ...Option) *Store {
	s := &Store{
		papers:      []FileRef{},
		rubricFiles: []FileRef{},
		thresholds:  DefaultThresholds(),
		weightages:  DefaultWeightages(),
		observers:   map[uint64]Observer{},
		validator:   validator.New(validator.WithRequiredStructEnabled()),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddPapers appends files to the papers list in the order given. A file
// without a name or handle rejects the whole batch with ErrInvalidArgument.
func (s *Store) AddPapers(files ...FileRef) error {
	if err := s.validateFiles("paper", files); err != nil {
		return err
	}
	return s.mutate(func() (bool, error) {
		if len(files) == 0 {
			return false, nil
		}
		s.papers = append(cloneFiles(s.papers), files...)
		return true, nil
	})
}

// RemovePaper drops the paper at index.
func (s *Store) RemovePaper(index int) error {
	return s.mutate(func() (bool, error) {
		next, err := removeAt(s.papers, index)
		if err != nil {
			return false, fmt.Errorf("remove paper %d of %d: %w", index, len(s.papers), err)
		}
		s.papers = next
		return true, nil
	})
}

// AddRubricFiles appends files to the rubric file list in the order given,
// validated like AddPapers.
func (s *Store) AddRubricFiles(files ...FileRef) error {
	if err := s.validateFiles("rubric file", files); err != nil {
		return err
	}
	return s.mutate(func() (bool, error) {
		if len(files) == 0 {
			return false, nil
		}
		s.rubricFiles = append(cloneFiles(s.rubricFiles), files...)
		return true, nil
	})
}

// RemoveRubricFile drops the rubric file at index.
func (s *Store) RemoveRubricFile(index int) error {
	return s.mutate(func() (bool, error) {
		next, err := removeAt(s.rubricFiles, index)
		if err != nil {
			return false, fmt.Errorf("remove rubric file %d of %d: %w", index, len(s.rubricFiles), err)
		}
		s.rubricFiles = next
		return true, nil
	})
}

// SetRubricText stores text verbatim. Rubric files are kept.
func (s *Store) SetRubricText(text string) {
	_ = s.mutate(func() (bool, error) {
		s.rubricText = text
		return true, nil
	})
}

// SetPapersText stores the inline paper text verbatim. Paper files are kept.
func (s *Store) SetPapersText(text string) {
	_ = s.mutate(func() (bool, error) {
		s.papersText = text
		return true, nil
	})
}

// SetThreshold sets the acceptance threshold for section.
func (s *Store) SetThreshold(section Section, value float64) error {
	return s.mutate(func() (bool, error) {
		next, err := s.thresholds.With(section, value)
		if err != nil {
			return false, fmt.Errorf("set threshold: %w", err)
		}
		s.thresholds = next
		return true, nil
	})
}

// SetWeightage sets the score weightage for section.
func (s *Store) SetWeightage(section Section, value float64) error {
	return s.mutate(func() (bool, error) {
		next, err := s.weightages.With(section, value)
		if err != nil {
			return false, fmt.Errorf("set weightage: %w", err)
		}
		s.weightages = next
		return true, nil
	})
}

// ResetPapers clears the papers list and the inline paper text.
func (s *Store) ResetPapers() {
	_ = s.mutate(func() (bool, error) {
		s.papers = []FileRef{}
		s.papersText = ""
		return true, nil
	})
}

// ResetRubric clears the rubric files and rubric text. Papers are untouched.
func (s *Store) ResetRubric() {
	_ = s.mutate(func() (bool, error) {
		s.rubricFiles = []FileRef{}
		s.rubricText = ""
		return true, nil
	})
}

// ResetThresholdsAndWeightages restores both criteria maps to their defaults.
func (s *Store) ResetThresholdsAndWeightages() {
	_ = s.mutate(func() (bool, error) {
		s.thresholds = DefaultThresholds()
		s.weightages = DefaultWeightages()
		return true, nil
	})
}

// Reset returns the whole store to the state it had when created.
func (s *Store) Reset() {
	_ = s.mutate(func() (bool, error) {
		s.papers = []FileRef{}
		s.papersText = ""
		s.rubricFiles = []FileRef{}
		s.rubricText = ""
		s.thresholds = DefaultThresholds()
		s.weightages = DefaultWeightages()
		return true, nil
	})
}

// Papers returns a copy of the papers list.
func (s *Store) Papers() []FileRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneFiles(s.papers)
}

// RubricFiles returns a copy of the rubric file list.
func (s *Store) RubricFiles() []FileRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneFiles(s.rubricFiles)
}

// RubricText returns the rubric free text.
func (s *Store) RubricText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rubricText
}

// PapersText returns the inline paper text.
func (s *Store) PapersText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.papersText
}

// Threshold returns the threshold configured for section.
func (s *Store) Threshold(section Section) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds.Get(section)
}

// Weightage returns the weightage configured for section.
func (s *Store) Weightage(section Section) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weightages.Get(section)
}

// HasPaperFiles reports whether at least one paper file is attached.
func (s *Store) HasPaperFiles() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.papers) > 0
}

// HasRubricFiles reports whether at least one rubric file is attached.
func (s *Store) HasRubricFiles() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rubricFiles) > 0
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// BuildRequest captures the current configuration for submission. It fails
// with ErrIncompleteConfiguration when neither papers nor a rubric are set.
func (s *Store) BuildRequest() (Request, error) {
	s.mu.RLock()
	request := Request{
		Papers:      cloneFiles(s.papers),
		PapersText:  s.papersText,
		RubricText:  s.rubricText,
		RubricFiles: cloneFiles(s.rubricFiles),
		Thresholds:  s.thresholds,
		Weightages:  s.weightages,
		CreatedAt:   s.now().UTC(),
	}
	s.mu.RUnlock()

	if !request.HasPapers() && !request.HasRubric() {
		return Request{}, ErrIncompleteConfiguration
	}
	if err := s.validator.Struct(request); err != nil {
		return Request{}, fmt.Errorf("grading request: %w", err)
	}
	if err := request.Thresholds.Validate(); err != nil {
		return Request{}, fmt.Errorf("thresholds: %w", err)
	}
	if err := request.Weightages.Validate(); err != nil {
		return Request{}, fmt.Errorf("weightages: %w", err)
	}
	return request, nil
}

// Subscribe registers fn for state changes. The returned func removes it.
func (s *Store) Subscribe(fn Observer) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) validateFiles(kind string, files []FileRef) error {
	for i := range files {
		if err := s.validator.Struct(files[i]); err != nil {
			return fmt.Errorf("%s %d: %w: %w", kind, i, ErrInvalidArgument, err)
		}
	}
	return nil
}

func (s *Store) mutate(apply func() (bool, error)) error {
	s.mu.Lock()
	changed, err := apply()
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}
	s.version++
	state := s.stateLocked()
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
	return nil
}

func (s *Store) stateLocked() State {
	mode := RubricModeText
	if len(s.rubricFiles) > 0 {
		mode = RubricModeFiles
	}
	return State{
		Version:        s.version,
		Papers:         cloneFiles(s.papers),
		PapersText:     s.papersText,
		RubricText:     s.rubricText,
		RubricFiles:    cloneFiles(s.rubricFiles),
		Thresholds:     s.thresholds,
		Weightages:     s.weightages,
		HasPaperFiles:  len(s.papers) > 0,
		HasRubricFiles: len(s.rubricFiles) > 0,
		RubricMode:     mode,
		WeightageTotal: s.weightages.Total(),
	}
}
