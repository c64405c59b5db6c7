package gradingconfig

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func file(name string) FileRef {
	return FileRef{Name: name, Handle: "mem://" + name}
}

func names(files []FileRef) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}

func TestNewStoreDefaults(t *testing.T) {
	store := NewStore()

	for _, section := range Sections() {
		require.Equal(t, 0.5, store.Threshold(section))
		require.Equal(t, 0.25, store.Weightage(section))
	}
	require.Empty(t, store.Papers())
	require.Empty(t, store.RubricFiles())
	require.Equal(t, "", store.RubricText())
	require.Equal(t, "", store.PapersText())

	state := store.Snapshot()
	require.Equal(t, uint64(0), state.Version)
	require.Equal(t, RubricModeText, state.RubricMode)
	require.Equal(t, 1.0, state.WeightageTotal)
	require.NotNil(t, state.Papers)
	require.NotNil(t, state.RubricFiles)
}

func TestAddPapersPreservesCallOrder(t *testing.T) {
	store := NewStore()
	batches := [][]FileRef{
		{file("a"), file("b")},
		{},
		{file("c")},
		{file("d"), file("e"), file("f")},
	}

	total := 0
	for _, batch := range batches {
		store.AddPapers(batch...)
		total += len(batch)
	}

	require.Len(t, store.Papers(), total)
	require.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, names(store.Papers()))
}

func TestAddPapersEmptyIsNoop(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.AddPapers())
	require.Equal(t, uint64(0), store.Snapshot().Version)
}

func TestAddPapersKeepsDuplicates(t *testing.T) {
	store := NewStore()
	store.AddPapers(file("a"))
	store.AddPapers(file("a"))
	require.Equal(t, []string{"a", "a"}, names(store.Papers()))
}

func TestRemovePaperOutOfRangeIsReportedAndHarmless(t *testing.T) {
	store := NewStore()
	store.AddPapers(file("a"), file("b"))

	require.NoError(t, store.RemovePaper(1))
	require.Len(t, store.Papers(), 1)

	err := store.RemovePaper(1)
	require.ErrorIs(t, err, ErrOutOfRangeIndex)
	require.Len(t, store.Papers(), 1)

	require.ErrorIs(t, store.RemovePaper(-1), ErrOutOfRangeIndex)
	require.Equal(t, []string{"a"}, names(store.Papers()))
}

func TestRubricFilesAddAndRemove(t *testing.T) {
	store := NewStore()
	store.AddRubricFiles(file("r1"), file("r2"))
	store.AddRubricFiles(file("r3"))

	require.NoError(t, store.RemoveRubricFile(0))
	require.Equal(t, []string{"r2", "r3"}, names(store.RubricFiles()))
	require.ErrorIs(t, store.RemoveRubricFile(2), ErrOutOfRangeIndex)
	require.Equal(t, []string{"r2", "r3"}, names(store.RubricFiles()))
}

func TestRubricTextCoexistsWithFiles(t *testing.T) {
	store := NewStore()
	store.SetRubricText("Score thesis clarity")
	require.Equal(t, RubricModeText, store.Snapshot().RubricMode)

	store.AddRubricFiles(file("rubric.pdf"))
	state := store.Snapshot()
	require.Equal(t, RubricModeFiles, state.RubricMode)
	require.True(t, state.HasRubricFiles)
	require.Equal(t, "Score thesis clarity", state.RubricText)

	require.NoError(t, store.RemoveRubricFile(0))
	require.Equal(t, RubricModeText, store.Snapshot().RubricMode)
	require.Equal(t, "Score thesis clarity", store.RubricText())

	store.SetRubricText("")
	require.Equal(t, "", store.RubricText())
}

func TestSetThresholdEveryGridValueWithoutCrossTalk(t *testing.T) {
	for _, section := range Sections() {
		for step := 0; step <= 10; step++ {
			store := NewStore()
			value := float64(step) / 10

			require.NoError(t, store.SetThreshold(section, value))
			require.Equal(t, value, store.Threshold(section))

			for _, other := range Sections() {
				if other == section {
					continue
				}
				require.Equal(t, DefaultThreshold, store.Threshold(other))
			}
			for _, other := range Sections() {
				require.Equal(t, DefaultWeightage, store.Weightage(other))
			}
		}
	}
}

func TestSetWeightageIsIndependentOfThresholds(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SetWeightage(SectionStructure, 0.7))
	require.Equal(t, 0.7, store.Weightage(SectionStructure))
	require.Equal(t, DefaultThreshold, store.Threshold(SectionStructure))
}

func TestSetCriterionRejectsInvalidValues(t *testing.T) {
	store := NewStore()

	require.ErrorIs(t, store.SetThreshold(SectionDepth, 1.2), ErrInvalidArgument)
	require.ErrorIs(t, store.SetWeightage(SectionDepth, -0.5), ErrInvalidArgument)
	require.ErrorIs(t, store.SetThreshold(Section(11), 0.5), ErrInvalidArgument)

	require.Equal(t, DefaultThreshold, store.Threshold(SectionDepth))
	require.Equal(t, DefaultWeightage, store.Weightage(SectionDepth))
	require.Equal(t, uint64(0), store.Snapshot().Version)
}

func TestSetCriterionSnapsToGrid(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SetThreshold(SectionGrammar, 0.64))
	require.Equal(t, 0.6, store.Threshold(SectionGrammar))
}

func TestResetThresholdsAndWeightages(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SetWeightage(SectionStructure, 0.7))
	require.NoError(t, store.SetWeightage(SectionDepth, 0.3))
	require.NoError(t, store.SetThreshold(SectionRelevance, 0.9))
	store.AddPapers(file("a"))

	store.ResetThresholdsAndWeightages()

	require.Equal(t, map[string]float64{"relevance": 0.25, "grammar": 0.25, "structure": 0.25, "depth": 0.25}, store.Snapshot().Weightages.Map())
	require.Equal(t, map[string]float64{"relevance": 0.5, "grammar": 0.5, "structure": 0.5, "depth": 0.5}, store.Snapshot().Thresholds.Map())
	require.Len(t, store.Papers(), 1)
}

func TestResetRubricLeavesPapers(t *testing.T) {
	store := NewStore()
	store.AddPapers(file("a"), file("b"))
	store.SetPapersText("inline essay")
	store.AddRubricFiles(file("rubric"))
	store.SetRubricText("rubric text")

	store.ResetRubric()

	require.Empty(t, store.RubricFiles())
	require.Equal(t, "", store.RubricText())
	require.Equal(t, []string{"a", "b"}, names(store.Papers()))
	require.Equal(t, "inline essay", store.PapersText())
}

func TestResetPapersKeepsRubricText(t *testing.T) {
	store := NewStore()
	store.AddPapers(file("a"))
	store.SetPapersText("inline essay")
	store.SetRubricText("rubric text")
	store.AddRubricFiles(file("rubric"))

	store.ResetPapers()

	require.Empty(t, store.Papers())
	require.Equal(t, "", store.PapersText())
	require.Equal(t, "rubric text", store.RubricText())
	require.Len(t, store.RubricFiles(), 1)
}

func TestResetRestoresEverything(t *testing.T) {
	store := NewStore()
	store.AddPapers(file("a"))
	store.AddRubricFiles(file("r"))
	store.SetRubricText("text")
	store.SetPapersText("paper")
	require.NoError(t, store.SetThreshold(SectionDepth, 1))
	require.NoError(t, store.SetWeightage(SectionDepth, 0))

	store.Reset()

	fresh := NewStore().Snapshot()
	state := store.Snapshot()
	state.Version = 0
	require.Equal(t, fresh, state)
}

func TestBuildRequestScenario(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(WithClock(func() time.Time { return created }))

	store.AddPapers(file("a"), file("b"))
	store.AddPapers(file("c"))
	require.Equal(t, []string{"a", "b", "c"}, names(store.Papers()))

	require.NoError(t, store.RemovePaper(1))
	require.Equal(t, []string{"a", "c"}, names(store.Papers()))

	request, err := store.BuildRequest()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, names(request.Papers))
	require.Equal(t, created, request.CreatedAt)
	require.Equal(t, DefaultThresholds(), request.Thresholds)
	require.Equal(t, DefaultWeightages(), request.Weightages)
}

func TestBuildRequestIsDetachedSnapshot(t *testing.T) {
	store := NewStore()
	store.AddPapers(file("a"))
	store.SetRubricText("rubric")

	request, err := store.BuildRequest()
	require.NoError(t, err)

	store.AddPapers(file("b"))
	require.NoError(t, store.SetThreshold(SectionGrammar, 0.9))
	store.SetRubricText("changed")

	require.Equal(t, []string{"a"}, names(request.Papers))
	require.Equal(t, 0.5, request.Thresholds.Get(SectionGrammar))
	require.Equal(t, "rubric", request.RubricText)

	request.Papers[0].Name = "mutated"
	require.Equal(t, "a", store.Papers()[0].Name)
}

func TestBuildRequestRequiresContent(t *testing.T) {
	store := NewStore()
	_, err := store.BuildRequest()
	require.ErrorIs(t, err, ErrIncompleteConfiguration)

	store.SetRubricText("rubric only")
	_, err = store.BuildRequest()
	require.NoError(t, err)

	store.ResetRubric()
	store.SetPapersText("paper only")
	_, err = store.BuildRequest()
	require.NoError(t, err)
}

func TestAddFilesRejectsIncompleteFileRefs(t *testing.T) {
	store := NewStore()

	err := store.AddPapers(file("ok"), FileRef{Name: "missing-handle.pdf"})
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Empty(t, store.Papers())

	err = store.AddRubricFiles(FileRef{Handle: "urn:uuid:1"})
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Empty(t, store.RubricFiles())
	require.Equal(t, uint64(0), store.Snapshot().Version)

	_, err = store.BuildRequest()
	require.ErrorIs(t, err, ErrIncompleteConfiguration)
}

func TestFingerprintIgnoresCreationTime(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewStore(WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	store.AddPapers(file("a"))

	first, err := store.BuildRequest()
	require.NoError(t, err)
	second, err := store.BuildRequest()
	require.NoError(t, err)
	require.NotEqual(t, first.CreatedAt, second.CreatedAt)
	require.Equal(t, first.Fingerprint(), second.Fingerprint())

	require.NoError(t, store.SetWeightage(SectionDepth, 0.9))
	third, err := store.BuildRequest()
	require.NoError(t, err)
	require.NotEqual(t, first.Fingerprint(), third.Fingerprint())
}

func TestSubscribeReceivesSettledState(t *testing.T) {
	store := NewStore()
	var received []State
	unsubscribe := store.Subscribe(func(state State) {
		received = append(received, state)
	})

	store.AddPapers(file("a"))
	require.ErrorIs(t, store.RemovePaper(5), ErrOutOfRangeIndex)
	require.NoError(t, store.SetThreshold(SectionDepth, 0.8))

	require.Len(t, received, 2)
	require.Equal(t, uint64(1), received[0].Version)
	require.True(t, received[0].HasPaperFiles)
	require.Equal(t, 0.8, received[1].Thresholds.Get(SectionDepth))

	unsubscribe()
	unsubscribe()
	store.ResetPapers()
	require.Len(t, received, 2)
}

func TestObserverMayReadStore(t *testing.T) {
	store := NewStore()
	var papers int
	store.Subscribe(func(State) {
		papers = len(store.Papers())
	})
	store.AddPapers(file("a"), file("b"))
	require.Equal(t, 2, papers)
}

func TestConcurrentMutationsAreAtomic(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.AddPapers(file("x"), file("y"))
			_ = store.SetWeightage(SectionGrammar, 0.4)
			_ = store.Snapshot()
		}()
	}
	wg.Wait()

	require.Len(t, store.Papers(), 100)
	require.Equal(t, 0.4, store.Weightage(SectionGrammar))
	require.Equal(t, uint64(100), store.Snapshot().Version)
}
