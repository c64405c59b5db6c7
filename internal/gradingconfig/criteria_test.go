package gradingconfig

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeValue(t *testing.T) {
	for step := 0; step <= 10; step++ {
		value := float64(step) / 10
		got, err := NormalizeValue(value)
		require.NoError(t, err)
		require.Equal(t, value, got)
	}

	got, err := NormalizeValue(0.34)
	require.NoError(t, err)
	require.Equal(t, 0.3, got)

	got, err = NormalizeValue(0.66)
	require.NoError(t, err)
	require.Equal(t, 0.7, got)

	for _, bad := range []float64{-0.1, 1.01, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := NormalizeValue(bad)
		require.ErrorIs(t, err, ErrInvalidArgument)
	}
}

func TestCriteriaWithDoesNotMutateReceiver(t *testing.T) {
	base := DefaultThresholds()
	next, err := base.With(SectionGrammar, 0.9)
	require.NoError(t, err)

	require.Equal(t, 0.5, base.Get(SectionGrammar))
	require.Equal(t, 0.9, next.Get(SectionGrammar))

	_, err = base.With(Section(7), 0.1)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCriteriaTotal(t *testing.T) {
	require.Equal(t, 1.0, DefaultWeightages().Total())
	require.Equal(t, 2.0, DefaultThresholds().Total())

	c := UniformCriteria(0.1)
	c, err := c.With(SectionDepth, 0.7)
	require.NoError(t, err)
	require.Equal(t, 1.0, c.Total())
}

func TestCriteriaJSON(t *testing.T) {
	payload, err := json.Marshal(DefaultWeightages())
	require.NoError(t, err)
	require.JSONEq(t, `{"relevance":0.25,"grammar":0.25,"structure":0.25,"depth":0.25}`, string(payload))

	var decoded Criteria
	require.NoError(t, json.Unmarshal([]byte(`{"relevance":0.1,"grammar":0.2,"structure":0.3,"depth":0.4}`), &decoded))
	require.Equal(t, 0.3, decoded.Get(SectionStructure))

	err = json.Unmarshal([]byte(`{"relevance":0.1,"grammar":0.2}`), &decoded)
	require.ErrorIs(t, err, ErrInvalidArgument)

	err = json.Unmarshal([]byte(`{"relevance":0.1,"grammar":0.2,"structure":0.3,"style":0.4}`), &decoded)
	require.ErrorIs(t, err, ErrInvalidArgument)

	decoded = DefaultThresholds()
	err = json.Unmarshal([]byte(`{"relevance":0.1,"RELEVANCE":0.2,"grammar":0.3,"structure":0.4}`), &decoded)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Equal(t, 0.5, decoded.Get(SectionDepth))

	err = json.Unmarshal([]byte(`{"relevance":1.5,"grammar":0.2,"structure":0.3,"depth":0.4}`), &decoded)
	require.ErrorIs(t, err, ErrInvalidArgument)
}
