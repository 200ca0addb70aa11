package weights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grodin-io/freq/pkg/model"
)

func TestDerive_ConcreteScenario(t *testing.T) {
	raw := RawProbabilities{
		"Porting": {"Recent": 0.25},
	}

	s, err := Derive(raw, 0.02)
	require.NoError(t, err)

	assert.InDelta(t, -3.8918, s.Bias, 1e-4)
	w, err := s.Weight("Porting", "Recent")
	require.NoError(t, err)
	assert.InDelta(t, 2.7932, w, 1e-4)
}

func TestDerive_RoundTrip(t *testing.T) {
	// bias + weight must reproduce the raw marginal through the sigmoid.
	raw := RawProbabilities{
		"DarkWeb": {"None": 0.01, "High": 0.30},
	}

	s, err := Derive(raw, 0.02)
	require.NoError(t, err)

	for state, p := range raw["DarkWeb"] {
		w, err := s.Weight("DarkWeb", state)
		require.NoError(t, err)
		assert.InDelta(t, p, model.Sigmoid(s.Bias+w), 1e-12, "state %s", state)
	}
}

func TestDerive_RejectsBoundaryProbabilities(t *testing.T) {
	_, err := Derive(RawProbabilities{"A": {"x": 1.0}}, 0.02)
	assert.ErrorIs(t, err, model.ErrProbabilityRange)

	_, err = Derive(RawProbabilities{"A": {"x": 0.5}}, 0)
	assert.ErrorIs(t, err, model.ErrProbabilityRange)

	_, err = Derive(RawProbabilities{"A": {"x": -0.2}}, 0.02)
	assert.ErrorIs(t, err, model.ErrProbabilityRange)
}

func TestWeight_Missing(t *testing.T) {
	s, err := Derive(RawProbabilities{"A": {"x": 0.1}}, 0.02)
	require.NoError(t, err)

	_, err = s.Weight("A", "y")
	assert.ErrorIs(t, err, model.ErrWeightMissing)
	_, err = s.Weight("B", "x")
	assert.ErrorIs(t, err, model.ErrWeightMissing)
}

func TestComplete(t *testing.T) {
	schema := model.Schema{
		Features: []model.Variable{{Name: "A", States: []string{"x", "y"}}},
		Target:   model.Variable{Name: "T", States: []string{"Pos", "Neg"}},
	}

	full, err := Derive(RawProbabilities{"A": {"x": 0.1, "y": 0.2}}, 0.02)
	require.NoError(t, err)
	assert.NoError(t, full.Complete(schema))

	partial, err := Derive(RawProbabilities{"A": {"x": 0.1}}, 0.02)
	require.NoError(t, err)
	assert.ErrorIs(t, partial.Complete(schema), model.ErrWeightMissing)
}

func TestEmpty(t *testing.T) {
	var nilSet *Set
	assert.True(t, nilSet.Empty())
	assert.True(t, (&Set{}).Empty())
	assert.True(t, (&Set{ByFeature: map[string]map[string]float64{"A": {}}}).Empty())
	assert.False(t, (&Set{ByFeature: map[string]map[string]float64{"A": {"x": 1}}}).Empty())
}

func TestLoadOrBuild(t *testing.T) {
	cached := &Set{Bias: -1, ByFeature: map[string]map[string]float64{"A": {"x": 0.5}}}
	fresh := &Set{Bias: -2, ByFeature: map[string]map[string]float64{"A": {"x": 0.7}}}

	build := func() (*Set, error) { return fresh, nil }

	t.Run("reuses cached", func(t *testing.T) {
		persisted := false
		got, err := LoadOrBuild(false, cached, build, func(*Set) error {
			persisted = true
			return nil
		})
		require.NoError(t, err)
		assert.Same(t, cached, got)
		assert.False(t, persisted)
	})

	t.Run("force rebuilds", func(t *testing.T) {
		persisted := false
		got, err := LoadOrBuild(true, cached, build, func(*Set) error {
			persisted = true
			return nil
		})
		require.NoError(t, err)
		assert.Same(t, fresh, got)
		assert.True(t, persisted)
	})

	t.Run("rebuilds when cache absent", func(t *testing.T) {
		got, err := LoadOrBuild(false, nil, build, nil)
		require.NoError(t, err)
		assert.Same(t, fresh, got)
	})

	t.Run("rebuilds when cache empty", func(t *testing.T) {
		got, err := LoadOrBuild(false, &Set{}, build, nil)
		require.NoError(t, err)
		assert.Same(t, fresh, got)
	})

	t.Run("persist failure surfaces", func(t *testing.T) {
		_, err := LoadOrBuild(true, nil, build, func(*Set) error {
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
	})
}
