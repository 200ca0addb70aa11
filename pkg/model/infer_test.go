package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoNodeNetwork(t *testing.T) *Network {
	t.Helper()
	a := Variable{Name: "A", States: []string{"a0", "a1"}}
	target := Variable{Name: "T", States: []string{"Pos", "Neg"}}

	pa, err := NewPriorCPT(a, []float64{0.6, 0.4})
	require.NoError(t, err)
	ct := &CPT{
		Variable: target,
		Parents:  []Variable{a},
		Rows:     [][]float64{{0.2, 0.8}, {0.7, 0.3}},
	}

	n, err := Assemble([]*CPT{pa}, ct)
	require.NoError(t, err)
	return n
}

func TestQuery_PriorMarginal(t *testing.T) {
	n := twoNodeNetwork(t)

	got, err := n.Query(nil)
	require.NoError(t, err)

	// P(Pos) = 0.6*0.2 + 0.4*0.7
	assert.InDelta(t, 0.4, got["Pos"], 1e-12)
	assert.InDelta(t, 0.6, got["Neg"], 1e-12)
}

func TestQuery_FullEvidence(t *testing.T) {
	n := twoNodeNetwork(t)

	got, err := n.Query(map[string]string{"A": "a1"})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, got["Pos"], 1e-12)
}

// Elimination must work beyond the star shape: a chain A -> B -> T.
func TestQuery_Chain(t *testing.T) {
	a := Variable{Name: "A", States: []string{"a0", "a1"}}
	b := Variable{Name: "B", States: []string{"b0", "b1"}}
	target := Variable{Name: "T", States: []string{"Pos", "Neg"}}

	pa, err := NewPriorCPT(a, []float64{0.5, 0.5})
	require.NoError(t, err)
	cb := &CPT{Variable: b, Parents: []Variable{a}, Rows: [][]float64{{0.9, 0.1}, {0.3, 0.7}}}
	ct := &CPT{Variable: target, Parents: []Variable{b}, Rows: [][]float64{{0.1, 0.9}, {0.8, 0.2}}}

	n, err := Assemble([]*CPT{pa, cb}, ct)
	require.NoError(t, err)

	got, err := n.Query(nil)
	require.NoError(t, err)
	// P(b0) = 0.5*0.9 + 0.5*0.3 = 0.6; P(Pos) = 0.6*0.1 + 0.4*0.8
	assert.InDelta(t, 0.38, got["Pos"], 1e-12)

	got, err = n.Query(map[string]string{"A": "a0"})
	require.NoError(t, err)
	// P(b0|a0) = 0.9; P(Pos) = 0.9*0.1 + 0.1*0.8
	assert.InDelta(t, 0.17, got["Pos"], 1e-12)

	got, err = n.Query(map[string]string{"B": "b1"})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got["Pos"], 1e-12)
}

func TestQuery_EveryEvidenceCombination(t *testing.T) {
	n := starNetwork(t)
	s := DefaultSchema()

	// All full assignments, plus the empty one.
	combos := []map[string]string{{}}
	for _, f := range s.Features {
		var next []map[string]string
		for _, c := range combos {
			for _, state := range f.States {
				e := make(map[string]string, len(c)+1)
				for k, v := range c {
					e[k] = v
				}
				e[f.Name] = state
				next = append(next, e)
			}
		}
		combos = append(combos, next...)
	}

	for _, e := range combos {
		got, err := n.Query(e)
		require.NoError(t, err, "evidence %v", e)
		require.Len(t, got, 2)
		assert.InDelta(t, 1.0, got[StateFraud]+got[StateLegit], 1e-6, "evidence %v", e)
	}
}

func TestQuery_Monotonicity(t *testing.T) {
	n := starNetwork(t)
	s := DefaultSchema()

	for _, moving := range s.Features {
		// Hold everything else at its most benign state.
		base := make(map[string]string, len(s.Features))
		for _, f := range s.Features {
			base[f.Name] = f.States[0]
		}

		prev := -1.0
		for _, state := range moving.States {
			base[moving.Name] = state
			got, err := n.Query(base)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got[StateFraud], prev,
				"%s=%s decreased the fraud probability", moving.Name, state)
			prev = got[StateFraud]
		}
	}
}

func TestQuery_SuspiciousOutscoresBenign(t *testing.T) {
	n := starNetwork(t)
	s := DefaultSchema()

	benign := make(map[string]string, len(s.Features))
	suspicious := make(map[string]string, len(s.Features))
	for _, f := range s.Features {
		benign[f.Name] = f.States[0]
		suspicious[f.Name] = f.States[f.Cardinality()-1]
	}

	b, err := n.Query(benign)
	require.NoError(t, err)
	x, err := n.Query(suspicious)
	require.NoError(t, err)

	assert.Greater(t, x[StateFraud], b[StateFraud])
}

func TestQuery_InvalidEvidence(t *testing.T) {
	n := starNetwork(t)

	_, err := n.Query(map[string]string{"NoSuchVariable": "x"})
	assert.ErrorIs(t, err, ErrInvalidEvidence)

	_, err = n.Query(map[string]string{"Porting": "NoSuchState"})
	assert.ErrorIs(t, err, ErrInvalidEvidence)

	_, err = n.Query(map[string]string{TargetName: StateFraud})
	assert.ErrorIs(t, err, ErrInvalidEvidence)

	// A failed query must not poison the shared network.
	got, err := n.Query(map[string]string{"Porting": "Recent"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got[StateFraud]+got[StateLegit], 1e-9)
}

func TestQuery_ConcurrentReaders(t *testing.T) {
	n := starNetwork(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := n.Query(map[string]string{"ProxyFlag": "Yes"})
				assert.NoError(t, err)
				assert.InDelta(t, 1.0, got[StateFraud]+got[StateLegit], 1e-9)
			}
		}()
	}
	wg.Wait()
}
