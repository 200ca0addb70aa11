package model

import (
	"math"

	"github.com/pkg/errors"
)

// DistTolerance is the slack allowed when checking that a distribution
// sums to 1.
const DistTolerance = 1e-6

// WeightLookup resolves the log-odds contribution of observing a feature in
// a given state. A missing entry is a fatal schema/weight drift, not
// something to default-fill.
type WeightLookup interface {
	Weight(feature, state string) (float64, error)
}

// CPT is a conditional probability table. Rows holds one distribution over
// Variable.States per combination of parent states, covering the full
// cartesian product.
//
// Row order is an external contract shared with the persisted form: parents
// enumerate in declared order, each parent's states in declared order, and
// the LAST parent varies fastest (odometer order). RowIndex implements it.
type CPT struct {
	Variable Variable    `json:"variable"`
	Parents  []Variable  `json:"parents,omitempty"`
	Rows     [][]float64 `json:"rows"`
}

// NewPriorCPT builds an unconditional (root) CPT from a distribution
// aligned positionally with the variable's states.
func NewPriorCPT(v Variable, dist []float64) (*CPT, error) {
	if err := v.validate(); err != nil {
		return nil, err
	}
	if len(dist) != v.Cardinality() {
		return nil, errors.Errorf("prior for %s has %d values for %d states",
			v.Name, len(dist), v.Cardinality())
	}
	row := make([]float64, len(dist))
	copy(row, dist)
	c := &CPT{Variable: v, Rows: [][]float64{row}}
	if err := c.checkDistributions(); err != nil {
		return nil, err
	}
	return c, nil
}

// BuildTargetCPT constructs the target variable's CPT from logistic
// weights: for each parent state tuple,
//
//	p = sigmoid(bias + sum of per-state weights)
//
// and the row is [p, 1-p] over the target's two states.
func BuildTargetCPT(target Variable, parents []Variable, bias float64, w WeightLookup) (*CPT, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}
	if target.Cardinality() != 2 {
		return nil, errors.Errorf("target %s must be binary, has %d states",
			target.Name, target.Cardinality())
	}
	if len(parents) == 0 {
		return nil, errors.New("target CPT requires at least one parent")
	}

	n := 1
	for _, p := range parents {
		if err := p.validate(); err != nil {
			return nil, err
		}
		n *= p.Cardinality()
	}

	rows := make([][]float64, 0, n)
	idx := make([]int, len(parents))
	for r := 0; r < n; r++ {
		logit := bias
		for i, p := range parents {
			wv, err := w.Weight(p.Name, p.States[idx[i]])
			if err != nil {
				return nil, err
			}
			logit += wv
		}
		pos := Sigmoid(logit)
		rows = append(rows, []float64{pos, 1 - pos})

		// advance odometer, last parent fastest
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < parents[i].Cardinality() {
				break
			}
			idx[i] = 0
		}
	}

	return &CPT{Variable: target, Parents: parents, Rows: rows}, nil
}

// RowIndex maps parent state indices (aligned with Parents) to the row
// holding that combination's distribution.
func (c *CPT) RowIndex(states []int) int {
	r := 0
	for i, p := range c.Parents {
		r = r*p.Cardinality() + states[i]
	}
	return r
}

// RowCount is the expected number of rows: the product of parent
// cardinalities, 1 for a root.
func (c *CPT) RowCount() int {
	n := 1
	for _, p := range c.Parents {
		n *= p.Cardinality()
	}
	return n
}

func (c *CPT) checkDistributions() error {
	want := c.RowCount()
	if len(c.Rows) != want {
		return errors.Wrapf(ErrModelInconsistent,
			"cpt %s covers %d parent combinations, want %d", c.Variable.Name, len(c.Rows), want)
	}
	for i, row := range c.Rows {
		if len(row) != c.Variable.Cardinality() {
			return errors.Wrapf(ErrModelInconsistent,
				"cpt %s row %d has %d entries for %d states", c.Variable.Name, i, len(row), c.Variable.Cardinality())
		}
		sum := 0.0
		for _, p := range row {
			if p < 0 || p > 1 || math.IsNaN(p) {
				return errors.Wrapf(ErrModelInconsistent,
					"cpt %s row %d holds out-of-range probability %v", c.Variable.Name, i, p)
			}
			sum += p
		}
		if math.Abs(sum-1) > DistTolerance {
			return errors.Wrapf(ErrModelInconsistent,
				"cpt %s row %d sums to %v", c.Variable.Name, i, sum)
		}
	}
	return nil
}
