// Package weights derives the logistic parameters behind the fraud CPT.
//
// Weights are not learned from labeled data: each one is a closed-form
// transform of a hand-specified marginal probability, expressed as a
// log-odds offset net of the base fraud rate. Observing feature F in state
// s contributes weight[F][s] to the logit of fraud.
package weights

import (
	"github.com/pkg/errors"

	"github.com/grodin-io/freq/pkg/model"
)

// RawProbabilities maps feature -> state -> the marginal probability of
// fraud given that state alone.
type RawProbabilities map[string]map[string]float64

// Set is a derived (bias, weights) pair. ByFeature is keyed feature then
// state, so a malformed composite key cannot exist by construction.
type Set struct {
	Bias      float64                       `json:"bias" yaml:"bias"`
	ByFeature map[string]map[string]float64 `json:"weights" yaml:"weights"`
}

// Derive computes the bias from the base rate and one log-odds offset per
// (feature, state) pair. Every probability must be strictly inside (0,1);
// a boundary value makes the log-odds infinite and is rejected outright
// rather than logged and carried forward.
func Derive(raw RawProbabilities, baseRate float64) (*Set, error) {
	bias, err := model.Logit(baseRate)
	if err != nil {
		return nil, errors.Wrap(err, "base rate")
	}

	s := &Set{
		Bias:      bias,
		ByFeature: make(map[string]map[string]float64, len(raw)),
	}
	for feature, states := range raw {
		s.ByFeature[feature] = make(map[string]float64, len(states))
		for state, p := range states {
			lo, err := model.Logit(p)
			if err != nil {
				return nil, errors.Wrapf(err, "%s=%s", feature, state)
			}
			s.ByFeature[feature][state] = lo - bias
		}
	}
	return s, nil
}

// Weight implements model.WeightLookup. A missing entry means the weight
// set and the feature schema have drifted apart, which is fatal.
func (s *Set) Weight(feature, state string) (float64, error) {
	states, ok := s.ByFeature[feature]
	if !ok {
		return 0, errors.Wrapf(model.ErrWeightMissing, "%s=%s", feature, state)
	}
	w, ok := states[state]
	if !ok {
		return 0, errors.Wrapf(model.ErrWeightMissing, "%s=%s", feature, state)
	}
	return w, nil
}

// Empty reports whether the set carries no weights at all, which the cache
// policy treats the same as an absent set.
func (s *Set) Empty() bool {
	if s == nil {
		return true
	}
	for _, states := range s.ByFeature {
		if len(states) > 0 {
			return false
		}
	}
	return true
}

// Complete verifies the set covers every (feature, state) pair the schema
// declares.
func (s *Set) Complete(schema model.Schema) error {
	for _, f := range schema.Features {
		for _, state := range f.States {
			if _, err := s.Weight(f.Name, state); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadOrBuild applies the build-or-reuse policy: rebuild (and persist) when
// forced, or when no usable cached set exists; otherwise trust the cached
// set as-is. Persist writes are last-writer-wins, so racing duplicate
// builds converge to equal results.
func LoadOrBuild(force bool, cached *Set, build func() (*Set, error), persist func(*Set) error) (*Set, error) {
	if !force && !cached.Empty() {
		return cached, nil
	}

	s, err := build()
	if err != nil {
		return nil, err
	}
	if persist != nil {
		if err := persist(s); err != nil {
			return nil, errors.Wrap(err, "persisting weights")
		}
	}
	return s, nil
}
