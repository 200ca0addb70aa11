// Package priors loads the external data sources feeding model assembly:
// the per-variable prior distributions and the raw marginal fraud
// probabilities the weights are derived from.
//
// Both ship as embedded defaults so the CLI works out of the box; an
// explicit file path overrides the embedded copy.
package priors

import (
	"embed"
	"encoding/json"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/grodin-io/freq/pkg/model"
	"github.com/grodin-io/freq/pkg/weights"
)

//go:embed data/*.json
var dataFS embed.FS

const (
	defaultPriorsFile   = "data/priors.json"
	defaultRawProbsFile = "data/raw_probs.json"
)

// Spec is one variable's prior: states paired positionally with their
// probabilities. The pairing is validated, never assumed.
type Spec struct {
	States []string  `json:"states"`
	Values []float64 `json:"values"`
}

// Doc maps variable name to its prior spec.
type Doc map[string]Spec

// Load reads a priors document from path, or the embedded default when
// path is empty. A named file that does not exist is model.ErrNotFound.
func Load(path string) (Doc, error) {
	b, err := read(path, defaultPriorsFile)
	if err != nil {
		return nil, err
	}
	var d Doc
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, errors.Wrap(err, "parsing priors")
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d Doc) validate() error {
	for name, spec := range d {
		if len(spec.States) == 0 {
			return errors.Errorf("prior %s declares no states", name)
		}
		if len(spec.States) != len(spec.Values) {
			return errors.Errorf("prior %s pairs %d states with %d values",
				name, len(spec.States), len(spec.Values))
		}
		sum := 0.0
		for _, v := range spec.Values {
			if v < 0 || v > 1 {
				return errors.Errorf("prior %s holds out-of-range probability %v", name, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > model.DistTolerance {
			return errors.Errorf("prior %s sums to %v", name, sum)
		}
	}
	return nil
}

// BuildPriorCPTs converts the document into unconditional CPTs, one per
// schema feature in declared order. Every feature must be present and its
// states must match the schema exactly.
func BuildPriorCPTs(schema model.Schema, d Doc) ([]*model.CPT, error) {
	out := make([]*model.CPT, 0, len(schema.Features))
	for _, f := range schema.Features {
		spec, ok := d[f.Name]
		if !ok {
			return nil, errors.Wrapf(model.ErrNotFound, "prior for %s", f.Name)
		}
		if len(spec.States) != len(f.States) {
			return nil, errors.Errorf("prior %s declares %d states, schema %d",
				f.Name, len(spec.States), len(f.States))
		}
		for i, s := range spec.States {
			if s != f.States[i] {
				return nil, errors.Errorf("prior %s state %d is %s, schema says %s",
					f.Name, i, s, f.States[i])
			}
		}
		c, err := model.NewPriorCPT(f, spec.Values)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// LoadRawProbs reads the raw marginal-probability document from path, or
// the embedded default when path is empty.
func LoadRawProbs(path string) (weights.RawProbabilities, error) {
	b, err := read(path, defaultRawProbsFile)
	if err != nil {
		return nil, err
	}
	var raw weights.RawProbabilities
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrap(err, "parsing raw probabilities")
	}
	if len(raw) == 0 {
		return nil, errors.New("raw probability document is empty")
	}
	return raw, nil
}

func read(path, embedded string) ([]byte, error) {
	if path == "" {
		return dataFS.ReadFile(embedded)
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(model.ErrNotFound, "%s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return b, nil
}
