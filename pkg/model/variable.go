package model

import "github.com/pkg/errors"

const (
	// TargetName is the variable every query marginalizes to.
	TargetName = "Fraud"

	StateFraud = "Fraud"
	StateLegit = "Legit"
)

// Variable is a discrete variable with a fixed, ordered state list.
// State order is semantically significant: it fixes the index used in CPT
// rows and inference arithmetic, so reordering changes meaning.
type Variable struct {
	Name   string   `json:"name" yaml:"name"`
	States []string `json:"states" yaml:"states"`
}

func (v Variable) Cardinality() int {
	return len(v.States)
}

// StateIndex returns the position of the given state, or -1 if the variable
// does not declare it.
func (v Variable) StateIndex(state string) int {
	for i, s := range v.States {
		if s == state {
			return i
		}
	}
	return -1
}

func (v Variable) validate() error {
	if v.Name == "" {
		return errors.New("variable name required")
	}
	if len(v.States) < 2 {
		return errors.Errorf("variable %s needs at least 2 states", v.Name)
	}
	seen := make(map[string]bool, len(v.States))
	for _, s := range v.States {
		if s == "" {
			return errors.Errorf("variable %s has an empty state name", v.Name)
		}
		if seen[s] {
			return errors.Errorf("variable %s declares state %s twice", v.Name, s)
		}
		seen[s] = true
	}
	return nil
}

// Schema is the static definition of the evidence variables and the target.
// Feature order is part of the CPT enumeration contract.
type Schema struct {
	Features []Variable `json:"features" yaml:"features"`
	Target   Variable   `json:"target" yaml:"target"`
}

// DefaultSchema returns the production fraud signal schema. Within each
// feature, states are ordered most benign first.
func DefaultSchema() Schema {
	return Schema{
		Features: []Variable{
			{Name: "Porting", States: []string{"Old", "Mid", "Recent"}},
			{Name: "DarkWeb", States: []string{"None", "Low", "Medium", "High"}},
			{Name: "StateMatch", States: []string{"Yes", "No"}},
			{Name: "ProxyFlag", States: []string{"No", "Yes"}},
			{Name: "MAID_NightDistance", States: []string{"Near", "Mid", "Far", "Distant"}},
		},
		Target: Variable{Name: TargetName, States: []string{StateFraud, StateLegit}},
	}
}

// Feature returns the named feature variable.
func (s Schema) Feature(name string) (Variable, bool) {
	for _, f := range s.Features {
		if f.Name == name {
			return f, true
		}
	}
	return Variable{}, false
}

func (s Schema) Validate() error {
	names := make(map[string]bool, len(s.Features)+1)
	for _, f := range s.Features {
		if err := f.validate(); err != nil {
			return err
		}
		if names[f.Name] {
			return errors.Errorf("duplicate variable: %s", f.Name)
		}
		names[f.Name] = true
	}
	if err := s.Target.validate(); err != nil {
		return err
	}
	if names[s.Target.Name] {
		return errors.Errorf("target %s collides with a feature", s.Target.Name)
	}
	return nil
}
