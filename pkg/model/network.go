package model

import (
	"github.com/pkg/errors"
)

// Network is an assembled, validated Bayesian network. It is immutable
// after Assemble returns, so concurrent Query calls need no locking.
type Network struct {
	order  []string
	vars   map[string]Variable
	cpts   map[string]*CPT
	target string
}

// Assemble wires unconditional prior CPTs and the target CPT into a single
// network and validates it. Construction-time failures are final: there is
// no partial or degraded model.
func Assemble(priors []*CPT, target *CPT) (*Network, error) {
	n := &Network{
		vars:   make(map[string]Variable),
		cpts:   make(map[string]*CPT),
		target: target.Variable.Name,
	}

	for _, c := range append(append([]*CPT{}, priors...), target) {
		name := c.Variable.Name
		if _, ok := n.cpts[name]; ok {
			return nil, errors.Wrapf(ErrModelInconsistent, "variable %s has more than one cpt", name)
		}
		n.order = append(n.order, name)
		n.vars[name] = c.Variable
		n.cpts[name] = c
	}

	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Validate re-checks every structural invariant: one CPT per variable, CPT
// parents matching declared variables, normalized distributions with full
// cartesian coverage, and an acyclic edge set. Violations are fatal; a
// corrupted model invalidates every downstream score.
func (n *Network) Validate() error {
	if len(n.order) != len(n.cpts) {
		return errors.Wrap(ErrModelInconsistent, "variable and cpt counts differ")
	}
	if _, ok := n.cpts[n.target]; !ok {
		return errors.Wrapf(ErrModelInconsistent, "target %s has no cpt", n.target)
	}

	for _, name := range n.order {
		c := n.cpts[name]
		v := n.vars[name]
		if c.Variable.Name != v.Name {
			return errors.Wrapf(ErrModelInconsistent, "cpt registered under %s describes %s", name, c.Variable.Name)
		}
		if err := v.validate(); err != nil {
			return errors.Wrap(ErrModelInconsistent, err.Error())
		}
		for _, p := range c.Parents {
			declared, ok := n.vars[p.Name]
			if !ok {
				return errors.Wrapf(ErrModelInconsistent, "cpt %s references unknown parent %s", name, p.Name)
			}
			if !sameStates(declared, p) {
				return errors.Wrapf(ErrModelInconsistent, "cpt %s disagrees with %s on its states", name, p.Name)
			}
		}
		if err := c.checkDistributions(); err != nil {
			return err
		}
	}

	return n.checkAcyclic()
}

// checkAcyclic runs Kahn's algorithm over parent edges.
func (n *Network) checkAcyclic() error {
	indeg := make(map[string]int, len(n.order))
	children := make(map[string][]string, len(n.order))
	for _, name := range n.order {
		indeg[name] += 0
		for _, p := range n.cpts[name].Parents {
			indeg[name]++
			children[p.Name] = append(children[p.Name], name)
		}
	}

	queue := make([]string, 0, len(indeg))
	for _, name := range n.order {
		if indeg[name] == 0 {
			queue = append(queue, name)
		}
	}
	seen := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		seen++
		for _, ch := range children[cur] {
			indeg[ch]--
			if indeg[ch] == 0 {
				queue = append(queue, ch)
			}
		}
	}
	if seen != len(n.order) {
		return errors.Wrap(ErrModelInconsistent, "edge set contains a cycle")
	}
	return nil
}

func sameStates(a, b Variable) bool {
	if len(a.States) != len(b.States) {
		return false
	}
	for i := range a.States {
		if a.States[i] != b.States[i] {
			return false
		}
	}
	return true
}

// Target returns the variable every query marginalizes to.
func (n *Network) Target() Variable {
	return n.vars[n.target]
}

// Variables returns the network's variables in declaration order.
func (n *Network) Variables() []Variable {
	out := make([]Variable, 0, len(n.order))
	for _, name := range n.order {
		out = append(out, n.vars[name])
	}
	return out
}

// CPT returns the table owned by the named variable.
func (n *Network) CPT(name string) (*CPT, bool) {
	c, ok := n.cpts[name]
	return c, ok
}

// Edges returns the (parent, child) pairs in declaration order.
func (n *Network) Edges() [][2]string {
	var out [][2]string
	for _, name := range n.order {
		for _, p := range n.cpts[name].Parents {
			out = append(out, [2]string{p.Name, name})
		}
	}
	return out
}

// Query computes the marginal distribution of the target variable given
// partial evidence, by exact variable elimination: restrict every CPT by
// the evidence, then repeatedly multiply out and sum away each hidden
// variable, and normalize what remains.
//
// Evidence errors are local to the call; the network itself is never
// touched.
func (n *Network) Query(evidence map[string]string) (map[string]float64, error) {
	observed, err := n.resolveEvidence(evidence)
	if err != nil {
		return nil, err
	}

	factors := make([]*factor, 0, len(n.order))
	for _, name := range n.order {
		f := cptFactor(n.cpts[name])
		for obs, state := range observed {
			f = f.restrict(obs, state)
		}
		factors = append(factors, f)
	}

	// Eliminate hidden variables one at a time: gather the factors whose
	// scope mentions the variable, multiply them, and sum the variable out.
	for _, name := range n.order {
		if name == n.target {
			continue
		}
		if _, ok := observed[name]; ok {
			continue
		}

		var merged *factor
		rest := factors[:0]
		for _, f := range factors {
			if f.varIndex(name) < 0 {
				rest = append(rest, f)
				continue
			}
			if merged == nil {
				merged = f
			} else {
				merged = product(merged, f)
			}
		}
		factors = rest
		if merged != nil {
			factors = append(factors, merged.sumOut(name))
		}
	}

	result := factors[0]
	for _, f := range factors[1:] {
		result = product(result, f)
	}
	if !result.normalize() {
		return nil, errors.Wrap(ErrModelInconsistent, "evidence has zero probability mass under the model")
	}

	target := n.vars[n.target]
	if len(result.vars) != 1 || result.vars[0].Name != n.target {
		return nil, errors.Wrap(ErrModelInconsistent, "elimination did not reduce to the target marginal")
	}

	out := make(map[string]float64, target.Cardinality())
	for i, s := range target.States {
		out[s] = result.vals[i]
	}
	return out, nil
}

func (n *Network) resolveEvidence(evidence map[string]string) (map[string]int, error) {
	observed := make(map[string]int, len(evidence))
	for name, state := range evidence {
		v, ok := n.vars[name]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidEvidence, "unknown variable %s", name)
		}
		if name == n.target {
			return nil, errors.Wrapf(ErrInvalidEvidence, "cannot observe the target %s", name)
		}
		idx := v.StateIndex(state)
		if idx < 0 {
			return nil, errors.Wrapf(ErrInvalidEvidence, "%s has no state %s", name, state)
		}
		observed[name] = idx
	}
	return observed, nil
}
