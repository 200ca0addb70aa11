package model

// factor is an intermediate table in sum-product elimination: a non-negative
// function over the cartesian product of its variables' states. Values are
// row-major with the last variable varying fastest, matching the CPT row
// contract.
type factor struct {
	vars []Variable
	vals []float64
}

func cptFactor(c *CPT) *factor {
	vars := make([]Variable, 0, len(c.Parents)+1)
	vars = append(vars, c.Parents...)
	vars = append(vars, c.Variable)

	vals := make([]float64, 0, len(c.Rows)*c.Variable.Cardinality())
	for _, row := range c.Rows {
		vals = append(vals, row...)
	}
	return &factor{vars: vars, vals: vals}
}

func (f *factor) varIndex(name string) int {
	for i, v := range f.vars {
		if v.Name == name {
			return i
		}
	}
	return -1
}

// strides[i] is the distance in vals between consecutive states of vars[i].
func (f *factor) strides() []int {
	s := make([]int, len(f.vars))
	acc := 1
	for i := len(f.vars) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= f.vars[i].Cardinality()
	}
	return s
}

// restrict fixes one variable to a single state, dropping it from the
// factor's scope. No-op when the variable is out of scope.
//
// Skimming source entries in index order and keeping those whose coordinate
// for the fixed variable matches preserves row-major order over the
// remaining variables.
func (f *factor) restrict(name string, state int) *factor {
	at := f.varIndex(name)
	if at < 0 {
		return f
	}

	stride := f.strides()[at]
	card := f.vars[at].Cardinality()

	outVars := make([]Variable, 0, len(f.vars)-1)
	outVars = append(outVars, f.vars[:at]...)
	outVars = append(outVars, f.vars[at+1:]...)

	out := &factor{vars: outVars, vals: make([]float64, 0, len(f.vals)/card)}
	for i, v := range f.vals {
		if (i/stride)%card == state {
			out.vals = append(out.vals, v)
		}
	}
	return out
}

// product multiplies two factors over the union of their scopes.
func product(a, b *factor) *factor {
	union := make([]Variable, 0, len(a.vars)+len(b.vars))
	union = append(union, a.vars...)
	for _, v := range b.vars {
		if a.varIndex(v.Name) < 0 {
			union = append(union, v)
		}
	}

	size := 1
	for _, v := range union {
		size *= v.Cardinality()
	}
	out := &factor{vars: union, vals: make([]float64, size)}

	aMap := scopeMap(out, a)
	bMap := scopeMap(out, b)
	assign := make([]int, len(union))
	for i := 0; i < size; i++ {
		out.vals[i] = a.at(assign, aMap) * b.at(assign, bMap)

		// advance odometer, last variable fastest
		for j := len(assign) - 1; j >= 0; j-- {
			assign[j]++
			if assign[j] < union[j].Cardinality() {
				break
			}
			assign[j] = 0
		}
	}
	return out
}

// scopeMap[i] is the position in out.vars of src.vars[i].
func scopeMap(out, src *factor) []int {
	m := make([]int, len(src.vars))
	for i, v := range src.vars {
		m[i] = out.varIndex(v.Name)
	}
	return m
}

// at evaluates the factor under a full assignment over a wider scope, with
// m mapping this factor's variables into that assignment.
func (f *factor) at(assign []int, m []int) float64 {
	idx := 0
	for i, v := range f.vars {
		idx = idx*v.Cardinality() + assign[m[i]]
	}
	return f.vals[idx]
}

// sumOut marginalizes one variable away.
func (f *factor) sumOut(name string) *factor {
	at := f.varIndex(name)
	if at < 0 {
		return f
	}

	var acc *factor
	for s := 0; s < f.vars[at].Cardinality(); s++ {
		slice := f.restrict(name, s)
		if acc == nil {
			acc = slice
			continue
		}
		for i := range acc.vals {
			acc.vals[i] += slice.vals[i]
		}
	}
	return acc
}

// normalize scales the factor so its entries sum to 1. Returns false when
// the mass is zero and no distribution exists.
func (f *factor) normalize() bool {
	sum := 0.0
	for _, v := range f.vals {
		sum += v
	}
	if sum <= 0 {
		return false
	}
	for i := range f.vals {
		f.vals[i] /= sum
	}
	return true
}
