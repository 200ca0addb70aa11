package model

import (
	"math"

	"github.com/pkg/errors"
)

// Logit converts a probability into log-odds. The input must be strictly
// inside (0,1): at the boundary the log-odds is infinite and would poison
// every downstream sum, so this is a hard failure rather than a warning.
func Logit(p float64) (float64, error) {
	if !(p > 0 && p < 1) {
		return 0, errors.Wrapf(ErrProbabilityRange, "logit(%v)", p)
	}
	return math.Log(p / (1 - p)), nil
}

// Sigmoid is the inverse of Logit. Evaluated branch-wise so large magnitude
// inputs saturate toward 0 or 1 instead of overflowing exp.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
