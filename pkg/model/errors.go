package model

import "github.com/pkg/errors"

var (
	// ErrProbabilityRange indicates a probability at or outside the open
	// interval (0,1), where the log-odds transform is undefined.
	ErrProbabilityRange = errors.New("probability must be strictly between 0 and 1")

	// ErrWeightMissing indicates the weight set and the feature schema have
	// drifted out of sync. Fatal configuration inconsistency.
	ErrWeightMissing = errors.New("missing weight for feature state")

	// ErrModelInconsistent indicates a structural or normalization check
	// failed on an assembled network.
	ErrModelInconsistent = errors.New("model inconsistent")

	// ErrInvalidEvidence indicates evidence naming an unknown variable or a
	// state the variable does not declare.
	ErrInvalidEvidence = errors.New("invalid evidence")

	// ErrNotFound indicates a required external data source is absent.
	ErrNotFound = errors.New("not found")
)
