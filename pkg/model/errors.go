package model

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrExtractionSchema means model output could not be parsed or violated the expected schema.
	ErrExtractionSchema = goerr.New("model output does not match schema")

	// ErrEmptyResponse means the model returned no usable candidate.
	ErrEmptyResponse = goerr.New("empty model response")

	ErrNoMatchingExaminable = goerr.New("no matching examinable")
	ErrNoCriterion          = goerr.New("no criterion found")

	ErrEvaluation = goerr.New("evaluation failed")

	// ErrSnapshotFailed means every unit of work in a snapshot failed.
	ErrSnapshotFailed = goerr.New("snapshot failed")

	ErrNotFound = goerr.New("not found")
)

// IsResolutionError reports whether err came from a failed catalog lookup.
func IsResolutionError(err error) bool {
	return errors.Is(err, ErrNoMatchingExaminable) || errors.Is(err, ErrNoCriterion)
}
