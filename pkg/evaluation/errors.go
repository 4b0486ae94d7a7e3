package evaluation

import (
	"errors"
	"fmt"
)

// Error kinds of an evaluation run. Match them with errors.Is.
var (
	// ErrExternalCall marks a failed segmentation endpoint call. It is only
	// logged, a run never fails with it.
	ErrExternalCall = errors.New("external call failed")
	// ErrEvaluatorUnavailable marks an evaluator that failed or returned nothing.
	ErrEvaluatorUnavailable = errors.New("evaluator unavailable")
	// ErrResponseParse marks an evaluator answer that does not decode or
	// does not have the expected shape.
	ErrResponseParse = errors.New("evaluator response could not be parsed")
	// ErrConfiguration marks an inconsistent AIConfig.
	ErrConfiguration = errors.New("configuration inconsistent")
)

// EvaluationError is a failed step of an evaluation run.
type EvaluationError struct {
	Kind error
	Op   string
	Err  error
}

func newError(kind error, op string, err error) *EvaluationError {
	return &EvaluationError{Kind: kind, Op: op, Err: err}
}

func (e *EvaluationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *EvaluationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
