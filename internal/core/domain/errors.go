package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrInvalidWeight    = errors.New("invalid weight")
	ErrNotFound         = errors.New("bale not found")
	ErrAlreadyCompleted = errors.New("bale already completed")
	ErrDuplicateID      = errors.New("duplicate bale id")
	ErrSessionNotFound  = errors.New("session not found")
	ErrStorage          = errors.New("storage failure")
	ErrDecoder          = errors.New("decoder failure")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// Step names the workflow step an error belongs to, so an operator can tell
// whether a retry is safe.
type Step string

const (
	StepSetup       Step = "setup"
	StepLookup      Step = "lookup"
	StepWeightEntry Step = "weight_entry"
	StepAssessment  Step = "assessment"
	StepCompletion  Step = "completion"
	StepPersistence Step = "persistence"
)

type StepError struct {
	Step Step
	Kind error
	Err  error
}

func NewStepError(step Step, kind error, err error) error {
	return &StepError{Step: step, Kind: kind, Err: err}
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Step, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// StepOf extracts the failing step from err.
func StepOf(err error) (Step, bool) {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step, true
	}
	return "", false
}

// Retryable reports whether the failed operation left state untouched and may
// be retried, possibly after the operator corrects the input.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case IsKind(err, ErrNotFound), IsKind(err, ErrAlreadyCompleted), IsKind(err, ErrDuplicateID), IsKind(err, ErrSessionNotFound):
		return false
	case IsKind(err, ErrValidation), IsKind(err, ErrInvalidWeight), IsKind(err, ErrDecoder):
		return true
	case IsKind(err, ErrStorage), IsKind(err, ErrTemporary):
		return true
	default:
		return false
	}
}
