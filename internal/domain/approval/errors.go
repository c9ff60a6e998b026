package approval

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrPreconditionViolation = errors.New("precondition violation")
	ErrInvalidStage          = errors.New("invalid approval stage")
)

// InvalidTransitionError is returned when action is not allowed from Current.
type InvalidTransitionError struct {
	Current Status
	Action  Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s from status %s", e.Action, e.Current)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// PreconditionError is returned when a record is not in the state an operation requires.
type PreconditionError struct {
	Expected string
	Actual   string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition violation: expected %s, got %s", e.Expected, e.Actual)
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionViolation
}
