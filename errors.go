package main

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a digest workflow aborted
type ErrorKind string

const (
	InputError        ErrorKind = "input"
	PreconditionError ErrorKind = "precondition"
	GenerationError   ErrorKind = "generation"
	ValidationError   ErrorKind = "validation"
)

// Sentinel errors matching each ErrorKind, for use with errors.Is.
var (
	ErrInput        = errors.New("input error")
	ErrPrecondition = errors.New("precondition error")
	ErrGeneration   = errors.New("generation error")
	ErrValidation   = errors.New("validation error")
)

// WorkflowError is returned whenever the digest workflow aborts
type WorkflowError struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

func newWorkflowError(kind ErrorKind, stage Stage, err error) *WorkflowError {
	return &WorkflowError{Kind: kind, Stage: stage, Err: err}
}

func (e *WorkflowError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error in %s", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind
func (e *WorkflowError) Is(target error) bool {
	switch target {
	case ErrInput:
		return e.Kind == InputError
	case ErrPrecondition:
		return e.Kind == PreconditionError
	case ErrGeneration:
		return e.Kind == GenerationError
	case ErrValidation:
		return e.Kind == ValidationError
	}
	return false
}

// errorKind extracts the kind of a workflow error, or "" for any other error
func errorKind(err error) ErrorKind {
	var werr *WorkflowError
	if errors.As(err, &werr) {
		return werr.Kind
	}
	return ""
}
