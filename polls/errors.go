// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"errors"
	"fmt"

	"github.com/danielhkuo/topic-polls/models"
	"github.com/danielhkuo/topic-polls/sentinel"
)

var (
	ErrPollNotFound                = errors.New("poll not found")
	ErrTopicNotFound               = errors.New("topic not found")
	ErrPollAlreadyExists           = errors.New("topic already has a poll")
	ErrPermissionDenied            = errors.New("permission denied")
	ErrLockedByModerator           = errors.New("poll was locked by a moderator")
	ErrAlreadyInRequestedLockState = errors.New("poll is already in the requested lock state")
	ErrTooManyChoicesSelected      = errors.New("too many choices selected")
	ErrNoChoiceSelected            = errors.New("no choice selected")
	ErrValidation                  = errors.New("invalid poll input")
	ErrDoubleSubmission            = errors.New("form already submitted")
	ErrStoreUnavailable            = errors.New("poll store unavailable")
)

// Scope tells whether the missing grant was the "own" or the "any" variant.
type Scope string

const (
	ScopeOwn Scope = "own"
	ScopeAny Scope = "any"
)

// PermissionError is an ErrPermissionDenied with context.
type PermissionError struct {
	Action models.Action
	Scope  Scope
	Reason string
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("permission denied: %s", e.Action)
	if e.Scope != "" {
		msg += fmt.Sprintf(" (%s)", e.Scope)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}

func denied(action models.Action, scope Scope, reason string) error {
	return &PermissionError{Action: action, Scope: scope, Reason: reason}
}

// ValidationError is an ErrValidation naming the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Class groups errors by how the action layer should react.
type Class int

const (
	ClassNone Class = iota
	// ClassValidation: redisplay the submitted form.
	ClassValidation
	// ClassConflict: state moved under the caller; show a message and redirect.
	ClassConflict
	ClassPermission
	ClassNotFound
	ClassUnavailable
	ClassInternal
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "ok"
	case ClassValidation:
		return "validation"
	case ClassConflict:
		return "conflict"
	case ClassPermission:
		return "permission"
	case ClassNotFound:
		return "not_found"
	case ClassUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Classify buckets err into a Class.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrTooManyChoicesSelected),
		errors.Is(err, ErrNoChoiceSelected):
		return ClassValidation
	case errors.Is(err, ErrLockedByModerator),
		errors.Is(err, ErrAlreadyInRequestedLockState),
		errors.Is(err, ErrPollAlreadyExists),
		errors.Is(err, ErrDoubleSubmission):
		return ClassConflict
	case errors.Is(err, ErrPermissionDenied):
		return ClassPermission
	case errors.Is(err, ErrPollNotFound), errors.Is(err, ErrTopicNotFound):
		return ClassNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return ClassUnavailable
	default:
		return ClassInternal
	}
}

// clientErrors are the domain errors whose text is safe to show a client.
var clientErrors = []error{
	ErrPollNotFound,
	ErrTopicNotFound,
	ErrPollAlreadyExists,
	ErrLockedByModerator,
	ErrAlreadyInRequestedLockState,
	ErrTooManyChoicesSelected,
	ErrNoChoiceSelected,
	ErrDoubleSubmission,
	ErrStoreUnavailable,
}

// Message is the client-facing text for err. Wrapped store detail is dropped.
func Message(err error) string {
	var perr *PermissionError
	if errors.As(err, &perr) {
		return perr.Error()
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	for _, known := range clientErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal error"
}

// storeErr translates infrastructure sentinels into domain errors. Errors that
// already carry a domain kind pass through. notFound is the domain error a
// missing row means for this call.
func storeErr(err error, notFound error) error {
	if Classify(err) != ClassInternal {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return fmt.Errorf("%w: %w", notFound, err)
	case errors.Is(err, sentinel.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	default:
		return err
	}
}
