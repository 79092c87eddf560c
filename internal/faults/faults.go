// Package faults defines the error taxonomy shared by the messaging core.
// Silent-refresh failures are swallowed by callers regardless of kind;
// every other failure is surfaced through the notifier.
package faults

import (
	"errors"
	"fmt"
)

// ValidationError reports rejected input before or after a collaborator
// call: empty content, over-limit attachments, sends to archived
// conversations, empty participant sets.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// AuthorizationError reports a structural change attempted by someone other
// than the conversation creator, or a moderation action without privilege.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "authorization: " + e.Reason
}

// NetworkError wraps transport-level failures against the record API.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a stale identifier the collaborator no longer knows.
type NotFoundError struct {
	Resource  string
	Matricule string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Matricule)
}

// Validation builds a ValidationError.
func Validation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Authorization builds an AuthorizationError.
func Authorization(format string, args ...any) error {
	return &AuthorizationError{Reason: fmt.Sprintf(format, args...)}
}

// Network wraps err as a NetworkError for the given operation.
func Network(op string, err error) error {
	return &NetworkError{Op: op, Err: err}
}

// NotFound builds a NotFoundError.
func NotFound(resource, matricule string) error {
	return &NotFoundError{Resource: resource, Matricule: matricule}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsAuthorization reports whether err is an AuthorizationError.
func IsAuthorization(err error) bool {
	var target *AuthorizationError
	return errors.As(err, &target)
}

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}
