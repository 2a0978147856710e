// Package service holds the account flows: issuing and redeeming
// verification codes, and the role/deletion protocol that keeps identity
// claims and profile documents in step.
package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("target user not found")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("account already exists")
	ErrDispatchFailed = errors.New("notification dispatch failed")
)

// InputError is a validation failure with a message safe to show to the
// caller. It matches ErrInvalidInput.
type InputError struct{ Msg string }

func (e *InputError) Error() string { return e.Msg }

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

func invalid(msg string) error { return &InputError{Msg: msg} }

// Steps of the role protocol, in execution order.
const (
	StepSetClaims       = "set-claims"
	StepRevokeSessions  = "revoke-sessions"
	StepWriteProfile    = "write-profile"
	StepReconcileLegacy = "reconcile-legacy"
)

// PartialFailure reports that a mutation stopped after external state was
// already changed. Earlier steps are not rolled back; re-running the same
// request converges.
type PartialFailure struct {
	Step string
	Err  error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("failed at step %s: %v", e.Step, e.Err)
}

func (e *PartialFailure) Unwrap() error { return e.Err }
