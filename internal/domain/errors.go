package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingRequiredField = errors.New("missing required field")
	ErrRenderFailure        = errors.New("render failure")
	ErrMissingResource      = errors.New("missing resource")
	ErrArtifactSealed       = errors.New("artifact already sealed")
	ErrMissingCredentials   = errors.New("missing signing credentials")
	ErrSigningFailed        = errors.New("signing failed")
	ErrNotFound             = errors.New("not found")
	ErrDecryptionFailed     = errors.New("decryption failed")
	ErrIntegrityViolation   = errors.New("integrity violation")
	ErrStorage              = errors.New("storage failure")
	ErrKeyUnknown           = errors.New("key unknown")
)

// ComposeError reports a failure turning a DocumentSpec into an artifact.
type ComposeError struct {
	Kind  error
	Field string
	Err   error
}

func (e *ComposeError) Error() string {
	msg := "compose: " + e.Kind.Error()
	if e.Field != "" {
		msg += " " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ComposeError) Unwrap() []error { return unwrapPair(e.Kind, e.Err) }

func MissingField(field string) error {
	return &ComposeError{Kind: ErrMissingRequiredField, Field: field}
}

func RenderFailure(err error) error {
	return &ComposeError{Kind: ErrRenderFailure, Err: err}
}

type AnnotateError struct {
	Kind    error
	Overlay OverlayKind
	Err     error
}

func (e *AnnotateError) Error() string {
	msg := "annotate: " + e.Kind.Error()
	if e.Overlay != "" {
		msg += " (" + string(e.Overlay) + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AnnotateError) Unwrap() []error { return unwrapPair(e.Kind, e.Err) }

type SealError struct {
	Kind error
	Err  error
}

func (e *SealError) Error() string {
	if e.Err != nil {
		return "seal: " + e.Kind.Error() + ": " + e.Err.Error()
	}
	return "seal: " + e.Kind.Error()
}

func (e *SealError) Unwrap() []error { return unwrapPair(e.Kind, e.Err) }

// VaultError carries the handle or locator involved, never key material.
type VaultError struct {
	Kind    error
	Locator string
	Err     error
}

func (e *VaultError) Error() string {
	msg := "vault: " + e.Kind.Error()
	if e.Locator != "" {
		msg += fmt.Sprintf(" (%s)", e.Locator)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *VaultError) Unwrap() []error { return unwrapPair(e.Kind, e.Err) }

// IsFatal reports errors that must never be retried or downgraded.
func IsFatal(err error) bool {
	return errors.Is(err, ErrIntegrityViolation)
}

// IsRetryable reports errors a caller may retry with the same inputs.
func IsRetryable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrDecryptionFailed) || errors.Is(err, ErrStorage)
}

func unwrapPair(kind, err error) []error {
	if err == nil {
		return []error{kind}
	}
	return []error{kind, err}
}
