package mdpress

import (
	"context"
	"errors"
)

// Sentinel errors for library operations.
var (
	ErrEmptyMarkdown = errors.New("markdown content cannot be empty")
	ErrInputTooLarge = errors.New("markdown content exceeds size limit")

	// Template registry errors.
	ErrUnknownTemplate = errors.New("unknown style template")

	// Page settings validation errors.
	ErrInvalidPageSize    = errors.New("invalid page size")
	ErrInvalidOrientation = errors.New("invalid orientation")
	ErrInvalidMargin      = errors.New("invalid margin")

	// Engine failure classes. Every engine maps its internal failures
	// onto one of these so the controller can decide tier advancement
	// with errors.Is alone.
	ErrEngineUnavailable  = errors.New("render engine unavailable")
	ErrEngineTimeout      = errors.New("render engine timed out")
	ErrEngineRender       = errors.New("render engine failed to produce output")
	ErrNetworkUnavailable = errors.New("remote render service unreachable")
	ErrRemoteQuota        = errors.New("remote render service quota exceeded")

	// Pool and controller errors.
	ErrResourceExhausted = errors.New("engine pool exhausted")
	ErrPoolClosed        = errors.New("engine pool is closed")
	ErrDeadlineExceeded  = errors.New("overall conversion deadline exceeded")
	ErrAllTiersFailed    = errors.New("all render engine tiers failed")

	// Chrome engine internals.
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
)

// ErrorKind classifies a terminal conversion failure for the boundary
// layer, which maps it to a transport-level status.
type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindInvalidInput
	ErrorKindUnknownTemplate
	ErrorKindEngineUnavailable
	ErrorKindEngineTimeout
	ErrorKindEngineRender
	ErrorKindNetworkUnavailable
	ErrorKindRemoteQuota
	ErrorKindResourceExhausted
	ErrorKindDeadlineExceeded
	ErrorKindAllTiersFailed
)

// String returns the stable identifier for the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindInvalidInput:
		return "invalid_input"
	case ErrorKindUnknownTemplate:
		return "unknown_template"
	case ErrorKindEngineUnavailable:
		return "engine_unavailable"
	case ErrorKindEngineTimeout:
		return "engine_timeout"
	case ErrorKindEngineRender:
		return "engine_render_error"
	case ErrorKindNetworkUnavailable:
		return "network_unavailable"
	case ErrorKindRemoteQuota:
		return "remote_quota_exceeded"
	case ErrorKindResourceExhausted:
		return "resource_exhausted"
	case ErrorKindDeadlineExceeded:
		return "deadline_exceeded"
	case ErrorKindAllTiersFailed:
		return "all_tiers_failed"
	}
	return "unknown"
}

// Retryable reports whether a failure of this kind may succeed on a
// later attempt. Input and template errors are the caller's to fix.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindInvalidInput, ErrorKindUnknownTemplate:
		return false
	case ErrorKindNone:
		return false
	}
	return true
}

// KindOf maps an error to its ErrorKind using the sentinel chain.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrUnknownTemplate):
		return ErrorKindUnknownTemplate
	case errors.Is(err, ErrEmptyMarkdown),
		errors.Is(err, ErrInputTooLarge),
		errors.Is(err, ErrInvalidPageSize),
		errors.Is(err, ErrInvalidOrientation),
		errors.Is(err, ErrInvalidMargin):
		return ErrorKindInvalidInput
	case errors.Is(err, ErrResourceExhausted), errors.Is(err, ErrPoolClosed):
		return ErrorKindResourceExhausted
	case errors.Is(err, ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindDeadlineExceeded
	case errors.Is(err, ErrAllTiersFailed):
		return ErrorKindAllTiersFailed
	case errors.Is(err, ErrRemoteQuota):
		return ErrorKindRemoteQuota
	case errors.Is(err, ErrNetworkUnavailable):
		return ErrorKindNetworkUnavailable
	case errors.Is(err, ErrEngineTimeout):
		return ErrorKindEngineTimeout
	case errors.Is(err, ErrEngineUnavailable), errors.Is(err, ErrBrowserConnect):
		return ErrorKindEngineUnavailable
	case errors.Is(err, ErrEngineRender):
		return ErrorKindEngineRender
	}
	return ErrorKindEngineRender
}
