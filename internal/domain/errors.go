package domain

import (
	"errors"
	"fmt"
)

// Machine-readable failure codes persisted on failed jobs and surfaced in
// sweep results. Operators rely on these to tell "we refused" apart from
// "we couldn't".
const (
	// Configuration errors: fatal without operator intervention.
	CodePlatformKeyMissing  = "platform_key_missing"
	CodeStorageUnconfigured = "storage_unconfigured"

	// Tenant-state errors: business-rule failures.
	CodePlanNotEligible   = "plan_not_eligible"
	CodeCreditsExhausted  = "credits_exhausted"
	CodeDailyCapReached   = "daily_cap_reached"
	CodeCredentialDecrypt = "credential_decrypt_failed"

	// Content-policy errors: the render was refused before any paid call.
	CodeContentBlocked = "content_blocked"

	// Upstream errors: this job only; a fresh enqueue is the retry mechanism.
	CodeGenerationFailed = "generation_failed"
	CodeUploadFailed     = "upload_failed"

	// Quote-state outcomes.
	CodeRenderNotRequested = "render_not_requested"
	CodeMissingPhotos      = "quote_missing_photos"

	CodeInternal = "internal"
)

var ErrNotFound = errors.New("not found")

// CodedError carries a stable machine code alongside a human message.
type CodedError struct {
	ErrCode string
	Message string
	Err     error
}

func (e *CodedError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CodedError) Unwrap() error { return e.Err }

func (e *CodedError) Code() string { return e.ErrCode }

// Coded builds a CodedError without a cause.
func Coded(code, message string) *CodedError {
	return &CodedError{ErrCode: code, Message: message}
}

// CodedWrap builds a CodedError wrapping an underlying cause.
func CodedWrap(code, message string, err error) *CodedError {
	return &CodedError{ErrCode: code, Message: message, Err: err}
}

// CreditsExhaustedError reports the tenant's grace counters at the moment the
// shared pool refused them, for caller diagnostics.
type CreditsExhaustedError struct {
	Used    int
	Granted int
}

func (e *CreditsExhaustedError) Error() string {
	return fmt.Sprintf("grace credits exhausted (%d/%d used)", e.Used, e.Granted)
}

func (e *CreditsExhaustedError) Code() string { return CodeCreditsExhausted }

type coder interface{ Code() string }

// Code extracts the machine code from err, or CodeInternal when err carries none.
func Code(err error) string {
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeInternal
}
