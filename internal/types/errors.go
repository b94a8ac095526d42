package types

import "errors"

// Sentinel errors for quota and input violations. Providers translate these
// into failed Results before any process is spawned.
var (
	// ErrInputInvalid signals empty or unusable input.
	ErrInputInvalid = errors.New("input invalid")

	// ErrSecurityBlocked signals a denylisted import or shell pattern.
	ErrSecurityBlocked = errors.New("blocked by security filter")

	// ErrFileCapacity signals the per-session file count quota was reached.
	ErrFileCapacity = errors.New("session file capacity reached")

	// ErrFileTooLarge signals content exceeding the per-file size quota.
	ErrFileTooLarge = errors.New("file exceeds size limit")

	// ErrSessionNotFound signals a lookup for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
)
