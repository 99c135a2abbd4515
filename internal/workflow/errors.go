package workflow

import "errors"

// Sentinel errors for workflow operations. The HTTP layer maps these to
// client-facing outcomes with errors.Is.
var (
	// ErrNotFound means the form id is unknown.
	ErrNotFound = errors.New("form not found")

	// ErrForbidden means the caller's role is not the current approver, or
	// lacks the privilege for the requested operation.
	ErrForbidden = errors.New("not authorized at current stage")

	// ErrConflict means the record is already terminal or its stage changed
	// under a racing decision.
	ErrConflict = errors.New("form already decided at this stage")

	// ErrValidation means the request itself is malformed.
	ErrValidation = errors.New("invalid workflow request")
)
