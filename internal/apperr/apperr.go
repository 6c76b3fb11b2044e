// Package apperr defines the lowercase snake_case error code taxonomy
// shared by every component (spec.md §6/§7) and a small Error type that
// carries a code plus a human message without resorting to exceptions.
package apperr

import "fmt"

// Code is a stable, lowercase snake_case error identifier.
type Code string

const (
	NotFound              Code = "not_found"
	InvalidField          Code = "invalid_field"
	InvariantViolation    Code = "invariant_violation"
	InvalidEvidenceType   Code = "invalid_evidence_type"
	InvalidDirection      Code = "invalid_direction"
	InvalidWorkType       Code = "invalid_work_type"
	DuplicateFingerprint  Code = "duplicate_fingerprint"
	InvalidTransition     Code = "invalid_transition"
	CycleDetected         Code = "cycle_detected"
	BudgetExceeded        Code = "budget_exceeded"
	PermissionDenied      Code = "permission_denied"
	CannotAddImmutable    Code = "cannot_add_immutable_rules"
	CannotAmendImmutable  Code = "cannot_amend_immutable"
	CannotDeactivateImm   Code = "cannot_deactivate_immutable"
	InsufficientData      Code = "insufficient_data"
	WrongProtocolState    Code = "wrong_protocol_state"
	CapacityReached       Code = "capacity_reached"
	AlreadyExists         Code = "already_exists"
	RuleNotAmendable      Code = "rule_not_amendable"
	ThresholdNotMet       Code = "threshold_not_met"
)

// Error is a typed, code-carrying error every component returns instead
// of ad-hoc strings.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates an *Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not_found error that echoes the id, per spec.md §6.
func NotFoundf(kind, id string) *Error {
	return New(NotFound, "%s %q not found", kind, id)
}
