package contract

import (
	"errors"
	"fmt"

	"bklogistics/model"
)

// Business-rule failures. All are deterministic and never retried by the chaincode;
// callers match them with errors.Is and resubmit with corrected input.
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNotHolder            = errors.New("not holder")
	ErrNotFound             = errors.New("not found")
	ErrUnknownProduct       = errors.New("unknown product")
	ErrNoQuote              = errors.New("no quote")
	ErrRoleViolation        = errors.New("role violation")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrAlreadyIssued        = errors.New("already issued")
	ErrNotEligible          = errors.New("not eligible")
	ErrNotAuthorizedCarrier = errors.New("not authorized carrier")
	ErrInvalidInput         = errors.New("invalid input")
)

// RoleViolationError names the first participant of a batch that lacks its expected role.
type RoleViolationError struct {
	Identity string
	Role     model.Role
}

func (e *RoleViolationError) Error() string {
	return fmt.Sprintf("%s: identity '%s' does not hold role '%s'", ErrRoleViolation, e.Identity, e.Role)
}

func (e *RoleViolationError) Is(target error) bool {
	return target == ErrRoleViolation
}
