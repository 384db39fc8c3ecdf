package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrClaimNotFound      = errors.New("claim not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrParentNotFound     = errors.New("parent user not found")
	ErrDecisionInProgress = errors.New("a decision on this claim is already in progress")
	ErrDuplicateClaim     = errors.New("claim already submitted")
	ErrDuplicateUser      = errors.New("username or email already taken")
)

// IsNotFound reports whether err means a claim, user or upline is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClaimNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrParentNotFound)
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func newValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		msg := "failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		return &ValidationError{Field: fe.Field(), Message: msg}
	}
	return &ValidationError{Field: "request", Message: err.Error()}
}

// failureReason labels an error for the decision error counter.
func failureReason(err error) string {
	var vErr *ValidationError
	switch {
	case IsNotFound(err):
		return "not_found"
	case errors.As(err, &vErr):
		return "validation"
	case errors.Is(err, ErrDecisionInProgress):
		return "in_progress"
	default:
		return "store"
	}
}
