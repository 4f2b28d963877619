package services

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness rule is violated.
	ErrConflict = errors.New("conflict")
	// ErrAuthentication is returned for unknown users, bad credentials and
	// invalid or expired tokens alike.
	ErrAuthentication = errors.New("authentication failed")
)

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// fromValidator converts go-playground/validator errors into the service
// taxonomy so handlers never see library error types.
func fromValidator(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	vErr := &ValidationError{}
	for _, fe := range fieldErrs {
		vErr.add(fe.Field(), "failed on the '"+fe.Tag()+"' rule")
	}
	return vErr
}

// translateConstraintErr maps SQLite constraint violations onto the service
// taxonomy. The store's constraints are the source of truth for uniqueness
// and referential integrity; raw storage errors must not leak to callers.
func translateConstraintErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return ErrConflict
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ErrNotFound
	case strings.Contains(msg, "CHECK constraint failed"):
		return &ValidationError{FieldErrors: map[string]string{"meeting": "violates a store constraint"}}
	}
	return err
}
