package repository

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes attached to repository errors.
const (
	TextCodeNotFound           = "NOT_FOUND"
	TextCodeInvalidArgument    = "INVALID_ARGUMENT"
	TextCodeContractViolation  = "CONTRACT_VIOLATION"
	TextCodeMalformedExtension = "MALFORMED_EXTENSION"
)

func notFound(entity string, id any) error {
	return goerrors.New(fmt.Sprintf("%s with id %v not found", entity, id), goerrors.CategoryNotFound).
		WithTextCode(TextCodeNotFound)
}

func invalidArgument(format string, args ...any) error {
	return goerrors.New(fmt.Sprintf(format, args...), goerrors.CategoryBadInput).
		WithTextCode(TextCodeInvalidArgument)
}

func wrapInvalidArgument(err error, message string) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, message).
		WithTextCode(TextCodeInvalidArgument)
}

func contractViolation(format string, args ...any) error {
	return goerrors.New(fmt.Sprintf(format, args...), goerrors.CategoryInternal).
		WithTextCode(TextCodeContractViolation)
}

func malformedExtension(format string, args ...any) error {
	return goerrors.New(fmt.Sprintf(format, args...), goerrors.CategoryValidation).
		WithTextCode(TextCodeMalformedExtension)
}

// IsNotFound reports whether err is an update target lookup that found no record.
func IsNotFound(err error) bool {
	return hasTextCode(err, TextCodeNotFound)
}

// IsInvalidArgument reports whether err was caused by a bad argument.
func IsInvalidArgument(err error) bool {
	return hasTextCode(err, TextCodeInvalidArgument)
}

// IsContractViolation reports whether the bound model does not satisfy the
// record contract.
func IsContractViolation(err error) bool {
	return hasTextCode(err, TextCodeContractViolation)
}

// IsMalformedExtension reports whether a relation declaration was rejected.
func IsMalformedExtension(err error) bool {
	return hasTextCode(err, TextCodeMalformedExtension)
}

func hasTextCode(err error, code string) bool {
	var e *goerrors.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.TextCode == code
}
