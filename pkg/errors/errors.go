package errors

import (
	"errors"
	"fmt"
)

const (
	CodeConfigNotFound = "CONFIG_NOT_FOUND"
	CodeMissingFile    = "MISSING_FILE"
	CodeLockMismatch   = "LOCK_MISMATCH"
)

// Types ////////////////////////////////////////

type CodedError interface {
	error
	Code() string
}

type codedError struct {
	code string
	msg  string
	err  error
}

func (e *codedError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *codedError) Code() string {
	return e.code
}

func (e *codedError) Unwrap() error {
	return e.err
}

// Error Creators ///////////////////////////////

// The botbox.yaml was not found
func ConfigNotFound(msg string) error {
	return &codedError{
		code: CodeConfigNotFound,
		msg:  msg,
	}
}

// A file referenced by the build recipe is not in the project
func MissingFile(path string, err error) error {
	return &codedError{
		code: CodeMissingFile,
		msg:  fmt.Sprintf("%s is referenced by the build but does not exist", path),
		err:  err,
	}
}

// The lock file does not satisfy the dependency manifest
func LockMismatch(msg string, err error) error {
	return &codedError{
		code: CodeLockMismatch,
		msg:  msg,
		err:  err,
	}
}

// Helpers //////////////////////////////////////

func IsConfigNotFound(err error) bool {
	return Code(err) == CodeConfigNotFound
}

func IsMissingFile(err error) bool {
	return Code(err) == CodeMissingFile
}

func IsLockMismatch(err error) bool {
	return Code(err) == CodeLockMismatch
}

// Return the error code, or the empty string
func Code(err error) string {
	var cerr CodedError
	if errors.As(err, &cerr) {
		return cerr.Code()
	}
	return ""
}
