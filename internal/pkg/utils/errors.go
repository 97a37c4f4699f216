package utils

import (
	"errors"
	"fmt"

	"github.com/airenas/tarimas/internal/pkg/status"
)

// ErrCoded is an error with a code from the job error taxonomy
type ErrCoded struct {
	Code status.ErrCode
	Msg  string
	err  error
}

// NewErrCoded creates new coded error, err may be nil
func NewErrCoded(code status.ErrCode, msg string, err error) error {
	return &ErrCoded{Code: code, Msg: msg, err: err}
}

// NewErrNotFound creates not found error
func NewErrNotFound(msg string) error {
	return &ErrCoded{Code: status.ECNotFound, Msg: msg}
}

// NewErrConflict creates conflict error
func NewErrConflict(msg string) error {
	return &ErrCoded{Code: status.ECConflict, Msg: msg}
}

func (e *ErrCoded) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.Code.String(), e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code.String(), e.Msg, e.err.Error())
}

func (e *ErrCoded) Unwrap() error {
	return e.err
}

// CodeOf returns the code of the error, ECInternal for any uncoded error
func CodeOf(err error) status.ErrCode {
	var errCoded *ErrCoded
	if errors.As(err, &errCoded) {
		return errCoded.Code
	}
	return status.ECInternal
}

// MsgOf returns user facing message of the error
func MsgOf(err error) string {
	var errCoded *ErrCoded
	if errors.As(err, &errCoded) {
		return errCoded.Msg
	}
	return "Service error"
}
