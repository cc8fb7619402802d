package mensa

import (
	"github.com/cockroachdb/errors"
)

// ErrorKind classifies failures reported by the tools.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindTransport  ErrorKind = "transport"
	KindParse      ErrorKind = "parse"
	KindUnknown    ErrorKind = "unknown"
)

// Sentinel marks. Errors are tagged with errors.Mark so the original message is kept.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrTransport  = errors.New("transport error")
	ErrParse      = errors.New("parse error")
)

func validationErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

func notFoundErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

func transportErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrTransport)
}

func parseError(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrParse)
}

// KindOf returns the kind of err. Unmarked errors are KindUnknown.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrParse):
		return KindParse
	default:
		return KindUnknown
	}
}
