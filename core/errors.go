package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// Kind classifies failures coming from outside the process.
type Kind uint8

const (
	KindUnknown    Kind = iota
	KindPermission      // camera/device access denied
	KindTransport       // remote service unreachable or answered with an error
	KindStorage         // blob upload failed
	KindRecord          // record store read/write failed
	KindAuth            // identity provider rejected or failed the call
)

func (k Kind) String() string {
	switch k {
	case KindPermission:
		return "permission"
	case KindTransport:
		return "transport"
	case KindStorage:
		return "storage"
	case KindRecord:
		return "record"
	case KindAuth:
		return "auth"
	default:
		return "unknown"
	}
}

type KindError struct {
	Kind Kind
	Op   string
	Err  error
}

func NewKindError(kind Kind, op string, err error) error {
	return &KindError{Kind: kind, Op: op, Err: err}
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *KindError) Unwrap() error { return e.Err }

// ErrorKind returns the Kind of the first KindError found in err's chain.
func ErrorKind(err error) Kind {
	var kErr *KindError
	if errors.As(err, &kErr) {
		return kErr.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return err != nil && ErrorKind(err) == kind
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
