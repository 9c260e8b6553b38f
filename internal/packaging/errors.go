package packaging

import (
	"errors"
	"strings"
)

// ErrorKind classifies failures raised while validating or packaging a job.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindTransient
	KindToolchain
	KindBestEffort
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindTransient:
		return "TRANSIENT"
	case KindToolchain:
		return "TOOLCHAIN"
	case KindBestEffort:
		return "BEST_EFFORT"
	case KindStorage:
		return "STORAGE"
	default:
		return "UNKNOWN"
	}
}

// Error is a classified packaging failure.
type Error struct {
	Kind      ErrorKind
	Op        string
	Message   string
	Details   []string
	Cause     error
	Retryable bool
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Op == "" || e.Op == t.Op)
}

// NewError creates a classified error. Transient and storage failures are
// retryable by default.
func NewError(kind ErrorKind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Retryable: retryableByDefault(kind)}
}

// Wrap classifies err under kind. A nil err returns nil.
func Wrap(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Cause: err, Retryable: retryableByDefault(kind)}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether a worker may re-enqueue the job that failed
// with err.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

func retryableByDefault(kind ErrorKind) bool {
	return kind == KindTransient || kind == KindStorage
}
