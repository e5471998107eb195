package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误类别，调用方据此区分处理方式
type Kind string

const (
	KindNotFound              Kind = "not_found"
	KindSelfReference         Kind = "self_reference"
	KindAlreadyActive         Kind = "already_active"
	KindAlreadyInactive       Kind = "already_inactive"
	KindValidation            Kind = "validation"
	KindDependencyUnavailable Kind = "dependency_unavailable"
	KindInternal              Kind = "internal"
)

// Sentinels for errors.Is checks. Matching is by Kind, so any *Error of the
// same kind satisfies errors.Is(err, ErrNotFound) regardless of message.
var (
	ErrNotFound              = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrSelfReference         = &Error{Kind: KindSelfReference, Message: "actor and target are the same user"}
	ErrAlreadyActive         = &Error{Kind: KindAlreadyActive, Message: "relation already active"}
	ErrAlreadyInactive       = &Error{Kind: KindAlreadyInactive, Message: "relation already inactive"}
	ErrValidation            = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrDependencyUnavailable = &Error{Kind: KindDependencyUnavailable, Message: "dependency unavailable"}
	ErrInternal              = &Error{Kind: KindInternal, Message: "internal server error"}
)

// Error is the typed error returned by the engine.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, nil, format, args...)
}

func SelfReference(format string, args ...any) *Error {
	return newf(KindSelfReference, nil, format, args...)
}

func AlreadyActive(format string, args ...any) *Error {
	return newf(KindAlreadyActive, nil, format, args...)
}

func AlreadyInactive(format string, args ...any) *Error {
	return newf(KindAlreadyInactive, nil, format, args...)
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, nil, format, args...)
}

// Unavailable wraps a failed store or sub-query call.
func Unavailable(err error, format string, args ...any) *Error {
	return newf(KindDependencyUnavailable, err, format, args...)
}

func Internal(err error, format string, args ...any) *Error {
	return newf(KindInternal, err, format, args...)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the status code used by the transport layer.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindSelfReference, KindValidation:
		return http.StatusBadRequest
	case KindAlreadyActive, KindAlreadyInactive:
		return http.StatusConflict
	case KindDependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to callers; causes are not exposed.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return ErrInternal.Message
}
