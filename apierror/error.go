package apierror

import (
	"fmt"
	"strings"
)

// Error is a classified service error. The cause is kept for errors.Is/As and
// server-side logging and never reaches the response body.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

// NotFound reports a missing resource.
func NotFound() *Error { return newError(KindNotFound, "", nil) }

// Unauthorized reports a failed or missing authentication.
func Unauthorized() *Error { return newError(KindUnauthorized, "", nil) }

// InternalService reports a failure the client cannot act on.
func InternalService() *Error { return newError(KindInternalService, "", nil) }

// JWKSFetch reports that the signing keys of the identity provider could not be retrieved.
func JWKSFetch() *Error { return newError(KindJWKSFetch, "", nil) }

// BadRequest reports invalid client input. The message is shown to the client as is,
// so it must not contain internal details.
func BadRequest(message string) *Error {
	return newError(KindBadRequest, strings.TrimSpace(message), nil)
}

// Wrap classifies cause as kind. The cause is not exposed to clients.
func Wrap(kind Kind, cause error) *Error {
	return newError(kind, "", cause)
}

// WithCause returns a copy of e carrying cause.
func (e *Error) WithCause(cause error) *Error {
	if e == nil {
		return Wrap(KindInternalService, cause)
	}
	cp := *e
	cp.cause = cause
	return &cp
}

// Kind returns the category of e. A nil error reports KindInternalService.
func (e *Error) Kind() Kind {
	if e == nil {
		return KindInternalService
	}
	if _, ok := descriptors[e.kind]; !ok {
		return KindInternalService
	}
	return e.kind
}

// Message returns the client-facing message.
func (e *Error) Message() string {
	kind := e.Kind()
	if kind == KindBadRequest && e.message != "" {
		return e.message
	}
	return kind.describe().message
}

// Name returns the stable error name.
func (e *Error) Name() string {
	return e.Kind().String()
}

// StatusCode implements HTTPError.
func (e *Error) StatusCode() int {
	return e.Kind().StatusCode()
}

// Body implements HTTPError.
func (e *Error) Body() Response {
	return Response{
		StatusCode: uint16(e.StatusCode()),
		Name:       e.Name(),
		Message:    e.Message(),
	}
}

func (e *Error) Error() string {
	if e == nil || e.cause == nil {
		return fmt.Sprintf("%s: %s", e.Name(), e.Message())
	}
	return fmt.Sprintf("%s: %s: %v", e.Name(), e.Message(), e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error of the same kind, so errors.Is(err, apierror.NotFound()) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind() == t.Kind()
}
