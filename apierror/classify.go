package apierror

import (
	"database/sql"
	"errors"

	"github.com/deicod/svcerr/blocking"
	"github.com/jackc/pgx/v5"
)

// ErrRecordNotFound lets data-access code without a driver sentinel report a missing row.
var ErrRecordNotFound = errors.New("apierror: record not found")

// Classify maps e to its status code and response body. A nil e classifies as an
// internal service error.
func Classify(e *Error) (int, Response) {
	return e.StatusCode(), e.Body()
}

// FromDataAccessFailure converts a persistence-layer error. Only a missing record is
// surfaced to the client; every other failure collapses to KindInternalService with the
// original error kept as the hidden cause. A nil err yields nil.
func FromDataAccessFailure(err error) *Error {
	if err == nil {
		return nil
	}
	if isNoRows(err) {
		return Wrap(KindNotFound, err)
	}
	return Wrap(KindInternalService, err)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) ||
		errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, ErrRecordNotFound)
}

// FromBlockingFailure converts an error returned by blocking.Run or blocking.Do.
// A canceled task is an internal service error; a task that returned its own error is
// classified by inner, which defaults to From. A nil err yields nil.
func FromBlockingFailure(err error, inner func(error) *Error) *Error {
	if err == nil {
		return nil
	}
	if inner == nil {
		inner = From
	}
	if errors.Is(err, blocking.ErrCanceled) {
		return Wrap(KindInternalService, err)
	}
	var taskErr *blocking.TaskError
	if errors.As(err, &taskErr) {
		if classified := inner(taskErr.Err); classified != nil {
			return classified
		}
		return Wrap(KindInternalService, err)
	}
	if classified := inner(err); classified != nil {
		return classified
	}
	return Wrap(KindInternalService, err)
}

// From converts any error reaching the HTTP boundary. An *Error anywhere in the chain
// is returned unchanged; blocking and data-access failures go through their converters;
// anything unrecognised becomes KindInternalService. A nil err yields nil.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	var taskErr *blocking.TaskError
	if errors.Is(err, blocking.ErrCanceled) || errors.As(err, &taskErr) {
		return FromBlockingFailure(err, From)
	}
	return FromDataAccessFailure(err)
}
