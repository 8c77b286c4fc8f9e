package apierror

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response is the JSON body written for every failed request.
type Response struct {
	StatusCode uint16 `json:"status_code"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// HTTPError is implemented by errors that know how to present themselves over HTTP.
type HTTPError interface {
	error
	StatusCode() int
	Body() Response
}

var _ HTTPError = (*Error)(nil)

// Recorder observes every error response written by a Responder.
type Recorder interface {
	RecordError(ctx context.Context, resp Response)
}

// Responder writes classified errors to HTTP responses.
type Responder struct {
	// Logger receives one record per written error. Nil means slog.Default().
	Logger *slog.Logger
	// Recorder, when set, is notified of every response.
	Recorder Recorder
}

var defaultResponder Responder

// Write classifies err with From and writes it using a Responder with default settings.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	defaultResponder.Write(w, r, err)
}

// Write classifies err with From and writes the status code and JSON body.
// A nil err is written as an internal service error.
func (rs Responder) Write(w http.ResponseWriter, r *http.Request, err error) {
	classified := From(err)
	if classified == nil {
		classified = InternalService()
	}
	status, body := Classify(classified)

	ctx := context.Background()
	if r != nil {
		ctx = r.Context()
	}
	rs.log(ctx, r, classified, body)
	if rs.Recorder != nil {
		rs.Recorder.RecordError(ctx, body)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if r != nil && r.Method == http.MethodHead {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (rs Responder) log(ctx context.Context, r *http.Request, e *Error, body Response) {
	logger := rs.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelDebug
	if body.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	if !logger.Enabled(ctx, level) {
		return
	}
	attrs := []slog.Attr{
		slog.Int("status", int(body.StatusCode)),
		slog.String("name", body.Name),
	}
	if r != nil && r.URL != nil {
		attrs = append(attrs, slog.String("method", r.Method), slog.String("path", r.URL.Path))
	}
	if cause := e.Unwrap(); cause != nil {
		attrs = append(attrs, slog.Any("error", cause))
	}
	logger.LogAttrs(ctx, level, "request failed", attrs...)
}
