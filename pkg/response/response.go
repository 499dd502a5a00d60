// Package response wraps a body producer into an HTTP response whose body is
// computed on first use and memoized.
package response

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
)

// Producer renders a response body.
type Producer func(ctx context.Context) (string, error)

// HTTPError is implemented by errors that carry an HTTP status.
type HTTPError interface {
	error
	StatusCode() int
}

// StatusError attaches an HTTP status to an error.
type StatusError struct {
	Code int
	Err  error
}

func (e StatusError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e StatusError) Unwrap() error { return e.Err }

func (e StatusError) StatusCode() int {
	if e.Code <= 0 {
		return http.StatusInternalServerError
	}
	return e.Code
}

// memo renders the body once. Responses derived with WithStatus or
// WithHeader share it. Errors are kept too, except context cancellation and
// deadline errors: those belong to one caller, so the next call renders again.
type memo struct {
	mu       sync.Mutex
	done     bool
	producer Producer
	body     string
	err      error
}

func (m *memo) get(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return m.body, m.err
	}
	if m.producer == nil {
		m.done, m.err = true, errors.New("response: producer is nil")
		return "", m.err
	}
	body, err := m.producer(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	m.done, m.body, m.err = true, body, err
	return body, err
}

// DataResponse is a deferred response. Nothing is rendered until Body, Data
// or ServeHTTP is called.
type DataResponse struct {
	memo   *memo
	status int
	header http.Header
}

// New wraps producer with status 200 and an HTML content type.
func New(producer Producer) *DataResponse {
	header := make(http.Header)
	header.Set("Content-Type", "text/html; charset=utf-8")
	return &DataResponse{
		memo:   &memo{producer: producer},
		status: http.StatusOK,
		header: header,
	}
}

// Body renders the body on first call and returns the memoized result after.
func (r *DataResponse) Body(ctx context.Context) (string, error) {
	return r.memo.get(ctx)
}

// Data returns the body as an untyped value.
func (r *DataResponse) Data(ctx context.Context) (any, error) {
	body, err := r.Body(ctx)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Status returns the HTTP status used on success.
func (r *DataResponse) Status() int { return r.status }

// Header returns a copy of the response headers.
func (r *DataResponse) Header() http.Header { return r.header.Clone() }

// WithStatus returns a copy with another status. The copy shares the body.
func (r *DataResponse) WithStatus(code int) *DataResponse {
	out := *r
	out.status = code
	out.header = r.header.Clone()
	return &out
}

// WithHeader returns a copy with a header set. The copy shares the body.
func (r *DataResponse) WithHeader(key, value string) *DataResponse {
	out := *r
	out.header = r.header.Clone()
	out.header.Set(key, value)
	return &out
}

// ServeHTTP renders the body with the request context and writes it.
func (r *DataResponse) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, err := r.Body(req.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	for key, values := range r.header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(r.status)
	if req.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte(body))
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.StatusCode()
	}
	http.Error(w, http.StatusText(status), status)
}

// Factory creates deferred responses.
type Factory interface {
	CreateResponse(producer Producer) *DataResponse
}

// DefaultFactory creates responses with New and applies Status and
// ContentType when set.
type DefaultFactory struct {
	Status      int
	ContentType string
}

// CreateResponse implements Factory.
func (f DefaultFactory) CreateResponse(producer Producer) *DataResponse {
	resp := New(producer)
	if f.Status > 0 {
		resp = resp.WithStatus(f.Status)
	}
	if f.ContentType != "" {
		resp = resp.WithHeader("Content-Type", f.ContentType)
	}
	return resp
}
