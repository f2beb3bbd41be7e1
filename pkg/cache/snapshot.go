package cache

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Snapshot is an immutable capture of a network response.
type Snapshot struct {
	// Body is the complete response body
	Body []byte `json:"body"`

	// StatusCode is the HTTP status code of the captured response
	StatusCode int `json:"status_code"`

	// Status is the status line text (e.g. "200 OK")
	Status string `json:"status"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// URL is the final URL the response was served from
	URL string `json:"url"`

	// CachedAt is when the response was captured
	CachedAt time.Time `json:"cached_at"`
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Body = bytes.Clone(s.Body)
	c.Headers = s.Headers.Clone()
	return &c
}

// Size returns the body length in bytes.
func (s *Snapshot) Size() int {
	return len(s.Body)
}

// Response builds a new *http.Response for req backed by a private copy of
// the snapshot body.
func (s *Snapshot) Response(req *http.Request) *http.Response {
	body := bytes.Clone(s.Body)
	header := s.Headers.Clone()
	if header == nil {
		header = make(http.Header)
	}

	status := s.Status
	if status == "" {
		status = strconv.Itoa(s.StatusCode) + " " + http.StatusText(s.StatusCode)
	}

	return &http.Response{
		Status:        status,
		StatusCode:    s.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
