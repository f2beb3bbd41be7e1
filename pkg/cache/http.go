package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Capture reads the response body into a Snapshot.
// The response body is restored after reading so the caller can still
// consume the original response.
func Capture(resp *http.Response) (*Snapshot, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		resp.Body.Close()
	}

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	snap := &Snapshot{
		Body:       bytes.Clone(body),
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header.Clone(),
		CachedAt:   time.Now(),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		snap.URL = resp.Request.URL.String()
	}

	return snap, nil
}

// Cacheable reports whether resp, received for req, may be stored.
// Only a 200 response that stayed on origin without following a redirect
// qualifies. Everything else (error statuses, cross-origin or redirected
// responses) is returned to the caller unstored.
func Cacheable(req *http.Request, resp *http.Response, origin string) bool {
	if req == nil || resp == nil || resp.StatusCode != http.StatusOK {
		return false
	}
	if !SameOrigin(req, origin) {
		return false
	}
	return !Redirected(req, resp)
}

// SameOrigin reports whether req targets origin (scheme://host[:port]).
func SameOrigin(req *http.Request, origin string) bool {
	if req == nil || req.URL == nil {
		return false
	}
	reqOrigin := strings.ToLower(req.URL.Scheme + "://" + req.URL.Host)
	return reqOrigin == strings.ToLower(strings.TrimRight(origin, "/"))
}

// Redirected reports whether resp was produced by following a redirect chain
// away from the URL originally requested.
func Redirected(req *http.Request, resp *http.Response) bool {
	if resp.Request == nil || resp.Request.URL == nil || req.URL == nil {
		return false
	}
	return resp.Request.URL.String() != req.URL.String()
}
