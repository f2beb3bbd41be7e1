package gateway

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// OutboundRequest rewrites an inbound request into the request the
// application would have sent. Absolute-form targets (forward proxy) are
// kept; origin-form targets are resolved against the configured origin.
func (g *Gateway) OutboundRequest(r *http.Request) (*http.Request, error) {
	target := r.URL.String()
	if !r.URL.IsAbs() {
		target = g.config.Origin + r.URL.RequestURI()
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse target: %w", err)
	}

	out, err := http.NewRequestWithContext(r.Context(), r.Method, u.String(), r.Body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	out.Header = r.Header.Clone()
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	out.ContentLength = r.ContentLength
	return out, nil
}

// ServeHTTP runs Intercept for an inbound request and writes the result.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	out, err := g.OutboundRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := g.Intercept(out)
	if err != nil {
		http.Error(w, fmt.Sprintf("request failed: %v", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	WriteResponse(w, resp)
}

// WriteResponse copies status, headers and body of resp to w.
func WriteResponse(w http.ResponseWriter, resp *http.Response) {
	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	for _, h := range hopHeaders {
		w.Header().Del(h)
	}

	w.WriteHeader(resp.StatusCode)

	if resp.Body != nil {
		_, _ = io.Copy(w, resp.Body)
	}
}
