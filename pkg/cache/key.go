package cache

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached request within a generation.
type Key struct {
	// Method is the request method (only GET is ever stored)
	Method string

	// URL is the absolute request URL
	URL *url.URL
}

// KeyFor returns the cache key of req.
func KeyFor(req *http.Request) Key {
	return Key{Method: req.Method, URL: req.URL}
}

// String generates a deterministic key string.
// Format: METHOD scheme://host/path?sorted_query
//
// Example:
//
//	GET https://app.example.com/api/items?page=1&sort=asc
//
// Query parameters are sorted so that equivalent URLs map to the same entry.
// Fragments never reach the network and are dropped.
func (k Key) String() string {
	method := strings.ToUpper(k.Method)
	if method == "" {
		method = http.MethodGet
	}
	if k.URL == nil {
		return method + " "
	}

	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(' ')
	b.WriteString(strings.ToLower(k.URL.Scheme))
	b.WriteString("://")
	b.WriteString(strings.ToLower(k.URL.Host))

	path := k.URL.EscapedPath()
	if path == "" {
		path = "/"
	}
	b.WriteString(path)

	query := k.URL.Query()
	if len(query) > 0 {
		queryKeys := make([]string, 0, len(query))
		for key := range query {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for i, key := range queryKeys {
			values := append([]string(nil), query[key]...)
			sort.Strings(values)
			for j, value := range values {
				if i == 0 && j == 0 {
					b.WriteByte('?')
				} else {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(key))
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(value))
			}
		}
	}

	return b.String()
}
