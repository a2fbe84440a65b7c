// Package testutil holds request helpers shared by HTTP tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
)

// NewRequest creates a test request. A non-empty body is sent as JSON.
func NewRequest(method, path, body string) *http.Request {
	if body == "" {
		return httptest.NewRequest(method, path, nil)
	}
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// NewRequestWithBasicAuth creates a test request carrying Basic credentials.
func NewRequestWithBasicAuth(method, path, body, username, password string) *http.Request {
	r := NewRequest(method, path, body)
	r.SetBasicAuth(username, password)
	return r
}

// RecordHTTPResponse serves r through h and returns the recorded response.
func RecordHTTPResponse(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}
