// Package testutil holds shared helpers for handler-level tests: request
// builders, response decoding, and status/error assertions.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewJSONRequest builds a request whose body is the JSON encoding of v.
func NewJSONRequest(t *testing.T, method, path string, v any) *http.Request {
	t.Helper()

	var body io.Reader
	if v != nil {
		raw, err := json.Marshal(v)
		require.NoError(t, err, "encode request body")
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewRequest builds a bodyless request.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewRequestWithBody builds a request with a raw string body. Useful for
// sending deliberately malformed JSON.
func NewRequestWithBody(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest runs the request through the handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// ReadBody drains the recorded response body.
func ReadBody(t *testing.T, rec *httptest.ResponseRecorder) []byte {
	t.Helper()
	raw, err := io.ReadAll(rec.Body)
	require.NoError(t, err, "read response body")
	return raw
}

// UnmarshalResponse decodes the recorded body into a fresh T.
func UnmarshalResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) *T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(ReadBody(t, rec), &out), "decode response")
	return &out
}

// UnmarshalErrorResponse decodes the flat {"error": ..., "message": ...}
// shape the API uses for failures.
func UnmarshalErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(ReadBody(t, rec), &out), "decode error response")
	return out
}

// AssertStatus checks the recorded status code.
func AssertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	assert.Equal(t, want, rec.Code, "unexpected status code")
}

// AssertStatusOK checks for 200.
func AssertStatusOK(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	AssertStatus(t, rec, http.StatusOK)
}

// AssertErrorCode checks the error code in the response body.
func AssertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	assert.Equal(t, want, UnmarshalErrorResponse(t, rec)["error"], "unexpected error code")
}

// AssertStatusAndError checks the status code and the body error code together.
func AssertStatusAndError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	AssertStatus(t, rec, status)
	AssertErrorCode(t, rec, code)
}

// AssertJSONContains checks a single top-level key in the response body.
func AssertJSONContains(t *testing.T, rec *httptest.ResponseRecorder, key string, want any) {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(ReadBody(t, rec), &out), "decode response")
	assert.Equal(t, want, out[key], "unexpected value for %q", key)
}
