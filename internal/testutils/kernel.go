package testutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Kernel serves requests against an application router in process.
type Kernel struct {
	Router    chi.Router
	Errors    *ErrorRecorder
	Validator *CollectingValidator
}

// NewKernel creates a Kernel whose router is configured by routes.
func NewKernel(routes ...func(r chi.Router)) *Kernel {
	return NewKernelWithLogger(nil, routes...)
}

// NewKernelWithLogger is NewKernel with an explicit logger for handler panics.
func NewKernelWithLogger(log *slog.Logger, routes ...func(r chi.Router)) *Kernel {
	k := &Kernel{
		Router:    chi.NewRouter(),
		Errors:    NewErrorRecorder(log),
		Validator: NewCollectingValidator(nil),
	}
	k.Router.Use(k.Errors.Middleware, k.Validator.Middleware)
	k.Router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, NotFound, nil)
	})
	for _, route := range routes {
		route(k.Router)
	}
	return k
}

// Request sends a request and returns the response. When expectedStatus is
// not zero the status code is asserted; a 204 must have an empty body.
func (k *Kernel) Request(t testing.TB, expectedStatus int, method, uri string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, uri, body)
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	rec := httptest.NewRecorder()
	k.Router.ServeHTTP(rec, req)

	if expectedStatus != 0 {
		k.AssertStatusCode(t, expectedStatus, rec)
	}
	if expectedStatus == http.StatusNoContent {
		assert.Empty(t, rec.Body.String(), "expected empty body for 204 No Content")
	}
	return rec
}

// RequestJSON sends content as JSON and decodes the JSON response. content
// may be nil, a string, a byte slice or a value to encode. An empty response
// body yields nil.
func (k *Kernel) RequestJSON(t testing.TB, expectedStatus int, method, uri string, content any, header http.Header) map[string]any {
	t.Helper()

	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}

	var body io.Reader
	if content != nil {
		switch c := content.(type) {
		case string:
			body = strings.NewReader(c)
		case []byte:
			body = bytes.NewReader(c)
		default:
			encoded, err := json.Marshal(c)
			require.NoError(t, err, "failed to encode request content")
			body = bytes.NewReader(encoded)
		}
		if h.Get("Content-Type") == "" {
			h.Set("Content-Type", "application/json")
		}
	}
	if h.Get("Accept") == "" {
		h.Set("Accept", "application/json")
	}

	rec := k.Request(t, expectedStatus, method, uri, body, h)
	return DecodeJSONResponse(t, rec)
}

// DecodeJSONResponse asserts a JSON response and decodes its body.
func DecodeJSONResponse(t testing.TB, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	raw := rec.Body.Bytes()
	if len(raw) == 0 {
		return nil
	}

	require.True(t, json.Valid(raw), "response is not valid JSON: %s", raw)
	mediaType, _, err := mime.ParseMediaType(rec.Header().Get("Content-Type"))
	require.NoError(t, err, "response has no valid Content-Type")
	require.Equal(t, "application/json", mediaType)

	var data map[string]any
	require.NoError(t, json.Unmarshal(raw, &data), "response is not a JSON object")
	return data
}

// AssertStatusCode asserts the response status. On mismatch the message
// carries the last handler error, the last validation errors or the
// response headers, followed by the response content.
func (k *Kernel) AssertStatusCode(t testing.TB, expected int, rec *httptest.ResponseRecorder) bool {
	t.Helper()
	if rec.Code == expected {
		return true
	}
	return assert.Equal(t, expected, rec.Code, StatusMessage(rec, k.Errors.LastError(), k.Validator.LastErrors()))
}

// AssertStatusCode asserts the response status without kernel diagnostics.
func AssertStatusCode(t testing.TB, expected int, rec *httptest.ResponseRecorder) bool {
	t.Helper()
	if rec.Code == expected {
		return true
	}
	return assert.Equal(t, expected, rec.Code, StatusMessage(rec, nil, nil))
}

// StatusMessage describes a failed response for an assertion message.
func StatusMessage(rec *httptest.ResponseRecorder, lastErr error, validationErrs validator.ValidationErrors) string {
	var b strings.Builder

	switch {
	case lastErr != nil:
		b.WriteString(lastErr.Error())
	case len(validationErrs) > 0:
		b.WriteString("Unexpected validation errors:\n")
		for _, fe := range validationErrs {
			fmt.Fprintf(&b, "+ %s: %s\n", fe.Namespace(), fe.Error())
		}
	default:
		fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", rec.Code, http.StatusText(rec.Code))
		writeHeaders(&b, rec.Header())
		b.WriteString("\r\n")
	}

	b.WriteString("\r\n\r\nContent of response:\r\n\r\n")
	b.WriteString(responseContent(rec.Body.Bytes()))
	return b.String()
}

func writeHeaders(b *strings.Builder, h http.Header) {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(b, "%s: %s\r\n", name, strings.Join(h[name], ", "))
	}
}

// responseContent pretty prints a JSON body, keeping only the class and
// message of reported exceptions. Other bodies are returned as is.
func responseContent(raw []byte) string {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return string(raw)
	}

	if obj, ok := data.(map[string]any); ok {
		switch exc := obj["exception"].(type) {
		case map[string]any:
			obj["exception"] = trimException(exc)
		case []any:
			for i, e := range exc {
				if m, ok := e.(map[string]any); ok {
					exc[i] = trimException(m)
				}
			}
		}
	}

	pretty, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(pretty)
}

func trimException(e map[string]any) map[string]any {
	return map[string]any{"class": e["class"], "message": e["message"]}
}
