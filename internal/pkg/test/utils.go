package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

// UserHeader is the caller identity header set by the auth proxy
const UserHeader = "x-user-id"

// Invoke makes a request call, the body is drained on cleanup
func Invoke(t *testing.T, cl *http.Client, r *http.Request) *http.Response {
	t.Helper()
	resp, err := cl.Do(r)
	require.Nil(t, err, "not nil error = %v", err)
	t.Cleanup(func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	})
	return resp
}

// CheckCode fails with the response body if the code is unexpected
func CheckCode(t *testing.T, resp *http.Response, expected int) *http.Response {
	t.Helper()
	if resp.StatusCode != expected {
		b, _ := io.ReadAll(resp.Body)
		require.Equal(t, expected, resp.StatusCode, string(b))
	}
	return resp
}

// Decode decodes response body to json type
func Decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var res T
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

// JSON marshals v, strings and byte slices are passed as is
func JSON(t *testing.T, v any) io.Reader {
	t.Helper()
	switch tv := v.(type) {
	case string:
		return bytes.NewBufferString(tv)
	case []byte:
		return bytes.NewBuffer(tv)
	}
	b, err := json.Marshal(v)
	require.Nil(t, err)
	return bytes.NewBuffer(b)
}

// AsUser sets the caller, empty user leaves the request anonymous
func AsUser(req *http.Request, user string) *http.Request {
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	return req
}

// NewJSONRequest prepares an echo test request, nil body sends no content type
func NewJSONRequest(t *testing.T, method, path string, body any, user string) *http.Request {
	t.Helper()
	if body == nil || body == "" {
		return AsUser(httptest.NewRequest(method, path, nil), user)
	}
	req := httptest.NewRequest(method, path, JSON(t, body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return AsUser(req, user)
}

func Ctx(t *testing.T) context.Context {
	t.Helper()
	ctx, cf := context.WithTimeout(context.Background(), time.Second*20)
	t.Cleanup(func() { cf() })
	return ctx
}

func Code(t *testing.T, tEcho *echo.Echo, req *http.Request, code int) *httptest.ResponseRecorder {
	t.Helper()
	tResp := httptest.NewRecorder()
	tEcho.ServeHTTP(tResp, req)
	require.Equal(t, code, tResp.Code)
	return tResp
}

func RStr(t *testing.T, r io.Reader) string {
	t.Helper()
	var b bytes.Buffer
	_, err := b.ReadFrom(r)
	require.Nil(t, err)
	return b.String()
}
