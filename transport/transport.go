package transport

import (
	"net/http"
	"strings"
)

// DefaultPublicPaths never receive a bearer credential and never trigger the
// unauthorized hook.
var DefaultPublicPaths = []string{"/api/auth/login", "/api/auth/register"}

// TokenSource yields the current credential.
type TokenSource interface {
	Token() (string, bool)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() (string, bool)

func (f TokenFunc) Token() (string, bool) { return f() }

// Transport attaches "Authorization: Bearer" to requests for protected paths
// and reports 401 responses from them to OnUnauthorized.
type Transport struct {
	Base           http.RoundTripper
	Tokens         TokenSource
	OnUnauthorized func(*http.Request)
	PublicPaths    []string
}

// RoundTrip implements http.RoundTripper. The original request is not
// modified.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	public := t.isPublic(req.URL.Path)

	out := req
	if !public && t.Tokens != nil {
		if tok, ok := t.Tokens.Token(); ok && tok != "" {
			out = req.Clone(req.Context())
			out.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && !public && t.OnUnauthorized != nil {
		t.OnUnauthorized(req)
	}
	return resp, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) isPublic(path string) bool {
	paths := t.PublicPaths
	if paths == nil {
		paths = DefaultPublicPaths
	}
	for _, p := range paths {
		if path == p || strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}
