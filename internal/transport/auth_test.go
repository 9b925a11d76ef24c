package transport

import (
	"net/http"
	"net/url"
	"testing"
)

// TestNoAuth tests that NoAuth applies no authentication.
func TestNoAuth(t *testing.T) {
	auth := &NoAuth{}
	req := &http.Request{Header: make(http.Header), URL: &url.URL{}}

	auth.Apply(req, "secret")

	if len(req.Header) != 0 {
		t.Errorf("Expected no headers, got %d", len(req.Header))
	}
	if req.URL.RawQuery != "" {
		t.Errorf("Expected no query, got %q", req.URL.RawQuery)
	}
}

// TestBearerAuth tests Bearer token authentication.
func TestBearerAuth(t *testing.T) {
	req := &http.Request{Header: make(http.Header)}
	(&BearerAuth{}).Apply(req, "secret")

	if got := req.Header.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Expected Authorization header 'Bearer secret', got '%s'", got)
	}
}

// TestQueryAuth tests the auth token query parameter, keeping existing parameters.
func TestQueryAuth(t *testing.T) {
	u, _ := url.Parse("https://example.com/api/v1/users/alice/goals/g/datapoints.json?page=2")
	req := &http.Request{Header: make(http.Header), URL: u}

	(&QueryAuth{}).Apply(req, "secret")

	q := req.URL.Query()
	if q.Get("auth_token") != "secret" {
		t.Errorf("Expected auth_token=secret, got %q", q.Get("auth_token"))
	}
	if q.Get("page") != "2" {
		t.Errorf("Expected page=2 to be preserved, got %q", q.Get("page"))
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("Should not have Authorization header")
	}
}

// TestQueryAuthNilURL tests that a request without URL is left alone.
func TestQueryAuthNilURL(t *testing.T) {
	req := &http.Request{Header: make(http.Header)}
	(&QueryAuth{Param: "key"}).Apply(req, "secret")
}

func TestAuthForScheme(t *testing.T) {
	tests := []struct {
		scheme string
		want   string
	}{
		{"bearer", "*transport.BearerAuth"},
		{"Bearer ", "*transport.BearerAuth"},
		{"none", "*transport.NoAuth"},
		{"", "*transport.QueryAuth"},
		{"query", "*transport.QueryAuth"},
	}
	for _, tt := range tests {
		got := typeName(AuthForScheme(tt.scheme))
		if got != tt.want {
			t.Errorf("AuthForScheme(%q) = %s, want %s", tt.scheme, got, tt.want)
		}
	}
}

func typeName(a Authenticator) string {
	switch a.(type) {
	case *BearerAuth:
		return "*transport.BearerAuth"
	case *NoAuth:
		return "*transport.NoAuth"
	case *QueryAuth:
		return "*transport.QueryAuth"
	}
	return "unknown"
}
