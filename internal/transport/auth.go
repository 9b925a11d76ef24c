package transport

import (
	"net/http"
	"strings"

	"github.com/agentstation/nightsync/pkg/constants"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request, token string)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request, _ string) {}

// BearerAuth implements Bearer token authentication.
type BearerAuth struct{}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

// QueryAuth sends the token as a query parameter.
type QueryAuth struct {
	Param string
}

// Apply implements the Authenticator interface for QueryAuth.
func (a *QueryAuth) Apply(req *http.Request, token string) {
	if req.URL == nil {
		return
	}
	param := a.Param
	if param == "" {
		param = constants.DefaultAuthParam
	}
	query := req.URL.Query()
	query.Set(param, token)
	req.URL.RawQuery = query.Encode()
}

// AuthForScheme returns the authenticator for a configured scheme name:
// "bearer", "none", or anything else for the query parameter default.
func AuthForScheme(scheme string) Authenticator {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "bearer":
		return &BearerAuth{}
	case "none":
		return &NoAuth{}
	default:
		return &QueryAuth{Param: constants.DefaultAuthParam}
	}
}
