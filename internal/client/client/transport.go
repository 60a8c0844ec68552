package client

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/collabry/internal/common"
)

// TokenSource returns the current bearer token, or "" when there is none.
type TokenSource func(ctx context.Context) (string, error)

type authTransport struct {
	base   http.RoundTripper
	tokens TokenSource
}

// NewAuthTransport wraps base so that every request carries the current
// bearer token. The token is read per request, never cached. A request that
// already has an Authorization header is sent as is.
func NewAuthTransport(base http.RoundTripper, tokens TokenSource) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &authTransport{base: base, tokens: tokens}
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(common.AuthorizationHeaderName) != "" || t.tokens == nil {
		return t.base.RoundTrip(req)
	}

	token, err := t.tokens(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, &TokenReadError{Err: err}
	}
	if token == "" {
		return t.base.RoundTrip(req)
	}

	r := req.Clone(req.Context())
	r.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	return t.base.RoundTrip(r)
}
