package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/collabry/internal/client/models"
	"github.com/dmitrijs2005/collabry/internal/common"
	"github.com/google/uuid"
)

const maxErrorBody = 64 << 10

// HTTPClient implements Client over the JSON REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// NewHTTPClient returns a client for baseURL whose requests are authenticated
// from tokens. A zero timeout leaves deadlines to the caller's context.
func NewHTTPClient(baseURL string, tokens TokenSource, timeout time.Duration) *HTTPClient {
	return NewHTTPClientWithTransport(baseURL, http.DefaultTransport, tokens, timeout)
}

func NewHTTPClientWithTransport(baseURL string, base http.RoundTripper, tokens TokenSource, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: NewAuthTransport(base, tokens)},
		timeout: timeout,
	}
}

type errorBody struct {
	Message json.RawMessage `json:"message"`
}

func (b errorBody) text() string {
	if len(b.Message) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Message, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(b.Message, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return ""
}

func (c *HTTPClient) do(ctx context.Context, method, path string, header http.Header, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.RequestIDHeaderName, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		var tre *TokenReadError
		if errors.As(err, &tre) {
			return tre
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(raw, &eb)
		return &APIError{Status: resp.StatusCode, Message: eb.text()}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *HTTPClient) SignUp(ctx context.Context, req models.SignUpRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/signup", nil, req, nil)
}

func (c *HTTPClient) CheckEmailAvailable(ctx context.Context, email string) (bool, error) {
	var resp struct {
		Available bool `json:"available"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/email", nil, map[string]string{"email": email}, &resp); err != nil {
		return false, err
	}
	return resp.Available, nil
}

func (c *HTTPClient) ResendVerification(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/resend-otp", nil, map[string]string{"email": email}, nil)
}

func (c *HTTPClient) VerifyEmail(ctx context.Context, email, otp string) error {
	return c.do(ctx, http.MethodPost, "/auth/verify-email", nil, map[string]string{"email": email, "otp": otp}, nil)
}

func (c *HTTPClient) SignIn(ctx context.Context, email, password string) (*models.SignInResult, error) {
	var res models.SignInResult
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/signin", nil, in, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) FetchCurrentUser(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/auth/my", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) GenerateTwoFactor(ctx context.Context) (*models.TwoFactorSecret, error) {
	var s models.TwoFactorSecret
	if err := c.do(ctx, http.MethodPost, "/auth/2fa/generate", nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) TurnOnTwoFactor(ctx context.Context, code string) error {
	in := map[string]string{"twoFactorAuthenticationCode": code}
	return c.do(ctx, http.MethodPost, "/auth/2fa/turn-on", nil, in, nil)
}

func (c *HTTPClient) TurnOffTwoFactor(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/2fa/turn-off", nil, nil, nil)
}

func (c *HTTPClient) AuthenticateTwoFactor(ctx context.Context, code string) (*models.SignInResult, error) {
	var res models.SignInResult
	in := map[string]string{"twoFactorAuthenticationCode": code}
	if err := c.do(ctx, http.MethodPost, "/auth/2fa/authenticate", nil, in, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodPatch, "/users/profile", nil, update, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) UpdateAvatarURL(ctx context.Context, url string) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodPatch, "/users/avatarUrl", nil, map[string]string{"avatarUrl": url}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) IssueRealtimeCredential(ctx context.Context, bearer string) (string, error) {
	if bearer == "" {
		return "", fmt.Errorf("issue realtime credential: %w", ErrUnauthorized)
	}
	h := http.Header{}
	h.Set(common.AuthorizationHeaderName, common.BearerPrefix+bearer)

	var resp struct {
		StreamToken string `json:"streamToken"`
	}
	if err := c.do(ctx, http.MethodPost, "/chat/token", h, nil, &resp); err != nil {
		return "", err
	}
	if resp.StreamToken == "" {
		return "", fmt.Errorf("issue realtime credential: empty credential")
	}
	return resp.StreamToken, nil
}

var _ Client = (*HTTPClient)(nil)
