// Package auth resolves which account a connection acts as.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lox/metasino/internal/table"
)

var (
	// ErrInvalidToken indicates the credentials were definitively rejected.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable indicates the auth service is unreachable or unavailable.
	ErrUnavailable = errors.New("auth: unavailable")
)

const requestTimeout = 500 * time.Millisecond

// Validator turns the credentials a client presents into an account.
type Validator interface {
	// Validate returns the account the caller may act as, ErrInvalidToken
	// when the credentials are rejected, or ErrUnavailable when no decision
	// could be made.
	Validate(ctx context.Context, account, token string) (table.AccountID, error)
}

// TrustValidator accepts whatever account the client claims (dev mode).
type TrustValidator struct{}

func (TrustValidator) Validate(_ context.Context, account, _ string) (table.AccountID, error) {
	if account == "" {
		return "", ErrInvalidToken
	}
	return table.AccountID(account), nil
}

// HTTPValidator checks credentials with an external service.
type HTTPValidator struct {
	url         string
	client      *http.Client
	adminSecret string
}

// NewHTTPValidator creates a validator that posts credentials to url.
func NewHTTPValidator(url string, adminSecret string) *HTTPValidator {
	return &HTTPValidator{
		url:         url,
		adminSecret: adminSecret,
		client:      &http.Client{Timeout: requestTimeout},
	}
}

type validateRequest struct {
	Account string `json:"account"`
	Token   string `json:"token"`
}

type validateResponse struct {
	Valid   bool   `json:"valid"`
	Account string `json:"account,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (v *HTTPValidator) Validate(ctx context.Context, account, token string) (table.AccountID, error) {
	if token == "" {
		return "", ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	reqBody, err := json.Marshal(validateRequest{Account: account, Token: token})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.adminSecret != "" {
		req.Header.Set("X-Admin-Secret", v.adminSecret)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", ErrInvalidToken
	default:
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var authResp validateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&authResp); err != nil {
		return "", fmt.Errorf("%w: decode error: %v", ErrUnavailable, err)
	}
	if !authResp.Valid {
		return "", ErrInvalidToken
	}

	// The service may bind the token to a different account than claimed.
	if authResp.Account != "" {
		return table.AccountID(authResp.Account), nil
	}
	if account == "" {
		return "", ErrInvalidToken
	}
	return table.AccountID(account), nil
}
