// Package auth verifies client bearer tokens against Supabase Auth.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrUnauthenticated indicates a missing, malformed, or rejected token.
var ErrUnauthenticated = errors.New("unauthenticated")

// User is the identity attached to an authenticated session.
type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata"`
}

// Verifier resolves a bearer token to a user identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (User, error)
}

// SupabaseVerifier validates tokens against the Supabase Auth user endpoint.
type SupabaseVerifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSupabaseVerifier(baseURL, apiKey string) *SupabaseVerifier {
	return &SupabaseVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify calls GET /auth/v1/user with the client's token. A 401 or 403
// response maps to ErrUnauthenticated; other failures are reported as
// transport errors so callers can distinguish "bad token" from "auth
// service unreachable".
func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return User{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return User{}, fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return User{}, fmt.Errorf("%w: token rejected", ErrUnauthenticated)
	default:
		return User{}, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return User{}, fmt.Errorf("decode auth response: %w", err)
	}
	if user.ID == "" {
		return User{}, fmt.Errorf("%w: response missing user id", ErrUnauthenticated)
	}
	return user, nil
}
