// Package identity verifies externally issued access tokens and maps them to local users.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrInvalidAccessToken means the provider rejected the token or returned no subject.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrProviderUnavailable means the provider could not give an answer.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrUserInactive means the token is valid but no local account is linked to it.
	ErrUserInactive = errors.New("user not found or inactive")
)

// Identity is what the provider asserts about a bearer.
type Identity struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata"`
}

// Provider verifies a bearer access token.
type Provider interface {
	Verify(ctx context.Context, accessToken string) (Identity, error)
}

// SupabaseProvider calls a Supabase-style GET /auth/v1/user endpoint.
type SupabaseProvider struct {
	url    string
	apiKey string
	client *http.Client
}

// NewSupabaseProvider builds a provider for verifyURL. A nil client gets a
// default one bounded by timeout.
func NewSupabaseProvider(verifyURL, apiKey string, client *http.Client, timeout time.Duration) *SupabaseProvider {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &SupabaseProvider{url: verifyURL, apiKey: apiKey, client: client}
}

// Verify asks the provider who owns accessToken.
func (p *SupabaseProvider) Verify(ctx context.Context, accessToken string) (Identity, error) {
	if accessToken == "" {
		return Identity{}, ErrInvalidAccessToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Identity{}, ErrInvalidAccessToken
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Identity{}, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var id Identity
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&id); err != nil {
		return Identity{}, fmt.Errorf("%w: decode: %v", ErrProviderUnavailable, err)
	}
	if id.ID == "" {
		return Identity{}, ErrInvalidAccessToken
	}
	if id.Metadata == nil {
		id.Metadata = map[string]any{}
	}
	return id, nil
}
