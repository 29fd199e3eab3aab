package authx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrUnauthorized = errors.New("unauthorized")

type Claims struct {
	UserID int64
	Sub    string
	Email  string
	Roles  []string
}

func (c Claims) HasRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range c.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Verifier is the auth capability: an opaque boolean+claims oracle.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// Client verifies tokens against the auth service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: timeout}}
}

func (c *Client) Verify(ctx context.Context, token string) (Claims, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return Claims{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return Claims{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		// fail closed: an unreachable verifier authenticates nobody
		return Claims{}, fmt.Errorf("auth service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Claims{}, ErrUnauthorized
	}

	var payload struct {
		Valid bool    `json:"valid"`
		User  rawUser `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Claims{}, fmt.Errorf("auth service: decode: %w", err)
	}
	if !payload.Valid {
		return Claims{}, ErrUnauthorized
	}
	return Claims{
		UserID: payload.User.ID,
		Sub:    payload.User.Sub,
		Email:  payload.User.Email,
		Roles:  NormalizeRoles(payload.User.Roles, payload.User.RealmAccess.Roles),
	}, nil
}

// rawUser accepts both token shapes the identity provider has emitted:
// a flat roles claim and the nested Keycloak realm_access form.
type rawUser struct {
	ID          int64    `json:"id"`
	Sub         string   `json:"sub"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// NormalizeRoles is the single point deciding which role shape wins: the
// flat claim is authoritative when present (even if empty), the nested
// realm_access form is the fallback for older tokens.
func NormalizeRoles(flat, nested []string) []string {
	if flat != nil {
		return flat
	}
	return nested
}
