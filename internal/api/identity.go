package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"scorekeeper/internal/config"
)

// Identity is what the external auth collaborator resolves a credential to.
// The core trusts it; the only authorization it re-checks itself is match
// ownership.
type Identity struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IdentityClient verifies bearer tokens against the external identity
// service. It is only constructed when AUTH_SERVICE_URL is configured;
// otherwise the middleware trusts gateway-injected headers instead.
type IdentityClient struct {
	baseURL      string
	serviceToken string
	client       *fasthttp.Client
}

func NewIdentityClient(cfg *config.Config) *IdentityClient {
	if cfg.AuthServiceURL == "" {
		return nil
	}
	return &IdentityClient{
		baseURL:      cfg.AuthServiceURL,
		serviceToken: cfg.AuthServiceToken,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

func (c *IdentityClient) Verify(ctx context.Context, token string) (*Identity, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/validate", c.baseURL))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", "Bearer "+token)
	if c.serviceToken != "" {
		req.Header.Set("X-Service-Token", c.serviceToken)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("identity service request failed: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("identity service returned status %d", resp.StatusCode())
	}

	var identity Identity
	if err := json.Unmarshal(resp.Body(), &identity); err != nil {
		return nil, fmt.Errorf("failed to decode identity response: %w", err)
	}
	if identity.UserID == "" {
		return nil, fmt.Errorf("identity service returned empty user id")
	}

	return &identity, nil
}
