package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"omnigest/internal/platform/config"
	derrors "omnigest/pkg/domain-errors"
	"omnigest/pkg/platform/circuit"
)

// tokenExpiryBuffer renews the session token this long before it actually
// expires so in-flight requests never carry a stale bearer.
const tokenExpiryBuffer = 5 * time.Minute

// defaultTokenTTL applies when the gateway's token carries no readable expiry.
const defaultTokenTTL = 55 * time.Minute

// GatewayClient talks to the external identity gateway. It holds a cached
// session token obtained via the client-credentials flow and a circuit
// breaker so a dead gateway degrades lookups instead of stalling batches.
type GatewayClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	breaker      *circuit.Breaker
	logger       *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewGatewayClient(cfg config.GatewayConfig, logger *slog.Logger) *GatewayClient {
	return &GatewayClient{
		baseURL:      cfg.URL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		breaker:      circuit.New("identity-gateway"),
		logger:       logger,
	}
}

type sessionRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type sessionResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}

type lookupRequest struct {
	IdentityHint string `json:"identityHint"`
}

type lookupResponse struct {
	IdentityID      string `json:"identityId"`
	DiscoveryStatus string `json:"discoveryStatus"`
}

// Lookup asks the gateway to resolve an identity hint. Implements Lookup.
func (c *GatewayClient) Lookup(ctx context.Context, hint string) (string, error) {
	if c.breaker.IsOpen() {
		return "", derrors.New(derrors.CodeUnavailable, "identity gateway circuit open")
	}

	token, err := c.sessionToken(ctx)
	if err != nil {
		c.recordFailure()
		return "", err
	}

	body, err := json.Marshal(lookupRequest{IdentityHint: hint})
	if err != nil {
		return "", derrors.Wrap(err, derrors.CodeInternal, "encode lookup request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/identity/resolve", bytes.NewReader(body))
	if err != nil {
		return "", derrors.Wrap(err, derrors.CodeInternal, "build lookup request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure()
		return "", derrors.Wrap(err, derrors.CodeUnavailable, "identity gateway unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.recordSuccess()
		return "", nil
	case resp.StatusCode != http.StatusOK:
		c.recordFailure()
		return "", derrors.New(derrors.CodeUnavailable, fmt.Sprintf("identity gateway returned %d", resp.StatusCode))
	}

	var out lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		c.recordFailure()
		return "", derrors.Wrap(err, derrors.CodeInternal, "decode lookup response")
	}
	c.recordSuccess()
	return out.IdentityID, nil
}

// sessionToken returns a valid bearer token, reusing the cached one until it
// nears expiry.
func (c *GatewayClient) sessionToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpiryBuffer)) {
		return c.token, nil
	}

	body, err := json.Marshal(sessionRequest{ClientID: c.clientID, ClientSecret: c.clientSecret})
	if err != nil {
		return "", derrors.Wrap(err, derrors.CodeInternal, "encode session request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v0.5/sessions", bytes.NewReader(body))
	if err != nil {
		return "", derrors.Wrap(err, derrors.CodeInternal, "build session request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", derrors.Wrap(err, derrors.CodeUnavailable, "identity gateway session unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", derrors.New(derrors.CodeUnavailable, fmt.Sprintf("session endpoint returned %d", resp.StatusCode))
	}

	var session sessionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&session); err != nil {
		return "", derrors.Wrap(err, derrors.CodeInternal, "decode session response")
	}
	if session.AccessToken == "" {
		return "", derrors.New(derrors.CodeUnavailable, "session response missing access token")
	}

	c.token = session.AccessToken
	c.tokenExpiry = tokenExpiry(session, time.Now())
	c.logger.Info("gateway session token refreshed", "expires", c.tokenExpiry)
	return c.token, nil
}

// tokenExpiry prefers the JWT exp claim, then the advertised expiresIn, then
// a conservative default. The token is never validated here; the gateway is
// the issuer and we only need the lifetime.
func tokenExpiry(session sessionResponse, now time.Time) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(session.AccessToken, &claims); err == nil {
		if claims.ExpiresAt != nil {
			return claims.ExpiresAt.Time
		}
	}
	if session.ExpiresIn > 0 {
		return now.Add(time.Duration(session.ExpiresIn) * time.Second)
	}
	return now.Add(defaultTokenTTL)
}

func (c *GatewayClient) recordFailure() {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.Warn("identity gateway circuit opened", "breaker", c.breaker.Name())
	}
}

func (c *GatewayClient) recordSuccess() {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("identity gateway circuit closed", "breaker", c.breaker.Name())
	}
}
