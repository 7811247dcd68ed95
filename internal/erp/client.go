package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pricing/internal/obs"
	"github.com/noah-isme/backend-pricing/internal/resilience"
)

// UpstreamError reports a non-200, non-401 response from the ERP.
type UpstreamError struct {
	Entity string
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("erp: query %s returned status %d", e.Entity, e.Status)
}

// Client issues authenticated read queries against the ERP. Every query flows
// through one doAuthenticated path: attach the session credential, send, and
// on 401 refresh the session exactly once before retrying exactly once.
type Client struct {
	BaseURL  string
	Sessions *SessionManager
	HTTP     resilience.HTTPClient
	Logger   zerolog.Logger
}

// QueryRows fetches all rows of an entity collection matching the ODATA-style
// filter and decodes the JSON array body into dst (a pointer to a slice).
func (c *Client) QueryRows(ctx context.Context, entity, filter string, dst any) error {
	resp, err := c.doAuthenticated(ctx, entity, filter)
	if err != nil {
		c.countQuery(entity, "error")
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.countQuery(entity, "upstream_error")
		return &UpstreamError{Entity: entity, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.countQuery(entity, "error")
		return fmt.Errorf("erp: read %s response: %w", entity, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.countQuery(entity, "decode_error")
		return fmt.Errorf("erp: decode %s response: %w", entity, err)
	}
	c.countQuery(entity, "ok")
	return nil
}

func (c *Client) doAuthenticated(ctx context.Context, entity, filter string) (*http.Response, error) {
	token, err := c.Sessions.Session(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, entity, filter, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	_ = resp.Body.Close()

	c.Logger.Debug().Str("entity", entity).Msg("erp_session_expired")
	token, err = c.Sessions.Refresh(ctx, token)
	if err != nil {
		return nil, err
	}
	resp, err = c.send(ctx, entity, filter, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		c.Sessions.Invalidate(token)
		return nil, fmt.Errorf("%w: 401 persisted after relogin for %s", ErrAuthFailed, entity)
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, entity, filter, token string) (*http.Response, error) {
	endpoint := fmt.Sprintf("%s/api/v1/%s", strings.TrimRight(c.BaseURL, "/"), entity)
	if filter != "" {
		endpoint += "?$filter=" + url.QueryEscape(filter)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("erp: build request for %s: %w", entity, err)
	}
	req.Header.Set(SessionHeader, token)
	req.Header.Set("Accept", "application/json")
	return c.HTTP.Do(ctx, req)
}

func (c *Client) countQuery(entity, result string) {
	if obs.ERPRequestsTotal == nil {
		return
	}
	obs.ERPRequestsTotal.WithLabelValues(entity, result).Inc()
}

// EscapeFilterValue escapes single quotes for safe embedding in $filter strings.
func EscapeFilterValue(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}
