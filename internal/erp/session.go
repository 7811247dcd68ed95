package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pricing/internal/obs"
)

// SessionHeader carries the ERP session credential on every authenticated call.
const SessionHeader = "X-Monitor-SessionId"

// ErrAuthFailed is returned when login fails or a 401 persists after one retry.
var ErrAuthFailed = errors.New("erp: authentication failed")

// Credentials holds the ERP login parameters supplied through configuration.
type Credentials struct {
	Username      string
	Password      string
	CompanyNumber string
}

// SessionManager owns the process-wide ERP session credential. The ERP exposes
// no token TTL, so expiry is only ever discovered when a call comes back 401;
// callers then ask for a refresh and retry once.
type SessionManager struct {
	BaseURL     string
	Credentials Credentials
	HTTP        *http.Client
	Logger      zerolog.Logger

	mu    sync.Mutex
	token string
}

// Session returns the cached credential, logging in first when none exists.
func (m *SessionManager) Session(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" {
		return m.token, nil
	}
	return m.loginLocked(ctx)
}

// Refresh replaces a credential observed as expired. When several callers hit
// a 401 concurrently only the first one triggers a login; the rest pick up the
// fresh credential installed while they waited on the lock.
func (m *SessionManager) Refresh(ctx context.Context, stale string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" && m.token != stale {
		return m.token, nil
	}
	m.token = ""
	return m.loginLocked(ctx)
}

// Invalidate drops the cached credential if it still matches token. A newer
// credential installed by a concurrent login is left in place.
func (m *SessionManager) Invalidate(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == token {
		m.token = ""
	}
}

func (m *SessionManager) loginLocked(ctx context.Context) (string, error) {
	token, err := m.login(ctx)
	if err != nil {
		if obs.ERPLoginTotal != nil {
			obs.ERPLoginTotal.WithLabelValues("error").Inc()
		}
		return "", err
	}
	if obs.ERPLoginTotal != nil {
		obs.ERPLoginTotal.WithLabelValues("ok").Inc()
	}
	m.token = token
	return token, nil
}

// login submits the configured credentials and extracts the session id from
// the response header, falling back to the body. Header wins when both exist.
func (m *SessionManager) login(ctx context.Context) (string, error) {
	payload := map[string]any{
		"Username":      m.Credentials.Username,
		"Password":      m.Credentials.Password,
		"CompanyNumber": m.Credentials.CompanyNumber,
		"ForceRelogin":  true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("erp: marshal login payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("erp: build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := m.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: login: %v", ErrAuthFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.Logger.Warn().Int("status", resp.StatusCode).Msg("erp_login_rejected")
		return "", fmt.Errorf("%w: login returned %s", ErrAuthFailed, resp.Status)
	}

	if token := strings.TrimSpace(resp.Header.Get(SessionHeader)); token != "" {
		return token, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read login response: %v", ErrAuthFailed, err)
	}
	var parsed struct {
		SessionID string `json:"SessionId"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil {
		if token := strings.TrimSpace(parsed.SessionID); token != "" {
			return token, nil
		}
	}
	return "", fmt.Errorf("%w: no session id in login response", ErrAuthFailed)
}
