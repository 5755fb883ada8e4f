// Package analytics proxies reporting queries to a Matomo instance.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	domainerrors "expat-market.storefront/internal/domain/errors"
	"expat-market.storefront/pkg/logger"
)

var ErrNotConfigured = errors.New("analytics is not configured")

const redacted = "REDACTED"

// MatomoClient signs queries with the server-only auth token.
type MatomoClient struct {
	baseURL    string
	token      string
	siteID     string
	httpClient *http.Client
}

// Result is the analytics answer passed back to the caller as-is.
type Result struct {
	Status      int
	ContentType string
	Body        []byte
}

func NewMatomoClient(baseURL, token, siteID string, timeout time.Duration) *MatomoClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &MatomoClient{
		baseURL:    baseURL,
		token:      token,
		siteID:     siteID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BuildURL merges params with the fixed API parameters. Caller-supplied
// module, format, idSite and token_auth are overridden.
func (m *MatomoClient) BuildURL(params url.Values) (*url.URL, error) {
	if m.baseURL == "" || m.token == "" {
		return nil, ErrNotConfigured
	}

	u, err := url.Parse(m.baseURL + "/index.php")
	if err != nil {
		return nil, fmt.Errorf("invalid matomo url: %w", err)
	}

	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("module", "API")
	q.Set("format", "JSON")
	q.Set("idSite", m.siteID)
	q.Set("token_auth", m.token)
	u.RawQuery = q.Encode()
	return u, nil
}

// Redact returns u as a string with the auth token masked.
func Redact(u *url.URL) string {
	cp := *u
	q := cp.Query()
	if q.Has("token_auth") {
		q.Set("token_auth", redacted)
	}
	cp.RawQuery = q.Encode()
	return cp.String()
}

// Query forwards params to the Matomo reporting API.
func (m *MatomoClient) Query(ctx context.Context, params url.Values) (*Result, error) {
	u, err := m.BuildURL(params)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Forwarding analytics query", zap.String("url", Redact(u)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		// url.Error embeds the full URL, token included
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = Redact(u)
		}
		logger.Warn(ctx, "Analytics query failed", zap.Error(err))
		return nil, domainerrors.Normalize(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, domainerrors.Network(err)
	}

	return &Result{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
