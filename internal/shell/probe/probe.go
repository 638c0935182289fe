// Package probe implements the HTTP health probe run against a slot.
package probe

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/artpar/ngreen/internal/core/deployment"
)

// DefaultTimeout matches the per-request limit used when none is configured.
const DefaultTimeout = 15 * time.Second

// maxBodyDrain bounds how much of the response body is read before closing.
const maxBodyDrain = 64 * 1024

// HTTPProbe issues a single GET and reports the response status. Redirects
// are not followed: the slot's own status is what counts.
type HTTPProbe struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPProbe creates a probe. Per-check timeouts come from Check.
func NewHTTPProbe(logger *slog.Logger) *HTTPProbe {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPProbe{
		httpClient: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger.With("component", "http_probe"),
	}
}

// Check requests url and returns the three digit status, or
// deployment.StatusUnreachable when no response arrives within timeout or the
// context ends first.
func (p *HTTPProbe) Check(ctx context.Context, url string, timeout time.Duration) deployment.Status {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.logger.Warn("invalid probe url", "url", url, "error", err)
		return deployment.StatusUnreachable
	}
	req.Header.Set("User-Agent", "ngreen-probe")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug("probe got no response", "url", url, "error", err)
		return deployment.StatusUnreachable
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyDrain))

	status := deployment.StatusFromCode(resp.StatusCode)
	p.logger.Debug("probe response", "url", url, "status", string(status))
	return status
}
