package chain

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

const (
	// DefaultHTTPTimeout bounds a single backend request.
	DefaultHTTPTimeout = 30 * time.Second

	// MaxResponseBody caps how much of a backend response is read (1 MB).
	MaxResponseBody = 1 << 20
)

// NewHTTPClient returns the HTTP client shared by the REST backends.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: DefaultHTTPTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			Proxy:           http.ProxyFromEnvironment,
		},
	}
}

// GetJSON performs a GET and decodes a JSON body into out. Status and
// transport failures are classified for RetryWithConfig.
func GetJSON(ctx context.Context, client *http.Client, url string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req) //nolint:gosec // G704: URL comes from validated config
	if err != nil {
		return classifyTransport(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBody))
	if err != nil {
		return WrapRetryable(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return StatusError(resp, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func classifyTransport(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return WrapRetryable(fmt.Errorf("sending request: %w", err))
}

// ValidateURL checks that the endpoint URL is an absolute http(s) URL.
func ValidateURL(ep Endpoint) error {
	u, err := url.Parse(ep.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return sweeperr.WithDetails(sweeperr.ErrConfigInvalid, map[string]string{
			"network": ep.Network,
			"url":     ep.URL,
		})
	}
	return nil
}
