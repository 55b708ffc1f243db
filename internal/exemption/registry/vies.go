package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultVIESBaseURL is the public EU VIES REST endpoint.
const DefaultVIESBaseURL = "https://ec.europa.eu/taxation_customs/vies/rest-api"

const viesProviderID = "vies"

// viesResponse is the subset of the VIES check response we rely on.
type viesResponse struct {
	IsValid   bool   `json:"isValid"`
	UserError string `json:"userError"`
}

// VIESClient queries the VIES REST API for a single identifier.
type VIESClient struct {
	baseURL    string
	httpClient *http.Client
}

// VIESOption configures a VIESClient.
type VIESOption func(*VIESClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) VIESOption {
	return func(v *VIESClient) {
		if c != nil {
			v.httpClient = c
		}
	}
}

// NewVIESClient creates a VIES client. timeout bounds each HTTP round trip;
// callers should still pass a context deadline.
func NewVIESClient(baseURL string, timeout time.Duration, opts ...VIESOption) *VIESClient {
	if baseURL == "" {
		baseURL = DefaultVIESBaseURL
	}
	c := &VIESClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup implements Checker.
func (c *VIESClient) Lookup(ctx context.Context, countryCode, number string) (Status, error) {
	endpoint := fmt.Sprintf("%s/ms/%s/vat/%s", c.baseURL, url.PathEscape(countryCode), url.PathEscape(number))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return StatusUnknown, NewProviderError(ErrorInternal, viesProviderID, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return StatusUnknown, NewProviderError(ErrorTimeout, viesProviderID, "request timed out", err)
		}
		return StatusUnknown, NewProviderError(ErrorProviderOutage, viesProviderID, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return StatusUnknown, NewProviderError(ErrorRateLimited, viesProviderID, "rate limited", nil)
	case resp.StatusCode >= 500:
		return StatusUnknown, NewProviderError(ErrorProviderOutage, viesProviderID, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return StatusUnknown, NewProviderError(ErrorBadData, viesProviderID, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var body viesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return StatusUnknown, NewProviderError(ErrorBadData, viesProviderID, "decode response", err)
	}
	return statusFromVIES(body)
}

// statusFromVIES maps a VIES answer. Only VALID/INVALID are business answers;
// every other userError describes member-state infrastructure.
func statusFromVIES(body viesResponse) (Status, error) {
	switch body.UserError {
	case "VALID":
		return StatusRegistered, nil
	case "INVALID", "INVALID_INPUT":
		return StatusNotRegistered, nil
	case "":
		if body.IsValid {
			return StatusRegistered, nil
		}
		return StatusNotRegistered, nil
	case "MS_MAX_CONCURRENT_REQ", "GLOBAL_MAX_CONCURRENT_REQ", "GLOBAL_MAX_CONCURRENT_REQ_TIME", "MS_MAX_CONCURRENT_REQ_TIME":
		return StatusUnknown, NewProviderError(ErrorRateLimited, viesProviderID, body.UserError, nil)
	case "TIMEOUT":
		return StatusUnknown, NewProviderError(ErrorTimeout, viesProviderID, body.UserError, nil)
	default:
		// MS_UNAVAILABLE, SERVICE_UNAVAILABLE and anything new
		return StatusUnknown, NewProviderError(ErrorProviderOutage, viesProviderID, body.UserError, nil)
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
