package riot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	// Default timeout for validation requests
	defaultValidationTimeout = 10 * time.Second
)

// KeyValidator validates Riot API keys by making a test request
type KeyValidator struct {
	httpClient *http.Client
	endpoints  Endpoints
}

// KeyValidatorOption configures a KeyValidator
type KeyValidatorOption func(*KeyValidator)

// WithTimeout sets a custom timeout for validation requests
func WithTimeout(timeout time.Duration) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.httpClient.Timeout = timeout
	}
}

// NewKeyValidator creates a new KeyValidator with the given options
func NewKeyValidator(endpoints Endpoints, opts ...KeyValidatorOption) *KeyValidator {
	v := &KeyValidator{
		httpClient: &http.Client{
			Timeout: defaultValidationTimeout,
		},
		endpoints: endpoints,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// ValidateKey validates an API key against the platform status endpoint.
// Returns:
//   - (true, nil) if the key is valid
//   - (false, nil) if the key is invalid (401/403)
//   - (false, error) if there was a network/server error (key validity unknown)
func (v *KeyValidator) ValidateKey(ctx context.Context, platform, apiKey string) (bool, error) {
	if apiKey == "" {
		return false, fmt.Errorf("API key cannot be empty")
	}

	u, err := url.Parse(v.endpoints.PlatformStatus(platform))
	if err != nil {
		return false, fmt.Errorf("invalid status url: %w", err)
	}
	q := u.Query()
	q.Set(apiKeyParam, apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil

	case http.StatusUnauthorized, http.StatusForbidden:
		return false, nil

	default:
		// Server error or unexpected response - we can't determine if key is valid
		return false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}
