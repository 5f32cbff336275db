package dogceo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"zepler/pkg/config"
	providertypes "zepler/pkg/provider/types"
)

const (
	serviceName     = "dogceo"
	randomImagePath = "/breeds/image/random"
	maxBodyBytes    = 1 << 20
)

// Client fetches random dog pictures from the dog.ceo API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(cfg config.DogCEOConfig, httpClient *http.Client) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("services.dogceo.base_url is required")
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second}
	}

	return &Client{baseURL: baseURL, httpClient: httpClient}, nil
}

// RandomImageURL returns the URL of one random dog image.
func (c *Client) RandomImageURL(ctx context.Context) (string, error) {
	log := providerLogger().With("operation", "random_image")
	startedAt := time.Now()
	log.Debug("provider request started")

	url, err := c.randomImageURL(ctx)
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", err
	}
	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds())

	return url, nil
}

func (c *Client) randomImageURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+randomImagePath, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", providertypes.NormalizeTransportError(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", providertypes.NewError(serviceName, providertypes.ErrorBadStatus, fmt.Sprintf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", providertypes.NormalizeTransportError(serviceName, err)
	}

	if !gjson.ValidBytes(body) {
		return "", providertypes.NewError(serviceName, providertypes.ErrorMalformedBody, "response is not valid JSON")
	}

	parsed := gjson.ParseBytes(body)
	if status := parsed.Get("status"); status.Exists() && status.String() != "success" {
		return "", providertypes.NewError(serviceName, providertypes.ErrorBadStatus, "status field "+status.String())
	}

	imageURL := strings.TrimSpace(parsed.Get("message").String())
	if !strings.HasPrefix(imageURL, "http://") && !strings.HasPrefix(imageURL, "https://") {
		return "", providertypes.NewError(serviceName, providertypes.ErrorMalformedBody, "message is not an image url")
	}

	return imageURL, nil
}

func providerLogger() *slog.Logger {
	return slog.Default().With("component", "provider.dogceo")
}
