package yelp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"zepler/pkg/config"
	providertypes "zepler/pkg/provider/types"
)

const (
	serviceName  = "yelp"
	searchPath   = "/businesses/search"
	maxBodyBytes = 4 << 20
)

// Client searches Yelp Fusion for open, well-rated restaurants near a fixed spot.
type Client struct {
	cfg        config.YelpConfig
	baseURL    string
	httpClient *http.Client
}

func New(cfg config.YelpConfig, httpClient *http.Client) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("services.yelp.base_url is required")
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second}
	}

	return &Client{cfg: cfg, baseURL: baseURL, httpClient: httpClient}, nil
}

// Search returns one page of businesses sorted by rating.
func (c *Client) Search(ctx context.Context, offset int, limit int) ([]providertypes.Listing, error) {
	log := providerLogger().With("operation", "search", "offset", offset, "limit", limit)
	startedAt := time.Now()

	token := strings.TrimSpace(c.cfg.Token)
	if token == "" {
		return nil, providertypes.NewError(serviceName, providertypes.ErrorMissingCredentials, "YELP_TOKEN is not set")
	}

	log.Debug("provider request started")
	listings, err := c.search(ctx, token, offset, limit)
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return nil, err
	}
	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "results", len(listings))

	return listings, nil
}

func (c *Client) search(ctx context.Context, token string, offset int, limit int) ([]providertypes.Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(offset, limit), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providertypes.NormalizeTransportError(serviceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, providertypes.NormalizeTransportError(serviceName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := fmt.Sprintf("status %d", resp.StatusCode)
		if code := gjson.GetBytes(body, "error.code"); code.Exists() {
			detail += " " + code.String()
		}
		return nil, providertypes.NewError(serviceName, providertypes.ErrorBadStatus, detail)
	}

	return parseBusinesses(body)
}

func (c *Client) searchURL(offset int, limit int) string {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(c.cfg.Latitude, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(c.cfg.Longitude, 'f', -1, 64))
	query.Set("radius", strconv.Itoa(c.cfg.RadiusMeters))
	query.Set("open_now", "true")
	if price := strings.TrimSpace(c.cfg.Price); price != "" {
		query.Set("price", price)
	}
	if categories := strings.TrimSpace(c.cfg.Categories); categories != "" {
		query.Set("categories", categories)
	}
	query.Set("sort_by", "rating")
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	return c.baseURL + searchPath + "?" + query.Encode()
}

// parseBusinesses extracts name and rating from a search response body.
func parseBusinesses(body []byte) ([]providertypes.Listing, error) {
	if !gjson.ValidBytes(body) {
		return nil, providertypes.NewError(serviceName, providertypes.ErrorMalformedBody, "response is not valid JSON")
	}

	businesses := gjson.GetBytes(body, "businesses")
	if !businesses.IsArray() {
		return nil, providertypes.NewError(serviceName, providertypes.ErrorMalformedBody, "businesses is not a list")
	}

	listings := make([]providertypes.Listing, 0, len(businesses.Array()))
	for _, business := range businesses.Array() {
		name := strings.TrimSpace(business.Get("name").String())
		rating := business.Get("rating")
		if name == "" || rating.Type != gjson.Number {
			continue
		}
		listings = append(listings, providertypes.Listing{Name: name, Rating: rating.Float()})
	}

	return listings, nil
}

func providerLogger() *slog.Logger {
	return slog.Default().With("component", "provider.yelp")
}
