package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/agrilink/agrilink-backend/pkg/errors"
	"github.com/agrilink/agrilink-backend/pkg/types"
)

const (
	defaultBaseURL             = "https://nominatim.openstreetmap.org"
	responseBodyReadLimit int64 = 1024
	userAgent                  = "agrilink-backend"
)

// Client wraps a Nominatim-compatible forward geocoding API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured geocoder base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithAPIKey attaches an API key for hosted Nominatim providers.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(apiKey)
	}
}

// NewClient builds the geocoding client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client
}

// Location is the geocoder's resolution of an address: coordinates plus the
// administrative names the provider normalized along the way.
type Location struct {
	Lat      float64
	Lng      float64
	District string
	City     string
	State    string
}

// Resolve geocodes a structured address into coordinates. Addresses that
// already carry coordinates are returned without a network call.
func (c *Client) Resolve(ctx context.Context, addr types.Address) (Location, error) {
	if c == nil {
		return Location{}, pkgerrors.New(pkgerrors.CodeGeocoding, "geocode client not configured")
	}
	if addr.Lat != 0 || addr.Lng != 0 {
		return Location{Lat: addr.Lat, Lng: addr.Lng}, nil
	}

	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("limit", "1")
	query.Set("addressdetails", "1")
	if street := strings.TrimSpace(addr.Line1); street != "" {
		query.Set("street", street)
	}
	if city := strings.TrimSpace(addr.City); city != "" {
		query.Set("city", city)
	}
	if state := strings.TrimSpace(addr.State); state != "" {
		query.Set("state", state)
	}
	if postal := strings.TrimSpace(addr.PostalCode); postal != "" {
		query.Set("postalcode", postal)
	}
	if country := strings.TrimSpace(addr.Country); country != "" {
		query.Set("country", country)
	}
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}

	endpoint := fmt.Sprintf("%s/search?%s", strings.TrimRight(c.baseURL, "/"), query.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Location{}, pkgerrors.Wrap(pkgerrors.CodeGeocoding, err, "build geocode request")
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Location{}, pkgerrors.Wrap(pkgerrors.CodeGeocoding, err, "execute geocode request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return Location{}, pkgerrors.Wrap(pkgerrors.CodeGeocoding, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "geocode request failed")
	}

	var apiResp []struct {
		Lat     string `json:"lat"`
		Lon     string `json:"lon"`
		Address struct {
			City          string `json:"city"`
			Town          string `json:"town"`
			Village       string `json:"village"`
			StateDistrict string `json:"state_district"`
			County        string `json:"county"`
			State         string `json:"state"`
		} `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return Location{}, pkgerrors.Wrap(pkgerrors.CodeGeocoding, err, "decode geocode response")
	}
	if len(apiResp) == 0 {
		return Location{}, pkgerrors.New(pkgerrors.CodeGeocoding, "no geocode match for address")
	}

	lat, err := strconv.ParseFloat(apiResp[0].Lat, 64)
	if err != nil {
		return Location{}, pkgerrors.Wrap(pkgerrors.CodeGeocoding, err, "parse geocode latitude")
	}
	lng, err := strconv.ParseFloat(apiResp[0].Lon, 64)
	if err != nil {
		return Location{}, pkgerrors.Wrap(pkgerrors.CodeGeocoding, err, "parse geocode longitude")
	}

	detail := apiResp[0].Address
	return Location{
		Lat:      lat,
		Lng:      lng,
		District: firstNonEmpty(detail.StateDistrict, detail.County),
		City:     firstNonEmpty(detail.City, detail.Town, detail.Village),
		State:    strings.TrimSpace(detail.State),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
