// Package opencage is a small OpenCage forward-geocoding client used as a fallback when an
// address cannot be matched against the local reference set.
package opencage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"device-geocoder/internal/metrics"
	"device-geocoder/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.opencagedata.com/geocode/v1/json"
	// DefaultPerMinute is the free-tier request budget.
	DefaultPerMinute = 2500
)

// Client geocodes free-text addresses. Results, including misses, are cached for the
// lifetime of the client.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
	limiter *rate.Limiter

	mu    sync.Mutex
	cache map[string]cached
}

type cached struct {
	point models.Point
	found bool
}

type response struct {
	Status struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
	Results []struct {
		Formatted string `json:"formatted"`
		Geometry  struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"geometry"`
	} `json:"results"`
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another endpoint. Empty keeps the default.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimit allows perMinute requests per minute. Non-positive disables limiting.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

// New returns a Client authenticating with key.
func New(key string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		key:     key,
		http:    &http.Client{Timeout: 10 * time.Second},
		cache:   make(map[string]cached),
	}
	WithRateLimit(DefaultPerMinute)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode resolves a comma separated address, most specific part first. When a query finds
// nothing, the leading part is dropped and the rest retried until no parts remain.
func (c *Client) Geocode(ctx context.Context, address string) (models.Point, bool, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return models.Point{}, false, nil
	}

	c.mu.Lock()
	hit, ok := c.cache[address]
	c.mu.Unlock()
	if ok {
		log.Debug().Str("address", address).Bool("found", hit.found).Msg("opencage cache hit")
		return hit.point, hit.found, nil
	}

	parts := splitParts(address)
	for len(parts) > 0 {
		q := strings.Join(parts, ", ")
		p, found, err := c.query(ctx, q)
		if err != nil {
			return models.Point{}, false, err
		}
		if found {
			log.Debug().Str("address", address).Str("query", q).Float64("lat", p.Latitude).Float64("lon", p.Longitude).Msg("opencage resolved")
			c.store(address, cached{point: p, found: true})
			return p, true, nil
		}
		log.Debug().Str("query", q).Msg("opencage no result, trying parent level")
		parts = parts[1:]
	}

	c.store(address, cached{})
	return models.Point{}, false, nil
}

func (c *Client) store(address string, v cached) {
	c.mu.Lock()
	c.cache[address] = v
	c.mu.Unlock()
}

func (c *Client) query(ctx context.Context, q string) (models.Point, bool, error) {
	if c.key == "" {
		return models.Point{}, false, errors.New("opencage: missing api key")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return models.Point{}, false, fmt.Errorf("opencage: rate limiter: %w", err)
	}

	v := url.Values{}
	v.Set("q", q)
	v.Set("key", c.key)
	v.Set("limit", "1")
	v.Set("no_annotations", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+v.Encode(), nil)
	if err != nil {
		return models.Point{}, false, fmt.Errorf("opencage: failed to build request: %w", err)
	}

	t0 := time.Now()
	resp, err := c.http.Do(req)
	metrics.ExternalDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if err != nil {
		metrics.ExternalRequestsTotal.WithLabelValues("error").Inc()
		return models.Point{}, false, fmt.Errorf("opencage: request failed: %w", err)
	}
	defer resp.Body.Close()

	var r response
	decodeErr := json.NewDecoder(resp.Body).Decode(&r)
	if resp.StatusCode != http.StatusOK {
		metrics.ExternalRequestsTotal.WithLabelValues("error").Inc()
		return models.Point{}, false, fmt.Errorf("opencage: status %d: %s", resp.StatusCode, r.Status.Message)
	}
	if decodeErr != nil {
		metrics.ExternalRequestsTotal.WithLabelValues("error").Inc()
		return models.Point{}, false, fmt.Errorf("opencage: failed to decode response: %w", decodeErr)
	}
	if len(r.Results) == 0 {
		metrics.ExternalRequestsTotal.WithLabelValues("miss").Inc()
		return models.Point{}, false, nil
	}

	metrics.ExternalRequestsTotal.WithLabelValues("hit").Inc()
	g := r.Results[0].Geometry
	return models.Point{Latitude: g.Lat, Longitude: g.Lng}, true, nil
}

func splitParts(address string) []string {
	var parts []string
	for _, p := range strings.Split(address, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
