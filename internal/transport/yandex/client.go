// Package yandex is the geocoder and static map client.
package yandex

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

	"go.uber.org/zap"

	"github.com/kailas-cloud/docfinder/internal/domain"
	"github.com/kailas-cloud/docfinder/internal/domain/geo"
	"github.com/kailas-cloud/docfinder/internal/metrics"
)

const maxMapBytes = 2 << 20

// Config holds the geo client settings.
type Config struct {
	APIKey      string
	GeocodeURL  string
	StaticURL   string
	MapsBaseURL string
	Timeout     time.Duration
	MapWidth    int
	MapHeight   int
	MapZoom     int
	Logger      *zap.Logger
}

// Client calls the Yandex geocoder and static maps APIs.
type Client struct {
	http        *http.Client
	apiKey      string
	geocodeURL  string
	staticURL   string
	mapsBaseURL string
	size        string
	zoom        string
	logger      *zap.Logger
}

// NewClient creates a geo client.
func NewClient(cfg *Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:        &http.Client{Timeout: cfg.Timeout},
		apiKey:      cfg.APIKey,
		geocodeURL:  cfg.GeocodeURL,
		staticURL:   cfg.StaticURL,
		mapsBaseURL: cfg.MapsBaseURL,
		size:        strconv.Itoa(cfg.MapWidth) + "," + strconv.Itoa(cfg.MapHeight),
		zoom:        strconv.Itoa(cfg.MapZoom),
		logger:      logger,
	}
}

type geocodeResponse struct {
	Response struct {
		GeoObjectCollection struct {
			FeatureMember []struct {
				GeoObject struct {
					Point struct {
						Pos string `json:"pos"`
					} `json:"Point"`
				} `json:"GeoObject"`
			} `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

// Geocode resolves an address to coordinates. It never returns an error directly:
// failures are carried by the result and wrap domain.ErrGeocode.
func (c *Client) Geocode(ctx context.Context, address string) geo.Result {
	p, err := c.geocode(ctx, address)
	if err != nil {
		metrics.GeoRequestsTotal.WithLabelValues("geocode", "error").Inc()
		return geo.Failed(err)
	}
	metrics.GeoRequestsTotal.WithLabelValues("geocode", "success").Inc()
	return geo.Found(p)
}

func (c *Client) geocode(ctx context.Context, address string) (geo.Point, error) {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("geocode", address)
	q.Set("format", "json")
	q.Set("results", "1")

	body, err := c.get(ctx, c.geocodeURL, q, 1<<20)
	if err != nil {
		return geo.Point{}, fmt.Errorf("%w: %w", domain.ErrGeocode, err)
	}

	var resp geocodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return geo.Point{}, fmt.Errorf("%w: decode response: %w", domain.ErrGeocode, err)
	}
	members := resp.Response.GeoObjectCollection.FeatureMember
	if len(members) == 0 {
		return geo.Point{}, fmt.Errorf("%w: no results for %q", domain.ErrGeocode, address)
	}
	return geo.ParsePos(members[0].GeoObject.Point.Pos)
}

// StaticMap returns a PNG map centred on p with a red marker.
func (c *Client) StaticMap(ctx context.Context, p geo.Point) ([]byte, error) {
	q := url.Values{}
	q.Set("ll", p.String())
	q.Set("size", c.size)
	q.Set("z", c.zoom)
	q.Set("l", "map")
	q.Set("pt", p.String()+",pm2rdm")

	body, err := c.get(ctx, c.staticURL, q, maxMapBytes)
	if err != nil {
		metrics.GeoRequestsTotal.WithLabelValues("map", "error").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrMap, err)
	}
	if len(body) == 0 {
		metrics.GeoRequestsTotal.WithLabelValues("map", "error").Inc()
		return nil, fmt.Errorf("%w: empty image", domain.ErrMap)
	}
	metrics.GeoRequestsTotal.WithLabelValues("map", "success").Inc()
	return body, nil
}

// MapLink returns a link opening the point in the web map.
func (c *Client) MapLink(p geo.Point) string {
	q := url.Values{}
	q.Set("pt", p.String())
	q.Set("z", c.zoom)
	q.Set("l", "map")
	return strings.TrimRight(c.mapsBaseURL, "?") + "?" + q.Encode()
}

func (c *Client) get(ctx context.Context, base string, q url.Values, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("response exceeds %d bytes", limit)
	}
	return body, nil
}
