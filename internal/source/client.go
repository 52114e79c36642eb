package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/thermognosis/thermo-engine/internal/ingest"
	"github.com/thermognosis/thermo-engine/pkg/models"
)

// Client talks to a StarryData-style sample repository over HTTP. The
// repository exposes sample listings and per-sample measurement records in
// the same JSON schemas the file ingester accepts, so the parsing path is
// shared with local ingestion.
type Client struct {
	http   *http.Client
	Config Config
}

type Config struct {
	BaseURL string
	APIKey  string
}

// NewClient builds a client and verifies the repository responds.
func NewClient(cfg Config) (*Client, error) {
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("source: invalid base url: %w", err)
	}

	c := &Client{
		// Sample records can be tens of MB of interpolated points; the
		// default transport timeout is far too short.
		http:   &http.Client{Timeout: 2 * time.Minute},
		Config: cfg,
	}

	log.Printf("[source] connecting to sample repository at %s...", cfg.BaseURL)
	count, err := c.SampleCount(context.Background())
	if err != nil {
		return nil, err
	}
	log.Printf("[source] connected to sample repository. Samples available: %d", count)
	return c, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("source: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.Config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.Config.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("source: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("source: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("source: %s returned %d: %s", path, resp.StatusCode, truncate(body, 256))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("source: unmarshal %s: %w", path, err)
	}
	return nil
}

// SampleCount returns the number of samples the repository currently holds.
func (c *Client) SampleCount(ctx context.Context) (int, error) {
	var res struct {
		Count int `json:"count"`
	}
	if err := c.get(ctx, "/api/samples/count", &res); err != nil {
		return 0, err
	}
	return res.Count, nil
}

// ListSampleIDs pages through the repository's sample identifiers.
func (c *Client) ListSampleIDs(ctx context.Context, page, limit int) ([]uint32, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	if page < 1 {
		page = 1
	}
	var res struct {
		SampleIDs []uint32 `json:"sampleIds"`
	}
	path := "/api/samples?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)
	if err := c.get(ctx, path, &res); err != nil {
		return nil, err
	}
	return res.SampleIDs, nil
}

// FetchSample downloads one sample record and parses it through the shared
// StarryData ingestion path.
func (c *Client) FetchSample(ctx context.Context, sampleID uint32) ([]models.DataPoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/samples/%d", c.Config.BaseURL, sampleID), nil)
	if err != nil {
		return nil, fmt.Errorf("source: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.Config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.Config.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("source: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source: sample %d returned %d: %s", sampleID, resp.StatusCode, truncate(body, 256))
	}

	return ingest.ParseStarrydata(body)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
