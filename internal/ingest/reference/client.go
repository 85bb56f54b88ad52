// Package reference loads the player reference dataset that maps on-page
// names to photo codes.
package reference

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/fortuna/headshot/internal/season"
)

const (
	// DefaultURL is the code_dict dataset (Web_Name, Code, FPL_Name, Team_<season>...).
	DefaultURL = "https://raw.githubusercontent.com/Jashior/fpl_code_understat_dict/master/code_dict.csv"

	// maxBodyBytes caps the dataset download.
	maxBodyBytes = 16 << 20
)

// Client fetches the reference dataset.
type Client struct {
	url        string
	httpClient *http.Client
	now        func() time.Time
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock overrides the clock used to key JSON teams by season.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client for url. An empty url selects DefaultURL.
func New(url string, logger *log.Logger, opts ...Option) *Client {
	if url == "" {
		url = DefaultURL
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[reference] ", log.LstdFlags)
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = 30 * time.Second

	c := &Client{
		url:        url,
		httpClient: httpClient,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load fetches and parses the dataset once. It never fails: any transport or
// parse problem is logged and yields an empty slice, which callers treat as
// "no data".
func (c *Client) Load(ctx context.Context) []PlayerRecord {
	body, err := c.fetch(ctx)
	if err != nil {
		c.logger.Printf("❌ reference data unavailable: %v", err)
		return nil
	}

	res, err := Parse(body, season.Key(c.now()))
	if err != nil {
		c.logger.Printf("❌ reference data unparsable: %v", err)
		return nil
	}

	c.logger.Printf("✓ Loaded %d players (%s, %d rows dropped)", len(res.Records), res.Format, res.Dropped)
	return res.Records
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: status %d", c.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}
