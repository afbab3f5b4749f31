package feeds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bakame-ai/interaction-logs/internal/config"
)

var (
	// ErrMalformedPayload is returned when a feed body is neither a record array nor a known envelope.
	ErrMalformedPayload = errors.New("feed payload is not a record array")
	// ErrUnexpectedStatus is returned for non-2xx feed responses.
	ErrUnexpectedStatus = errors.New("unexpected feed status")
)

const maxFeedBodyBytes = 32 << 20

// Fetcher provides the three upstream feeds.
type Fetcher interface {
	FetchCalls(ctx context.Context) ([]CallEvent, error)
	FetchUsage(ctx context.Context) ([]UsageEvent, error)
	FetchTelephony(ctx context.Context) ([]TelephonyRecord, error)
}

// Client fetches feeds from the Bakame backend over HTTP.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	callsPath     string
	usagePath     string
	telephonyPath string
	apiKey        string
}

// NewClient builds a feed client from the feeds section of the configuration.
func NewClient(cfg config.FeedsConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		callsPath:     cfg.CallsPath,
		usagePath:     cfg.UsagePath,
		telephonyPath: cfg.TelephonyPath,
		apiKey:        cfg.APIKey,
	}
}

// FetchCalls implements Fetcher.
func (c *Client) FetchCalls(ctx context.Context) ([]CallEvent, error) {
	body, err := c.get(ctx, c.callsPath)
	if err != nil {
		return nil, err
	}
	events, err := DecodeCallEvents(body)
	if err != nil {
		return nil, fmt.Errorf("decode calls feed: %w", err)
	}
	return events, nil
}

// FetchUsage implements Fetcher.
func (c *Client) FetchUsage(ctx context.Context) ([]UsageEvent, error) {
	body, err := c.get(ctx, c.usagePath)
	if err != nil {
		return nil, err
	}
	events, err := DecodeUsageEvents(body)
	if err != nil {
		return nil, fmt.Errorf("decode usage feed: %w", err)
	}
	return events, nil
}

// FetchTelephony implements Fetcher.
func (c *Client) FetchTelephony(ctx context.Context) ([]TelephonyRecord, error) {
	body, err := c.get(ctx, c.telephonyPath)
	if err != nil {
		return nil, err
	}
	records, err := DecodeTelephonyRecords(body)
	if err != nil {
		return nil, fmt.Errorf("decode telephony feed: %w", err)
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, path, resp.StatusCode)
	}
	return body, nil
}
