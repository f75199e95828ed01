// Package market reads paginated market data from the price API.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/dense-analysis/pricetracker/internal/config"
	"github.com/dense-analysis/pricetracker/internal/model"
	"github.com/dense-analysis/pricetracker/internal/validate"
)

// excerptLength limits how much of a bad response body is logged.
const excerptLength = 500

// Client fetches pages of market records.
type Client struct {
	cfg        config.Fetch
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger injects a logger, slog.Default() is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient validates the fetch options and builds a Client.
func NewClient(cfg config.Fetch, opts ...Option) (*Client, error) {
	if err := validate.ValidateFetchConfig(&cfg); err != nil {
		return nil, err
	}

	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// PageURL returns the request URL for a page of market data.
func (c *Client) PageURL(page int) string {
	return fmt.Sprintf(
		"%s%s?vs_currency=%s&per_page=%d&page=%d",
		c.cfg.BaseURL,
		c.cfg.MarketPath,
		url.QueryEscape(c.cfg.VsCurrency),
		c.cfg.PerPage,
		page,
	)
}

func excerpt(content []byte) string {
	if len(content) > excerptLength {
		return string(content[:excerptLength])
	}

	return string(content)
}

// FetchPage reads one page of market records.
//
// Transport errors, non-success statuses and malformed bodies are logged and
// reported as a nil slice with a nil error. The only error returned is the
// context error when ctx ends during the request, so callers can stop
// without mistaking cancellation for the end of the data.
func (c *Client) FetchPage(ctx context.Context, page int) ([]*model.MarketRecord, error) {
	requestURL := c.PageURL(page)
	logger := c.logger.With("page", page, "url", requestURL)
	logger.Debug("fetching market data page")

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)

	if err != nil {
		logger.Error("could not build market data request", "error", err)

		return nil, nil
	}

	request.Header.Set("User-Agent", c.cfg.UserAgent)
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)

	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("market data request was cancelled")

			return nil, ctx.Err()
		}

		logger.Error("market data request failed", "error", err)

		return nil, nil
	}

	defer response.Body.Close()

	content, err := io.ReadAll(response.Body)

	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("market data request was cancelled")

			return nil, ctx.Err()
		}

		logger.Error("could not read market data response", "error", err)

		return nil, nil
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		logger.Error(
			"market data request returned an error status",
			"status", response.StatusCode,
			"response", excerpt(content),
		)

		return nil, nil
	}

	var records []*model.MarketRecord

	if err := json.Unmarshal(content, &records); err != nil {
		logger.Error(
			"could not decode market data response",
			"error", err,
			"response", excerpt(content),
		)

		return nil, nil
	}

	return records, nil
}
