/**
 * @description
 * This package provides a client for the external price-reference service.
 * It fetches live USD prices for a set of asset identifiers in a single
 * request. Prices are market data and are never cached: every call is a
 * fresh query.
 *
 * A missing identifier in the response means "price unavailable", never
 * zero — the caller decides whether that is fatal.
 *
 * @dependencies
 * - context, encoding/json, fmt, net/http, net/url, strings, time: Standard Go libraries.
 * - github.com/shopspring/decimal: Decimal price values.
 */
package priceclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client is a client for the price-reference API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new price-reference client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Price is the USD quotation for one identifier.
type Price struct {
	USD decimal.Decimal `json:"usd"`
}

// GetUSDPrices fetches the USD price for every identifier in ids. The
// returned map contains an entry only for identifiers the reference service
// could price; absent identifiers are simply missing from the map.
func (c *Client) GetUSDPrices(ctx context.Context, ids []string) (map[string]Price, error) {
	if len(ids) == 0 {
		return map[string]Price{}, nil
	}

	endpoint := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=usd",
		c.BaseURL, url.QueryEscape(strings.Join(ids, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute price request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read price response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("price service returned status %d", resp.StatusCode)
	}

	var prices map[string]Price
	if err := json.Unmarshal(bodyBytes, &prices); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}
	return prices, nil
}
