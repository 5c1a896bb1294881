package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

// DefaultRequestTimeout bounds catalog calls so a slow backend cannot leave
// a conversation stuck.
const DefaultRequestTimeout = 10 * time.Second

// Opts holds configuration options for the WooCommerce catalog client.
type Opts struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	HTTPClient     *http.Client
}

// Option defines a configuration option for the WooCommerce catalog client.
type Option func(*Opts)

// WithBaseURL sets the WooCommerce site base URL (e.g. https://shop.example.com).
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithCredentials sets the WooCommerce REST consumer key and secret.
func WithCredentials(key, secret string) Option {
	return func(o *Opts) { o.ConsumerKey = key; o.ConsumerSecret = secret }
}

// WithHTTPClient overrides the HTTP client (used in tests).
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WooClient implements Gateway against the WooCommerce REST API v3.
type WooClient struct {
	baseURL string
	key     string
	secret  string
	http    *http.Client
}

var _ Gateway = (*WooClient)(nil)

// NewWooClient creates a WooCommerce catalog client.
func NewWooClient(opts ...Option) (*WooClient, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("woocommerce base URL must be provided")
	}
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, fmt.Errorf("woocommerce consumer key and secret must be provided")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &WooClient{baseURL: cfg.BaseURL, key: cfg.ConsumerKey, secret: cfg.ConsumerSecret, http: httpClient}, nil
}

// wooProduct mirrors the WooCommerce products payload. Price comes back as a
// string; stock_quantity is null when stock management is off.
type wooProduct struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Price         string `json:"price"`
	StockQuantity *int   `json:"stock_quantity"`
	Permalink     string `json:"permalink"`
}

func (p wooProduct) toModel() models.Product {
	price, err := strconv.ParseFloat(p.Price, 64)
	if err != nil {
		price = 0
	}
	stock := 0
	if p.StockQuantity != nil {
		stock = *p.StockQuantity
	}
	return models.Product{ID: p.ID, Name: p.Name, Price: price, Stock: stock, URL: p.Permalink}
}

func (c *WooClient) Search(ctx context.Context, term string, limit int) ([]models.Product, error) {
	q := url.Values{}
	q.Set("search", term)
	q.Set("per_page", strconv.Itoa(limit))
	q.Set("status", "publish")

	var payload []wooProduct
	if err := c.getJSON(ctx, "/wp-json/wc/v3/products?"+q.Encode(), &payload); err != nil {
		slog.Error("WooClient.Search failed", "error", err, "term", term)
		return nil, err
	}

	products := make([]models.Product, 0, len(payload))
	for _, p := range payload {
		products = append(products, p.toModel())
	}
	slog.Debug("WooClient.Search succeeded", "term", term, "count", len(products))
	return products, nil
}

func (c *WooClient) Get(ctx context.Context, id int64) (*models.Product, error) {
	var payload wooProduct
	err := c.getJSON(ctx, fmt.Sprintf("/wp-json/wc/v3/products/%d", id), &payload)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			slog.Debug("WooClient.Get product not found", "product_id", id)
			return nil, models.ErrNotFound
		}
		slog.Error("WooClient.Get failed", "error", err, "product_id", id)
		return nil, err
	}
	product := payload.toModel()
	return &product, nil
}

// getJSON performs an authenticated GET and decodes the response body.
// Transport errors and 5xx responses map to models.ErrBackendUnavailable,
// 404 to models.ErrNotFound.
func (c *WooClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.SetBasicAuth(c.key, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w: %w", models.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("catalog returned status %d: %w", resp.StatusCode, models.ErrBackendUnavailable)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("catalog returned unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return nil
}
