package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

// DefaultRequestTimeout bounds commerce backend calls.
const DefaultRequestTimeout = 15 * time.Second

// Opts holds configuration options for the WooCommerce orders client.
type Opts struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	HTTPClient     *http.Client
}

// Option defines a configuration option for the WooCommerce orders client.
type Option func(*Opts)

// WithBaseURL sets the WooCommerce site base URL.
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

// WooClient implements Backend against the WooCommerce REST API v3.
type WooClient struct {
	baseURL string
	key     string
	secret  string
	http    *http.Client
}

var _ Backend = (*WooClient)(nil)

// NewWooClient creates a WooCommerce orders client.
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

type wooOrderLine struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	Total     string `json:"total,omitempty"`
}

type wooOrder struct {
	ID        int64          `json:"id"`
	Status    string         `json:"status"`
	Total     string         `json:"total"`
	LineItems []wooOrderLine `json:"line_items"`
}

func (o wooOrder) toModel() models.Order {
	total, err := strconv.ParseFloat(o.Total, 64)
	if err != nil {
		total = 0
	}
	order := models.Order{ID: o.ID, Status: o.Status, Total: total}
	for _, li := range o.LineItems {
		lineTotal, err := strconv.ParseFloat(li.Total, 64)
		if err != nil {
			lineTotal = 0
		}
		order.Lines = append(order.Lines, models.OrderLine{
			ProductID: li.ProductID, Name: li.Name, Quantity: li.Quantity, Total: lineTotal,
		})
	}
	return order
}

func (c *WooClient) CreateOrder(ctx context.Context, customerID int64) (int64, error) {
	body := map[string]interface{}{
		"customer_id": customerID,
		"created_via": "whatsapp",
		"status":      "pending",
	}
	var created wooOrder
	if err := c.doJSON(ctx, http.MethodPost, "/wp-json/wc/v3/orders", body, &created); err != nil {
		slog.Error("WooClient.CreateOrder failed", "error", err, "customer_id", customerID)
		return 0, err
	}
	slog.Info("WooClient.CreateOrder succeeded", "order_id", created.ID, "customer_id", customerID)
	return created.ID, nil
}

func (c *WooClient) AddLine(ctx context.Context, orderID, productID int64, quantity int) error {
	body := map[string]interface{}{
		"line_items": []wooOrderLine{{ProductID: productID, Quantity: quantity}},
	}
	path := fmt.Sprintf("/wp-json/wc/v3/orders/%d", orderID)
	if err := c.doJSON(ctx, http.MethodPut, path, body, &wooOrder{}); err != nil {
		slog.Error("WooClient.AddLine failed", "error", err, "order_id", orderID, "product_id", productID)
		return err
	}
	slog.Debug("WooClient.AddLine succeeded", "order_id", orderID, "product_id", productID, "quantity", quantity)
	return nil
}

func (c *WooClient) Finalize(ctx context.Context, orderID int64) (models.Order, error) {
	path := fmt.Sprintf("/wp-json/wc/v3/orders/%d", orderID)
	var payload wooOrder
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &payload); err != nil {
		slog.Error("WooClient.Finalize failed", "error", err, "order_id", orderID)
		return models.Order{}, err
	}
	order := payload.toModel()
	slog.Info("WooClient.Finalize succeeded", "order_id", order.ID, "total", order.Total)
	return order, nil
}

func (c *WooClient) LastOrder(ctx context.Context, customerID int64) (*models.Order, error) {
	path := fmt.Sprintf("/wp-json/wc/v3/orders?customer=%d&per_page=1&orderby=date&order=desc", customerID)
	var payload []wooOrder
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &payload); err != nil {
		slog.Error("WooClient.LastOrder failed", "error", err, "customer_id", customerID)
		return nil, err
	}
	if len(payload) == 0 {
		slog.Debug("WooClient.LastOrder found no orders", "customer_id", customerID)
		return nil, models.ErrNotFound
	}
	order := payload[0].toModel()
	return &order, nil
}

// doJSON performs an authenticated request with an optional JSON body.
// Transport errors and 5xx map to models.ErrBackendUnavailable, 404 to
// models.ErrNotFound.
func (c *WooClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build commerce request: %w", err)
	}
	req.SetBasicAuth(c.key, c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("commerce request failed: %w: %w", models.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("commerce backend returned status %d: %w", resp.StatusCode, models.ErrBackendUnavailable)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return fmt.Errorf("commerce backend returned unexpected status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode commerce response: %w", err)
		}
	}
	return nil
}
