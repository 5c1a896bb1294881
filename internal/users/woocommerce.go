package users

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

// DefaultRequestTimeout bounds user directory calls.
const DefaultRequestTimeout = 10 * time.Second

// emailDomain is the synthetic domain for accounts created from WhatsApp;
// the phone number is the only identity we have.
const emailDomain = "whatscommerce.local"

var nonDigits = regexp.MustCompile(`[^0-9]`)

// Opts holds configuration options for the WooCommerce customers client.
type Opts struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	HTTPClient     *http.Client
}

// Option defines a configuration option for the WooCommerce customers client.
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

// WooClient implements Directory against the WooCommerce customers API.
type WooClient struct {
	baseURL string
	key     string
	secret  string
	http    *http.Client
}

var _ Directory = (*WooClient)(nil)

// NewWooClient creates a WooCommerce customers client.
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

type wooCustomer struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Billing  struct {
		Phone string `json:"phone"`
	} `json:"billing"`
}

// accountEmail derives the synthetic account email for a phone number,
// matching the original account scheme: whatsapp_<digits>@whatscommerce.local.
func accountEmail(phoneNumber string) string {
	return "whatsapp_" + nonDigits.ReplaceAllString(phoneNumber, "") + "@" + emailDomain
}

func (c *WooClient) FindOrCreate(ctx context.Context, phoneNumber string) (models.UserAccount, error) {
	email := accountEmail(phoneNumber)

	q := url.Values{}
	q.Set("email", email)
	var found []wooCustomer
	if err := c.doJSON(ctx, http.MethodGet, "/wp-json/wc/v3/customers?"+q.Encode(), nil, &found); err != nil {
		slog.Error("users.WooClient.FindOrCreate lookup failed", "error", err, "phone", phoneNumber)
		return models.UserAccount{}, err
	}
	if len(found) > 0 {
		slog.Debug("users.WooClient.FindOrCreate found existing customer", "phone", phoneNumber, "customer_id", found[0].ID)
		return models.UserAccount{
			UserID: found[0].ID, CustomerID: found[0].ID, IsNew: false, Phone: phoneNumber,
		}, nil
	}

	body := map[string]interface{}{
		"email":    email,
		"username": "whatsapp_" + nonDigits.ReplaceAllString(phoneNumber, ""),
		"billing":  map[string]string{"phone": phoneNumber},
	}
	var created wooCustomer
	if err := c.doJSON(ctx, http.MethodPost, "/wp-json/wc/v3/customers", body, &created); err != nil {
		slog.Error("users.WooClient.FindOrCreate create failed", "error", err, "phone", phoneNumber)
		return models.UserAccount{}, err
	}
	slog.Info("users.WooClient.FindOrCreate created customer", "phone", phoneNumber, "customer_id", created.ID)
	return models.UserAccount{
		UserID: created.ID, CustomerID: created.ID, IsNew: true, Phone: phoneNumber,
	}, nil
}

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
		return fmt.Errorf("failed to build users request: %w", err)
	}
	req.SetBasicAuth(c.key, c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("users request failed: %w: %w", models.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("user directory returned status %d: %w", resp.StatusCode, models.ErrBackendUnavailable)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return fmt.Errorf("user directory returned unexpected status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode users response: %w", err)
		}
	}
	return nil
}
