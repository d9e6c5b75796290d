package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hoodiewala/storefront/internal/domain"
	"github.com/hoodiewala/storefront/pkg/httpclient"
)

// maxCatalogBytes bounds the catalog response body.
const maxCatalogBytes = 1 << 20

// serviceName labels backend errors and logs.
const serviceName = "backend"

// Client talks to the storefront backend: GET /hoodies and POST /contact.
type Client struct {
	http    httpclient.Doer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(doer httpclient.Doer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// BaseURL returns the backend root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListHoodies fetches the full catalog. Any transport failure, non-2xx status
// or body that is not a JSON array of products is an error.
func (c *Client) ListHoodies(ctx context.Context) ([]domain.Product, error) {
	req, err := httpclient.NewJSONRequest(ctx, http.MethodGet, c.baseURL+"/hoodies", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call backend hoodies: %w", err)
	}

	if !httpclient.IsSuccess(resp.StatusCode) {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}
	defer httpclient.DrainAndClose(resp)

	var products []domain.Product
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxCatalogBytes))
	if err := dec.Decode(&products); err != nil {
		return nil, fmt.Errorf("decode hoodies response: %w", err)
	}
	if products == nil {
		// A literal null is not a catalog.
		return nil, fmt.Errorf("decode hoodies response: expected a JSON array")
	}

	c.logger.DebugContext(ctx, "catalog fetched", slog.Int("count", len(products)))
	return products, nil
}

// SendContact posts msg as JSON. Only the status matters; the response body
// is discarded.
func (c *Client) SendContact(ctx context.Context, msg domain.ContactMessage) error {
	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, c.baseURL+"/contact", msg)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call backend contact: %w", err)
	}

	if !httpclient.IsSuccess(resp.StatusCode) {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	httpclient.DrainAndClose(resp)

	c.logger.InfoContext(ctx, "contact message delivered",
		slog.String("email_domain", msg.EmailDomain()),
	)
	return nil
}

// Ping reports whether the backend answers HTTP at all. Any response below 500
// counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := httpclient.NewJSONRequest(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("ping backend: %w", err)
	}
	defer httpclient.DrainAndClose(resp)

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("ping backend: status %d", resp.StatusCode)
	}
	return nil
}
