// Package shopify implements the catalog.Store interface against the
// Shopify Admin API.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/satpugnet/shopify-visiontags-ai/internal/catalog"
	"github.com/satpugnet/shopify-visiontags-ai/internal/config"
)

const apiVersion = "2024-10"

// Client is a thin typed client for the product write-back calls the sync
// coordinator performs. Each method is one independent request; the caller
// owns partial-failure semantics across field groups.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a catalog client from configuration.
func NewClient(cfg config.CatalogConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog base URL cannot be empty")
	}
	if cfg.AccessToken == "" {
		return nil, errors.New("catalog access token cannot be empty")
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logger.With("component", "catalog_client"),
	}, nil
}

// metafieldPayload is one structured attribute written to the product.
type metafieldPayload struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

// WriteFields stores the suggested attributes as product metafields under
// the app's namespace. categoryHint, when present, is stored alongside them
// so the storefront can surface the right facet group.
func (c *Client) WriteFields(ctx context.Context, itemID string, fields map[string]string, categoryHint string) error {
	productID, err := numericProductID(itemID)
	if err != nil {
		return fmt.Errorf("%w: %v", catalog.ErrWriteFailed, err)
	}

	metafields := make([]metafieldPayload, 0, len(fields)+1)
	for key, value := range fields {
		metafields = append(metafields, metafieldPayload{
			Namespace: "visiontags",
			Key:       key,
			Value:     value,
			Type:      "single_line_text_field",
		})
	}
	if categoryHint != "" {
		metafields = append(metafields, metafieldPayload{
			Namespace: "visiontags",
			Key:       "category_hint",
			Value:     categoryHint,
			Type:      "single_line_text_field",
		})
	}

	body := map[string]any{
		"product": map[string]any{
			"id":         productID,
			"metafields": metafields,
		},
	}

	return c.putProduct(ctx, productID, body, "fields")
}

// WriteLabels replaces the product's tag list with the suggested labels.
func (c *Client) WriteLabels(ctx context.Context, itemID string, labels []string) error {
	productID, err := numericProductID(itemID)
	if err != nil {
		return fmt.Errorf("%w: %v", catalog.ErrWriteFailed, err)
	}

	body := map[string]any{
		"product": map[string]any{
			"id":   productID,
			"tags": strings.Join(labels, ", "),
		},
	}

	return c.putProduct(ctx, productID, body, "labels")
}

// putProduct performs one product update request and maps any failure onto
// catalog.ErrWriteFailed.
func (c *Client) putProduct(ctx context.Context, productID string, body any, group string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: failed to encode request: %v", catalog.ErrWriteFailed, err)
	}

	url := fmt.Sprintf("%s/admin/api/%s/products/%s.json", c.baseURL, apiVersion, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: failed to build request: %v", catalog.ErrWriteFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("catalog write request failed",
			"product_id", productID,
			"group", group,
			"error", err)
		return fmt.Errorf("%w: %v", catalog.ErrWriteFailed, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("catalog write rejected",
			"product_id", productID,
			"group", group,
			"status", resp.StatusCode)
		return fmt.Errorf("%w: status %d writing %s", catalog.ErrWriteFailed, resp.StatusCode, group)
	}

	c.logger.Debug("catalog write succeeded",
		"product_id", productID,
		"group", group)
	return nil
}

// numericProductID extracts the trailing numeric ID from a product GID such
// as "gid://shopify/Product/123". Plain numeric IDs pass through.
func numericProductID(itemID string) (string, error) {
	id := itemID
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		id = id[i+1:]
	}
	if id == "" {
		return "", fmt.Errorf("item ID %q has no product ID component", itemID)
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return "", fmt.Errorf("item ID %q has a non-numeric product ID component", itemID)
		}
	}
	return id, nil
}
