// Package catalog defines the boundary to the external product catalog.
// The sync coordinator writes accepted suggestions back through the Store
// interface; the concrete HTTP client lives in platform/shopify.
package catalog

import (
	"context"
	"errors"
)

// ErrWriteFailed is the generic failure for a catalog write. Concrete
// clients wrap it with transport detail.
var ErrWriteFailed = errors.New("catalog write failed")

// Store defines the write-back operations against the external catalog.
// Each method is one independent field-group write: it succeeds or fails on
// its own, and a failure never implies anything about the other group.
type Store interface {
	// WriteFields applies structured attribute suggestions to the product.
	// categoryHint, when non-empty, helps the catalog place attributes in
	// the right taxonomy.
	WriteFields(ctx context.Context, itemID string, fields map[string]string, categoryHint string) error

	// WriteLabels replaces the product's tag list with the given labels.
	WriteLabels(ctx context.Context, itemID string, labels []string) error
}
