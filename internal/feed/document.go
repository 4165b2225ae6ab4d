// Package feed turns input rows into the per-entity JSON documents
// uploaded to the object store.
package feed

import (
	"errors"
	"fmt"
)

// Format selects the output document variant, fixed for a whole run.
type Format string

const (
	FormatPriceHistory Format = "pricehistory"
	FormatMetadata     Format = "metadata"
)

// ParseFormat validates a configured format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatPriceHistory, FormatMetadata:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown format %q (viable formats: pricehistory, metadata)", s)
	}
}

// Suffix returns the object key file name for this format.
func (f Format) Suffix() string {
	if f == FormatMetadata {
		return "metadata.json"
	}
	return "price-history.json"
}

// Document is one destination key/body pair ready for upload.
// Body is always valid JSON text.
type Document struct {
	Key  string
	Body []byte
}

var (
	// ErrInvalidPayload marks a price-history row whose json column is
	// missing, null, or not well-formed JSON.
	ErrInvalidPayload = errors.New("invalid json payload")

	// ErrMissingKeyColumn marks a row with an empty shop_id or slug value.
	ErrMissingKeyColumn = errors.New("missing key column value")
)

// CoercionError reports a metadata column value that could not be coerced
// to its configured type.
type CoercionError struct {
	Column string
	Value  any
	Type   FieldType
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot coerce column %q value %v to %s", e.Column, e.Value, e.Type)
}

// RowError records a per-row failure. Row errors never stop the run; they
// are folded into the run summary as failures for the row's key.
type RowError struct {
	ShopID string
	Slug   string
	Key    string // destination key when computable, best effort otherwise
	Err    error
}

func (e *RowError) Error() string {
	key := e.Key
	if key == "" {
		key = fmt.Sprintf("shop_id=%s slug=%s", e.ShopID, e.Slug)
	}
	return fmt.Sprintf("row %s: %v", key, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
