package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopwatch/feed-uploader/internal/shops"
	"github.com/shopwatch/feed-uploader/internal/source"
)

// Builder turns input rows into documents for one format variant.
// Add is called once per row; Flush once after input is exhausted.
// Row-level failures are returned alongside documents and never abort
// the build.
type Builder interface {
	Add(ctx context.Context, row source.Row) ([]Document, []*RowError)
	Flush(ctx context.Context) ([]Document, []*RowError)
}

// BuilderOptions carries the collaborators and settings shared by the
// builder variants.
type BuilderOptions struct {
	Resolver shops.Resolver

	// Directory is the optional key prefix; normalized by NewBuilder.
	Directory string

	// Columns is the ordered union of input column names. Metadata document
	// key order follows it, so it must be deterministic within a run.
	Columns []string

	// FieldTypes is the validated column coercion table (metadata only).
	FieldTypes map[string]FieldType

	// ExcludeColumns lists columns dropped from metadata bodies in addition
	// to the key columns shop_id and slug.
	ExcludeColumns []string
}

// NewBuilder constructs the document builder for the given format.
func NewBuilder(f Format, opts BuilderOptions) (Builder, error) {
	if opts.Resolver == nil {
		return nil, errors.New("builder requires a shop-domain resolver")
	}
	opts.Directory = NormalizeDirectory(opts.Directory)

	switch f {
	case FormatPriceHistory:
		return newPriceHistoryBuilder(opts), nil
	case FormatMetadata:
		return newMetadataBuilder(opts), nil
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
}

// rowIdentity extracts and validates the key columns of a row.
func rowIdentity(row source.Row) (shopID, slug string, err error) {
	shopID, _ = row.String("shop_id")
	slug, _ = row.String("slug")
	if shopID == "" {
		return shopID, slug, fmt.Errorf("%w: shop_id", ErrMissingKeyColumn)
	}
	if slug == "" {
		return shopID, slug, fmt.Errorf("%w: slug", ErrMissingKeyColumn)
	}
	return shopID, slug, nil
}
