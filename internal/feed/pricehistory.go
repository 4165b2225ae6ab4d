package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopwatch/feed-uploader/internal/source"
)

// priceHistoryBuilder maps each row to one document whose body is the raw
// value of the json column. The payload is validated but never re-serialized,
// so key order and formatting survive byte-for-byte.
type priceHistoryBuilder struct {
	opts BuilderOptions
}

func newPriceHistoryBuilder(opts BuilderOptions) *priceHistoryBuilder {
	return &priceHistoryBuilder{opts: opts}
}

// Add implements Builder.
func (b *priceHistoryBuilder) Add(ctx context.Context, row source.Row) ([]Document, []*RowError) {
	shopID, slug, err := rowIdentity(row)
	if err != nil {
		return nil, []*RowError{{ShopID: shopID, Slug: slug, Err: err}}
	}

	rowErr := func(err error) []*RowError {
		return []*RowError{{ShopID: shopID, Slug: slug, Err: err}}
	}

	raw, ok := row.String("json")
	if !ok || raw == "" {
		return nil, rowErr(fmt.Errorf("%w: json column is missing or null", ErrInvalidPayload))
	}
	if !json.Valid([]byte(raw)) {
		return nil, rowErr(fmt.Errorf("%w: json column does not parse", ErrInvalidPayload))
	}

	domain, err := b.opts.Resolver.DomainFor(ctx, shopID)
	if err != nil {
		return nil, rowErr(err)
	}

	doc := Document{
		Key:  BuildKey(b.opts.Directory, domain, slug, FormatPriceHistory),
		Body: []byte(raw),
	}
	return []Document{doc}, nil
}

// Flush implements Builder. Price-history documents are emitted immediately,
// so there is nothing buffered.
func (b *priceHistoryBuilder) Flush(_ context.Context) ([]Document, []*RowError) {
	return nil, nil
}
