package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopwatch/feed-uploader/internal/source"
)

// metadataBuilder groups rows by (shop_id, slug) and merges their non-key
// columns into one flat JSON object per group. Later rows overwrite earlier
// ones column by column; document key order is first-seen column order.
// Groups are buffered until Flush, which emits them in first-seen order.
type metadataBuilder struct {
	opts    BuilderOptions
	exclude map[string]bool

	groups map[groupKey]*group
	order  []groupKey
}

type groupKey struct {
	shopID string
	slug   string
}

type group struct {
	key     string // destination object key
	columns []string
	values  map[string]any
	failed  bool
}

func newMetadataBuilder(opts BuilderOptions) *metadataBuilder {
	exclude := map[string]bool{"shop_id": true, "slug": true}
	for _, c := range opts.ExcludeColumns {
		exclude[c] = true
	}
	return &metadataBuilder{
		opts:    opts,
		exclude: exclude,
		groups:  make(map[groupKey]*group),
	}
}

// Add implements Builder. Rows are merged into their group; documents are
// only emitted by Flush once input is exhausted.
func (b *metadataBuilder) Add(ctx context.Context, row source.Row) ([]Document, []*RowError) {
	shopID, slug, err := rowIdentity(row)
	if err != nil {
		return nil, []*RowError{{ShopID: shopID, Slug: slug, Err: err}}
	}

	gk := groupKey{shopID: shopID, slug: slug}
	g, ok := b.groups[gk]
	if !ok {
		// Resolve the shop domain once per group. An unknown shop fails
		// every row of the group, recorded once.
		domain, err := b.opts.Resolver.DomainFor(ctx, shopID)
		if err != nil {
			b.groups[gk] = &group{failed: true}
			return nil, []*RowError{{ShopID: shopID, Slug: slug, Err: err}}
		}
		g = &group{
			key:    BuildKey(b.opts.Directory, domain, slug, FormatMetadata),
			values: make(map[string]any),
		}
		b.groups[gk] = g
		b.order = append(b.order, gk)
	}
	if g.failed {
		// A previous row already failed this group; its key already carries
		// a failure and no document will be emitted for it.
		return nil, nil
	}

	for _, col := range b.opts.Columns {
		if b.exclude[col] {
			continue
		}
		v, ok := row[col]
		if !ok {
			continue
		}

		if t, coerced := b.opts.FieldTypes[col]; coerced {
			converted, err := coerceValue(col, v, t)
			if err != nil {
				g.failed = true
				return nil, []*RowError{{ShopID: shopID, Slug: slug, Key: g.key, Err: err}}
			}
			v = converted
		}

		if _, seen := g.values[col]; !seen {
			g.columns = append(g.columns, col)
		}
		g.values[col] = v
	}

	return nil, nil
}

// Flush implements Builder, emitting one document per surviving group in
// first-seen group order.
func (b *metadataBuilder) Flush(_ context.Context) ([]Document, []*RowError) {
	var docs []Document
	for _, gk := range b.order {
		g := b.groups[gk]
		if g.failed {
			continue
		}

		body, err := marshalOrdered(g.columns, g.values)
		if err != nil {
			// Coercion limits values to JSON-safe scalars; this is a bug
			// guard, not an expected path.
			continue
		}

		docs = append(docs, Document{Key: g.key, Body: body})
	}
	return docs, nil
}

// marshalOrdered serializes a flat mapping to JSON with an explicit key
// order. encoding/json sorts map keys, which would break first-seen order.
func marshalOrdered(keys []string, values map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value of %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
