package indexer

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/store"
)

// vacantRow returns the first row that can take incoming more postings while
// staying below capacity, or -1. The whole incoming count is reserved, so a
// row may be left partly empty even when some postings would still fit.
func vacantRow(meta []MetadataEntry, incoming, capacity int) int {
	maxSize := capacity - incoming
	for i, m := range meta {
		if m.Size < maxSize {
			return i
		}
	}
	return -1
}

// chunk splits entries into pieces of at most size postings.
func chunk(entries []EncryptedEntry, size int) [][]EncryptedEntry {
	if len(entries) <= size {
		return [][]EncryptedEntry{entries}
	}
	out := make([][]EncryptedEntry, 0, (len(entries)+size-1)/size)
	for len(entries) > size {
		out = append(out, entries[:size:size])
		entries = entries[size:]
	}
	return append(out, entries)
}

// placeEntries stores the postings of one token and returns its updated
// metadata. Rows are appended to or created, never split.
func (c *Core) placeEntries(ctx context.Context, tx store.Transaction, encWord string, meta []MetadataEntry, entries []EncryptedEntry) ([]MetadataEntry, error) {
	for _, piece := range chunk(entries, c.rowCapacity) {
		i := vacantRow(meta, len(piece), c.rowCapacity)
		if i < 0 {
			key, err := store.AddJSON(ctx, tx, store.SearchIndex, piece)
			if err != nil {
				return nil, fmt.Errorf("creating search index row: %w", err)
			}
			meta = append(meta, MetadataEntry{RowKey: key, Size: len(piece)})
			continue
		}
		row, err := store.GetAsList[EncryptedEntry](ctx, tx, store.SearchIndex, meta[i].RowKey)
		if err != nil {
			return nil, fmt.Errorf("loading search index row %s: %w", meta[i].RowKey, err)
		}
		row = append(row, piece...)
		if err := store.PutJSON(ctx, tx, store.SearchIndex, meta[i].RowKey, row); err != nil {
			return nil, err
		}
		meta[i].Size = len(row)
	}
	return meta, nil
}
