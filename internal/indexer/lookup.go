package indexer

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/store"
)

// LookupPostings returns the decrypted postings of token in row order.
func (c *Core) LookupPostings(ctx context.Context, token string) ([]SearchIndexEntry, error) {
	tx, err := c.store.Begin(ctx, true, store.SearchIndexMetaData, store.SearchIndex)
	if err != nil {
		return nil, fmt.Errorf("opening lookup transaction: %w", err)
	}
	defer tx.Abort()

	encWord := c.cipher.EncryptKeyBase64(token)
	meta, err := store.GetAsList[MetadataEntry](ctx, tx, store.SearchIndexMetaData, encWord)
	if err != nil {
		return nil, fmt.Errorf("loading metadata: %w", err)
	}
	var out []SearchIndexEntry
	for _, m := range meta {
		row, err := store.GetAsList[EncryptedEntry](ctx, tx, store.SearchIndex, m.RowKey)
		if err != nil {
			return nil, fmt.Errorf("loading row %s: %w", m.RowKey, err)
		}
		for _, enc := range row {
			entry, err := c.decryptEntry(enc)
			if err != nil {
				return nil, err
			}
			out = append(out, entry)
		}
	}
	return out, nil
}

// RowSizes returns the recorded size of each row holding token's postings.
func (c *Core) RowSizes(ctx context.Context, token string) ([]int, error) {
	tx, err := c.store.Begin(ctx, true, store.SearchIndexMetaData)
	if err != nil {
		return nil, fmt.Errorf("opening lookup transaction: %w", err)
	}
	defer tx.Abort()

	meta, err := store.GetAsList[MetadataEntry](ctx, tx, store.SearchIndexMetaData, c.cipher.EncryptKeyBase64(token))
	if err != nil {
		return nil, fmt.Errorf("loading metadata: %w", err)
	}
	sizes := make([]int, len(meta))
	for i, m := range meta {
		sizes[i] = m.Size
	}
	return sizes, nil
}
