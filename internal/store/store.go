// Package store provides the transactional key-value database backing the
// search index. A database is split into named object stores; a Transaction
// spans a declared subset of them and commits all of its writes atomically.
//
// Backends: Memory (tests and ephemeral sessions), Pebble (embedded, the
// default for a local client), Postgres and Redis.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/errors"
)

// ObjectStore names one keyspace of the database.
type ObjectStore string

const (
	ElementData         ObjectStore = "ElementData"
	GroupData           ObjectStore = "GroupData"
	MetaData            ObjectStore = "MetaData"
	SearchIndexMetaData ObjectStore = "SearchIndexMeta"
	SearchIndex         ObjectStore = "SearchIndex"
)

// AllStores lists every object store in the database.
var AllStores = []ObjectStore{SearchIndex, SearchIndexMetaData, ElementData, MetaData, GroupData}

// Store opens transactions.
type Store interface {
	// Begin starts a transaction over stores. Write transactions are
	// serialised; Begin blocks until the previous writer finished or ctx is done.
	Begin(ctx context.Context, readOnly bool, stores ...ObjectStore) (Transaction, error)
	Close() error
}

// Transaction is used by one goroutine at a time. Every transaction must end
// with either Wait or Abort.
type Transaction interface {
	// Get returns the value under key and whether it exists.
	Get(ctx context.Context, os ObjectStore, key string) ([]byte, bool, error)
	Put(ctx context.Context, os ObjectStore, key string, value []byte) error
	// Add stores value under a key generated by the store and returns it.
	Add(ctx context.Context, os ObjectStore, value []byte) (string, error)
	Delete(ctx context.Context, os ObjectStore, key string) error
	// Abort discards every queued write. It is a no-op on a finished transaction.
	Abort()
	Aborted() bool
	// Wait commits the queued writes and returns once they are durable.
	// It returns ErrTransactionAborted if the transaction was aborted.
	Wait(ctx context.Context) error
}

// GetJSON decodes the JSON value under key into T.
func GetJSON[T any](ctx context.Context, tx Transaction, os ObjectStore, key string) (T, bool, error) {
	var out T
	raw, ok, err := tx.Get(ctx, os, key)
	if err != nil || !ok {
		return out, false, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("decoding %s/%s: %w", os, key, err)
	}
	return out, true, nil
}

// GetAsList decodes the JSON list under key. A missing key yields an empty list.
func GetAsList[T any](ctx context.Context, tx Transaction, os ObjectStore, key string) ([]T, error) {
	list, _, err := GetJSON[[]T](ctx, tx, os, key)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}

// PutJSON encodes v as JSON and stores it under key.
func PutJSON(ctx context.Context, tx Transaction, os ObjectStore, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", os, key, err)
	}
	return tx.Put(ctx, os, key, raw)
}

// AddJSON encodes v as JSON and stores it under a generated key.
func AddJSON(ctx context.Context, tx Transaction, os ObjectStore, v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding %s value: %w", os, err)
	}
	return tx.Add(ctx, os, raw)
}

func storeSet(stores []ObjectStore) (map[ObjectStore]bool, error) {
	if len(stores) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "store.Begin", "no object stores given")
	}
	set := make(map[ObjectStore]bool, len(stores))
	for _, os := range stores {
		set[os] = true
	}
	return set, nil
}

// gate admits one write transaction at a time.
type gate chan struct{}

func newGate() gate {
	return make(gate, 1)
}

func (g gate) acquire(ctx context.Context) error {
	select {
	case g <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for write transaction: %w", ctx.Err())
	}
}

func (g gate) release() {
	<-g
}
