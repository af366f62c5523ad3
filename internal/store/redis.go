package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/errors"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/redis"
)

// Redis keeps the database in a Redis keyspace under a prefix. Writers are
// serialised within this process. Across processes every commit is one
// MULTI/EXEC guarded by WATCH on the keys the transaction read, and a lost
// race surfaces as ErrConflict.
type Redis struct {
	client *pkgredis.Client
	prefix string
	writer gate
}

var _ Store = (*Redis)(nil)

func NewRedis(client *pkgredis.Client, prefix string) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		writer: newGate(),
	}
}

func (r *Redis) Begin(ctx context.Context, readOnly bool, stores ...ObjectStore) (Transaction, error) {
	set, err := storeSet(stores)
	if err != nil {
		return nil, err
	}
	if readOnly {
		return newBufferedTx(r, true, set, nil), nil
	}
	if err := r.writer.acquire(ctx); err != nil {
		return nil, err
	}
	return newBufferedTx(r, false, set, r.writer.release), nil
}

func (r *Redis) read(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := r.client.GetBytes(ctx, r.prefix+key)
	if err != nil {
		return nil, false, apperrors.Newf(apperrors.ErrStoreUnavailable, "redis.get", "%s: %v", key, err)
	}
	return v, ok, nil
}

// commit applies ops only if every key the transaction read still holds the
// value it saw, so writers in other processes are detected at commit time.
func (r *Redis) commit(ctx context.Context, ops []op, reads map[string]observed) error {
	expect := make([]pkgredis.Expect, 0, len(reads))
	for _, k := range sortedKeys(reads) {
		o := reads[k]
		expect = append(expect, pkgredis.Expect{Key: r.prefix + k, Value: o.value, Exists: o.exists})
	}
	writes := make([]pkgredis.Write, 0, len(ops))
	for _, o := range ops {
		w := pkgredis.Write{Key: r.prefix + o.key}
		if !o.delete {
			w.Value = o.value
			if w.Value == nil {
				w.Value = []byte{}
			}
		}
		writes = append(writes, w)
	}
	err := r.client.Exec(ctx, expect, writes)
	if errors.Is(err, pkgredis.ErrConflict) {
		return apperrors.Newf(apperrors.ErrConflict, "redis.commit", "%d watched keys changed by another writer", len(expect))
	}
	if err != nil {
		return apperrors.Newf(apperrors.ErrStoreUnavailable, "redis.commit", "%d writes: %v", len(writes), err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear removes every key under the store's prefix.
func (r *Redis) Clear(ctx context.Context) (int64, error) {
	n, err := r.client.FlushByPattern(ctx, r.prefix+"*")
	if err != nil {
		return n, fmt.Errorf("clearing redis store: %w", err)
	}
	return n, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
