package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/errors"
)

const seqPrefix = "__seq"

// backend is the storage under a bufferedTx: point reads of committed data
// and an atomic multi-key commit. reads holds every committed value the
// transaction based its writes on; a backend shared between processes must
// refuse the commit with ErrConflict if any of them changed.
type backend interface {
	read(ctx context.Context, key string) ([]byte, bool, error)
	commit(ctx context.Context, ops []op, reads map[string]observed) error
}

// observed is a committed value as a transaction first read it.
type observed struct {
	value  []byte
	exists bool
}

type op struct {
	key    string
	value  []byte
	delete bool
}

type txState int

const (
	txOpen txState = iota
	txCommitted
	txAborted
)

// bufferedTx queues writes in memory and hands them to the backend in one
// commit. Reads see the transaction's own writes first. Generated keys come
// from a per-store sequence written through the same buffer, so an aborted
// transaction consumes none. A writer remembers what it read from the
// backend, sequence included, so the commit can be validated against it.
type bufferedTx struct {
	mu       sync.Mutex
	b        backend
	stores   map[ObjectStore]bool
	readOnly bool
	state    txState
	writes   map[string]int
	ops      []op
	reads    map[string]observed
	release  func()
	once     sync.Once
}

func newBufferedTx(b backend, readOnly bool, stores map[ObjectStore]bool, release func()) *bufferedTx {
	return &bufferedTx{
		b:        b,
		stores:   stores,
		readOnly: readOnly,
		writes:   make(map[string]int),
		reads:    make(map[string]observed),
		release:  release,
	}
}

func fullKey(os ObjectStore, key string) string {
	return string(os) + "/" + key
}

func seqKey(os ObjectStore) string {
	return seqPrefix + "/" + string(os)
}

func (t *bufferedTx) check(os ObjectStore, write bool) error {
	if t.state != txOpen {
		return apperrors.ErrTransactionClosed
	}
	if !t.stores[os] {
		return apperrors.Newf(apperrors.ErrUnknownStore, "store", "%s", os)
	}
	if write && t.readOnly {
		return apperrors.ErrReadOnly
	}
	return nil
}

func (t *bufferedTx) Get(ctx context.Context, os ObjectStore, key string) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(os, false); err != nil {
		return nil, false, err
	}
	return t.readLocked(ctx, fullKey(os, key))
}

func (t *bufferedTx) readLocked(ctx context.Context, k string) ([]byte, bool, error) {
	if i, ok := t.writes[k]; ok {
		w := t.ops[i]
		if w.delete {
			return nil, false, nil
		}
		return append([]byte(nil), w.value...), true, nil
	}
	v, ok, err := t.b.read(ctx, k)
	if err != nil {
		return nil, false, err
	}
	if _, seen := t.reads[k]; !seen && !t.readOnly {
		t.reads[k] = observed{value: append([]byte(nil), v...), exists: ok}
	}
	return v, ok, nil
}

func (t *bufferedTx) queue(o op) {
	if i, ok := t.writes[o.key]; ok {
		t.ops[i] = o
		return
	}
	t.writes[o.key] = len(t.ops)
	t.ops = append(t.ops, o)
}

func (t *bufferedTx) Put(_ context.Context, os ObjectStore, key string, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(os, true); err != nil {
		return err
	}
	t.queue(op{key: fullKey(os, key), value: append([]byte(nil), value...)})
	return nil
}

func (t *bufferedTx) Add(ctx context.Context, os ObjectStore, value []byte) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(os, true); err != nil {
		return "", err
	}
	raw, ok, err := t.readLocked(ctx, seqKey(os))
	if err != nil {
		return "", fmt.Errorf("reading %s sequence: %w", os, err)
	}
	var next int64 = 1
	if ok {
		last, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return "", fmt.Errorf("parsing %s sequence: %w", os, err)
		}
		next = last + 1
	}
	key := strconv.FormatInt(next, 10)
	t.queue(op{key: seqKey(os), value: []byte(key)})
	t.queue(op{key: fullKey(os, key), value: append([]byte(nil), value...)})
	return key, nil
}

func (t *bufferedTx) Delete(_ context.Context, os ObjectStore, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(os, true); err != nil {
		return err
	}
	t.queue(op{key: fullKey(os, key), delete: true})
	return nil
}

func (t *bufferedTx) Abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != txOpen {
		return
	}
	t.state = txAborted
	t.ops = nil
	t.writes = nil
	t.reads = nil
	t.finish()
}

func (t *bufferedTx) Aborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == txAborted
}

func (t *bufferedTx) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case txAborted:
		return apperrors.ErrTransactionAborted
	case txCommitted:
		return apperrors.ErrTransactionClosed
	}
	defer t.finish()
	if t.readOnly || len(t.ops) == 0 {
		t.state = txCommitted
		return nil
	}
	if err := t.b.commit(ctx, t.ops, t.reads); err != nil {
		t.state = txAborted
		return fmt.Errorf("committing transaction: %w", err)
	}
	t.state = txCommitted
	return nil
}

func (t *bufferedTx) finish() {
	t.once.Do(func() {
		if t.release != nil {
			t.release()
		}
	})
}
