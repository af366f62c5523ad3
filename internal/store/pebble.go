package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Pebble stores the database in an embedded LSM tree. Each transaction
// commits as one pebble batch.
type Pebble struct {
	db     *pebble.DB
	wo     *pebble.WriteOptions
	writer gate
	logger *slog.Logger
}

var _ Store = (*Pebble)(nil)

// OpenPebble opens (or creates) the database in dir. A nil fs uses the
// operating system's filesystem.
func OpenPebble(dir string, sync bool, fs vfs.FS) (*Pebble, error) {
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("opening pebble at %s: %w", dir, err)
	}
	wo := pebble.NoSync
	if sync {
		wo = pebble.Sync
	}
	p := &Pebble{
		db:     db,
		wo:     wo,
		writer: newGate(),
		logger: slog.Default().With("component", "pebble-store"),
	}
	p.logger.Info("pebble store opened", "dir", dir, "sync", sync)
	return p, nil
}

func (p *Pebble) Begin(ctx context.Context, readOnly bool, stores ...ObjectStore) (Transaction, error) {
	set, err := storeSet(stores)
	if err != nil {
		return nil, err
	}
	if readOnly {
		return newBufferedTx(p, true, set, nil), nil
	}
	if err := p.writer.acquire(ctx); err != nil {
		return nil, err
	}
	return newBufferedTx(p, false, set, p.writer.release), nil
}

func (p *Pebble) read(_ context.Context, key string) ([]byte, bool, error) {
	v, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pebble get %s: %w", key, err)
	}
	out := append([]byte(nil), v...)
	if err := closer.Close(); err != nil {
		return nil, false, fmt.Errorf("releasing pebble value: %w", err)
	}
	return out, true, nil
}

func (p *Pebble) commit(_ context.Context, ops []op, _ map[string]observed) error {
	b := p.db.NewBatch()
	defer b.Close()
	for _, o := range ops {
		var err error
		if o.delete {
			err = b.Delete([]byte(o.key), nil)
		} else {
			err = b.Set([]byte(o.key), o.value, nil)
		}
		if err != nil {
			return fmt.Errorf("queueing %s: %w", o.key, err)
		}
	}
	if err := b.Commit(p.wo); err != nil {
		return fmt.Errorf("pebble commit: %w", err)
	}
	return nil
}

func (p *Pebble) Close() error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("closing pebble: %w", err)
	}
	return nil
}
