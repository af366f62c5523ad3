package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS search_kv (
	store TEXT  NOT NULL,
	key   TEXT  NOT NULL,
	value BYTEA NOT NULL,
	PRIMARY KEY (store, key)
);
CREATE SEQUENCE IF NOT EXISTS search_kv_row_seq;
`

// Postgres keeps every object store in one table. Transactions run at
// serializable isolation; conflicts surface as ErrConflict.
type Postgres struct {
	client *postgres.Client
}

var _ Store = (*Postgres)(nil)

func NewPostgres(client *postgres.Client) *Postgres {
	return &Postgres{client: client}
}

// Migrate creates the table and key sequence if they are missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	return p.client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("creating search_kv schema: %w", err)
		}
		return nil
	})
}

func (p *Postgres) Begin(ctx context.Context, readOnly bool, stores ...ObjectStore) (Transaction, error) {
	set, err := storeSet(stores)
	if err != nil {
		return nil, err
	}
	tx, err := p.client.BeginSerializable(ctx, readOnly)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrStoreUnavailable, "postgres.begin", err.Error())
	}
	return &pgTx{tx: tx, stores: set, readOnly: readOnly}, nil
}

func (p *Postgres) Close() error {
	return p.client.Close()
}

type pgTx struct {
	mu       sync.Mutex
	tx       *sql.Tx
	stores   map[ObjectStore]bool
	readOnly bool
	state    txState
}

func (t *pgTx) check(os ObjectStore, write bool) error {
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

func classify(op string, err error) error {
	if postgres.IsSerializationFailure(err) {
		return apperrors.New(apperrors.ErrConflict, op, err.Error())
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (t *pgTx) Get(ctx context.Context, os ObjectStore, key string) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(os, false); err != nil {
		return nil, false, err
	}
	var value []byte
	err := t.tx.QueryRowContext(ctx,
		`SELECT value FROM search_kv WHERE store = $1 AND key = $2`,
		string(os), key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify("postgres.get", err)
	}
	return value, true, nil
}

func (t *pgTx) Put(ctx context.Context, os ObjectStore, key string, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(os, true); err != nil {
		return err
	}
	return t.put(ctx, os, key, value)
}

func (t *pgTx) put(ctx context.Context, os ObjectStore, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO search_kv (store, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (store, key) DO UPDATE SET value = EXCLUDED.value`,
		string(os), key, value,
	)
	if err != nil {
		return classify("postgres.put", err)
	}
	return nil
}

// Add draws keys from a database sequence; keys drawn by an aborted
// transaction are skipped, never reused.
func (t *pgTx) Add(ctx context.Context, os ObjectStore, value []byte) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(os, true); err != nil {
		return "", err
	}
	var id int64
	if err := t.tx.QueryRowContext(ctx, `SELECT nextval('search_kv_row_seq')`).Scan(&id); err != nil {
		return "", classify("postgres.nextval", err)
	}
	key := strconv.FormatInt(id, 10)
	if err := t.put(ctx, os, key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (t *pgTx) Delete(ctx context.Context, os ObjectStore, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(os, true); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM search_kv WHERE store = $1 AND key = $2`,
		string(os), key,
	)
	if err != nil {
		return classify("postgres.delete", err)
	}
	return nil
}

func (t *pgTx) Abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != txOpen {
		return
	}
	t.state = txAborted
	_ = t.tx.Rollback()
}

func (t *pgTx) Aborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == txAborted
}

func (t *pgTx) Wait(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case txAborted:
		return apperrors.ErrTransactionAborted
	case txCommitted:
		return apperrors.ErrTransactionClosed
	}
	if err := t.tx.Commit(); err != nil {
		t.state = txAborted
		return classify("postgres.commit", err)
	}
	t.state = txCommitted
	return nil
}
