package indexer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/crypto"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/store"
	"github.com/stretchr/testify/require"
)

var mailModel = TypeModel{AppID: 1, TypeID: 97, Name: "Mail"}

const (
	subjectAttr = 105
	bodyAttr    = 111
	toAttr      = 112
)

type fixture struct {
	core   *Core
	store  *store.Memory
	cipher *crypto.Cipher
	stats  *Stats
}

func newFixture(t testing.TB, opts ...Option) *fixture {
	t.Helper()
	c, err := crypto.New(bytes.Repeat([]byte{1}, crypto.KeyLength), bytes.Repeat([]byte{2}, crypto.IVLength), 128)
	require.NoError(t, err)
	st := store.NewMemory()
	stats := &Stats{}
	opts = append([]Option{WithMetrics(stats)}, opts...)
	return &fixture{
		core:   New(st, c, opts...),
		store:  st,
		cipher: c,
		stats:  stats,
	}
}

func (f *fixture) queue(t *testing.T, update *IndexUpdate, elementID, subject string) {
	t.Helper()
	id := IDTuple{ListID: "inbox", ElementID: elementID}
	entries := f.core.BuildEntries(mailModel, Instance{ID: id, OwnerGroup: "group"}, []AttributeHandler{
		TextAttribute{ID: subjectAttr, Value: subject},
	})
	_, err := f.core.EncryptAndQueue(id, "group", entries, update)
	require.NoError(t, err)
}

func (f *fixture) write(t *testing.T, update *IndexUpdate) Result {
	t.Helper()
	res, err := f.core.WriteIndexUpdate(context.Background(), update)
	require.NoError(t, err)
	return res
}

func (f *fixture) initGroup(t *testing.T) {
	t.Helper()
	_, err := f.core.InitGroupData(context.Background(), "group", 0)
	require.NoError(t, err)
}

// countKeys counts committed keys of one object store.
func (f *fixture) countKeys(os store.ObjectStore) int {
	n := 0
	for k := range f.store.Snapshot() {
		if strings.HasPrefix(k, string(os)+"/") {
			n++
		}
	}
	return n
}

func (f *fixture) elementData(t *testing.T, elementID string) (ElementData, bool) {
	t.Helper()
	ctx := context.Background()
	tx, err := f.store.Begin(ctx, true, store.ElementData)
	require.NoError(t, err)
	defer tx.Abort()
	ed, ok, err := store.GetJSON[ElementData](ctx, tx, store.ElementData, f.cipher.EncryptKeyBase64(elementID))
	require.NoError(t, err)
	return ed, ok
}

func instanceIDs(entries []SearchIndexEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.InstanceID)
	}
	return ids
}
