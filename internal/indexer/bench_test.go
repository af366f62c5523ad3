package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/store"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

const benchText = "this is a benchmark mail with several terms for testing the indexing performance of the encrypted index"

// BenchmarkBuildAndEncrypt measures per-record tokenizing and encryption.
func BenchmarkBuildAndEncrypt(b *testing.B) {
	f := newFixture(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		update := NewIndexUpdate("group")
		id := IDTuple{ListID: "inbox", ElementID: fmt.Sprintf("m%d", i)}
		entries := f.core.BuildEntries(mailModel, Instance{ID: id}, []AttributeHandler{TextAttribute{ID: subjectAttr, Value: benchText}})
		if _, err := f.core.EncryptAndQueue(id, "group", entries, update); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkWrite(b *testing.B, st store.Store, batchSize int) {
	f := newFixture(b)
	core := New(st, f.cipher)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		update := NewIndexUpdate("group")
		for j := 0; j < batchSize; j++ {
			id := IDTuple{ListID: "inbox", ElementID: fmt.Sprintf("m%d-%d", i, j)}
			entries := core.BuildEntries(mailModel, Instance{ID: id}, []AttributeHandler{TextAttribute{ID: subjectAttr, Value: benchText}})
			if _, err := core.EncryptAndQueue(id, "group", entries, update); err != nil {
				b.Fatal(err)
			}
		}
		if _, err := core.WriteIndexUpdate(ctx, update); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkWriteIndexUpdateMemory measures committing batches of 50 records.
func BenchmarkWriteIndexUpdateMemory(b *testing.B) {
	benchmarkWrite(b, store.NewMemory(), 50)
}

func BenchmarkWriteIndexUpdatePebble(b *testing.B) {
	st, err := store.OpenPebble("bench", false, vfs.NewMem())
	require.NoError(b, err)
	defer st.Close()
	benchmarkWrite(b, st, 50)
}

// BenchmarkLookupPostings measures reading one token across 5000 records.
func BenchmarkLookupPostings(b *testing.B) {
	f := newFixture(b)
	ctx := context.Background()
	update := NewIndexUpdate("group")
	for i := 0; i < 5000; i++ {
		id := IDTuple{ListID: "inbox", ElementID: fmt.Sprintf("m%d", i)}
		entries := f.core.BuildEntries(mailModel, Instance{ID: id}, []AttributeHandler{TextAttribute{ID: subjectAttr, Value: "distributed search"}})
		if _, err := f.core.EncryptAndQueue(id, "group", entries, update); err != nil {
			b.Fatal(err)
		}
	}
	if _, err := f.core.WriteIndexUpdate(ctx, update); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := f.core.LookupPostings(ctx, "search"); err != nil {
			b.Fatal(err)
		}
	}
}
