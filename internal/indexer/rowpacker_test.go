package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVacantRow(t *testing.T) {
	meta := []MetadataEntry{{RowKey: "1", Size: 9995}, {RowKey: "2", Size: 10}}

	tests := []struct {
		name     string
		incoming int
		want     int
	}{
		{"fits first row", 1, 0},
		{"first row at the boundary", 5, 1},
		{"needs headroom in first row", 4, 0},
		{"second row", 100, 1},
		{"no row", 9990, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, vacantRow(meta, tt.incoming, DefaultRowCapacity))
		})
	}
	assert.Equal(t, -1, vacantRow(nil, 1, DefaultRowCapacity))
}

func TestChunk(t *testing.T) {
	entries := make([]EncryptedEntry, 7)
	for i := range entries {
		entries[i] = EncryptedEntry{EncInstanceID: []byte{byte(i)}}
	}

	pieces := chunk(entries, 3)
	require.Len(t, pieces, 3)
	assert.Len(t, pieces[0], 3)
	assert.Len(t, pieces[1], 3)
	assert.Len(t, pieces[2], 1)
	assert.Equal(t, []byte{6}, pieces[2][0].EncInstanceID)

	// appending to a piece must not overwrite the next one
	_ = append(pieces[0], EncryptedEntry{EncInstanceID: []byte{99}})
	assert.Equal(t, []byte{3}, pieces[1][0].EncInstanceID)

	assert.Len(t, chunk(entries, 7), 1)
	assert.Len(t, chunk(nil, 3), 1)
}
