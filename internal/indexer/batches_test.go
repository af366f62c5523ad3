package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareBatchIDs(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"b", "a", 1},
		{"a", "b", -1},
		{"abc", "abc", 0},
		{"aa", "z", 1},
		{"z", "aa", -1},
		{"10", "9", 1},
	}
	for _, tt := range tests {
		got := CompareBatchIDs(tt.a, tt.b)
		switch {
		case tt.want > 0:
			assert.Positive(t, got, "%s vs %s", tt.a, tt.b)
		case tt.want < 0:
			assert.Negative(t, got, "%s vs %s", tt.a, tt.b)
		default:
			assert.Zero(t, got)
		}
	}
}

func TestInsertBatchID(t *testing.T) {
	ids, ok := insertBatchID([]string{}, "b", 3)
	assert.True(t, ok)
	assert.Equal(t, []string{"b"}, ids)

	ids, _ = insertBatchID(ids, "d", 3)
	ids, _ = insertBatchID(ids, "a", 3)
	assert.Equal(t, []string{"d", "b", "a"}, ids)

	ids, _ = insertBatchID(ids, "c", 3)
	assert.Equal(t, []string{"d", "c", "b"}, ids, "oldest id is evicted")

	ids, _ = insertBatchID(ids, "0", 3)
	assert.Equal(t, []string{"d", "c", "b"}, ids, "id older than a full list falls off")

	before := ids
	ids, ok = insertBatchID(ids, "c", 3)
	assert.False(t, ok)
	assert.Equal(t, before, ids)
}
