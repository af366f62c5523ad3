package indexer

import "strings"

// CompareBatchIDs orders batch ids by age: a longer id is newer, ids of equal
// length compare lexicographically. It returns a positive number when a is
// newer than b.
func CompareBatchIDs(a, b string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

// insertBatchID inserts id into the newest-first list ids, keeping at most
// limit entries. It reports false, leaving ids untouched, if id is present.
func insertBatchID(ids []string, id string, limit int) ([]string, bool) {
	for _, existing := range ids {
		if existing == id {
			return ids, false
		}
	}
	at := len(ids)
	for i, existing := range ids {
		if CompareBatchIDs(id, existing) > 0 {
			at = i
			break
		}
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:at]...)
	out = append(out, id)
	out = append(out, ids[at:]...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, true
}
