package indexer

import (
	"encoding/base64"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEntriesPositions(t *testing.T) {
	f := newFixture(t)
	inst := Instance{ID: IDTuple{ListID: "l", ElementID: "e1"}}

	entries := f.core.BuildEntries(mailModel, inst, []AttributeHandler{
		TextAttribute{ID: subjectAttr, Value: "alpha beta alpha"},
	})

	require.Len(t, entries, 2)
	require.Len(t, entries["alpha"], 1)
	assert.Equal(t, []int{0, 2}, entries["alpha"][0].Positions)
	assert.Equal(t, []int{1}, entries["beta"][0].Positions)
	assert.Equal(t, SearchIndexEntry{InstanceID: "e1", AppID: 1, TypeID: 97, AttrID: subjectAttr, Positions: []int{1}}, entries["beta"][0])
}

func TestBuildEntriesOnePerTokenPerAttribute(t *testing.T) {
	f := newFixture(t)
	inst := Instance{ID: IDTuple{ListID: "l", ElementID: "e1"}}
	text := "the cat saw the other cat near the door"

	entries := f.core.BuildEntries(mailModel, inst, []AttributeHandler{
		TextAttribute{ID: subjectAttr, Value: text},
		HTMLAttribute{ID: bodyAttr, HTML: "<p>The <b>door</b></p><script>var cat;</script>"},
		ListAttribute{ID: toAttr, Values: []string{"Cat Owner", "door@example.com"}},
	})

	tokens := strings.Fields(text)
	for token, list := range entries {
		attrs := map[int]bool{}
		for _, e := range list {
			assert.False(t, attrs[e.AttrID], "duplicate entry for %q in attribute %d", token, e.AttrID)
			attrs[e.AttrID] = true
			assert.NotEmpty(t, e.Positions)
			assert.True(t, sort.IntsAreSorted(e.Positions))
			if e.AttrID == subjectAttr {
				var want []int
				for i, tok := range tokens {
					if tok == token {
						want = append(want, i)
					}
				}
				assert.Equal(t, want, e.Positions, token)
			}
		}
	}

	// "the" occurs in subject and body, so it has one entry per attribute
	require.Len(t, entries["the"], 2)
	assert.Equal(t, subjectAttr, entries["the"][0].AttrID)
	assert.Equal(t, bodyAttr, entries["the"][1].AttrID)
	// script content is not indexed, recipients are
	require.Len(t, entries["cat"], 2)
	assert.Equal(t, toAttr, entries["cat"][1].AttrID)
	assert.Equal(t, []int{3}, entries["example"][0].Positions)

	assert.Equal(t, int64(len(text)+len("The door")+len("Cat Owner door@example.com")), f.stats.Snapshot().IndexedBytes)
}

func TestBuildEntriesEmptyAttribute(t *testing.T) {
	f := newFixture(t)
	entries := f.core.BuildEntries(mailModel, Instance{}, []AttributeHandler{TextAttribute{ID: 1, Value: ""}})
	assert.Empty(t, entries)
}

func TestHTMLToText(t *testing.T) {
	assert.Equal(t, "Hello world", htmlToText("<html><head><title>ignored</title></head><body>Hello<br/>world</body></html>"))
	assert.Equal(t, "a b", htmlToText("a<div>b</div>"))
	assert.Equal(t, "", htmlToText(""))
}

func TestEncryptAndQueue(t *testing.T) {
	f := newFixture(t)
	update := NewIndexUpdate("group")

	f.queue(t, update, "e1", "alpha beta alpha")
	f.queue(t, update, "e2", "beta")

	encAlpha := f.cipher.EncryptKeyBase64("alpha")
	encBeta := f.cipher.EncryptKeyBase64("beta")
	require.Len(t, update.Create.IndexMap, 2)
	assert.Len(t, update.Create.IndexMap[encAlpha], 1)
	require.Len(t, update.Create.IndexMap[encBeta], 2, "postings of the same token are concatenated")

	encE1 := f.cipher.EncryptKey([]byte("e1"))
	assert.Equal(t, encE1, update.Create.IndexMap[encBeta][0].EncInstanceID)
	assert.Equal(t, f.cipher.EncryptKey([]byte("e2")), update.Create.IndexMap[encBeta][1].EncInstanceID)

	entry, err := f.core.decryptEntry(update.Create.IndexMap[encAlpha][0])
	require.NoError(t, err)
	assert.Equal(t, "e1", entry.InstanceID)
	assert.Equal(t, []int{0, 2}, entry.Positions)
	assert.Equal(t, subjectAttr, entry.AttrID)

	ed, ok := update.Create.ElementData[base64.StdEncoding.EncodeToString(encE1)]
	require.True(t, ok)
	assert.Equal(t, "inbox", ed.ListID)
	assert.Equal(t, "group", ed.OwnerGroup)
	words, err := f.cipher.DecryptValue(ed.EncWords)
	require.NoError(t, err)
	assert.Equal(t, "alpha beta", string(words))
}

// sealLimit lets n EncryptValue calls through and fails the rest.
type sealLimit struct {
	*crypto.Cipher
	n int
}

func (c *sealLimit) EncryptValue(plain []byte) ([]byte, error) {
	if c.n == 0 {
		return nil, errors.New("seal failed")
	}
	c.n--
	return c.Cipher.EncryptValue(plain)
}

func TestEncryptAndQueueFailureLeavesUpdateUnchanged(t *testing.T) {
	// three postings then the word list: fail on a posting, then on the list
	for _, n := range []int{1, 3} {
		f := newFixture(t)
		update := NewIndexUpdate("group")
		f.queue(t, update, "e1", "beta")
		encBeta := f.cipher.EncryptKeyBase64("beta")

		core := New(f.store, &sealLimit{Cipher: f.cipher, n: n})
		id := IDTuple{ListID: "inbox", ElementID: "e2"}
		entries := core.BuildEntries(mailModel, Instance{ID: id}, []AttributeHandler{TextAttribute{ID: subjectAttr, Value: "alpha beta gamma"}})
		got, err := core.EncryptAndQueue(id, "group", entries, update)
		require.Error(t, err, "n=%d", n)
		assert.Same(t, update, got)

		assert.Len(t, update.Create.ElementData, 1, "n=%d", n)
		require.Len(t, update.Create.IndexMap, 1, "n=%d", n)
		assert.Len(t, update.Create.IndexMap[encBeta], 1, "n=%d", n)
	}
}
