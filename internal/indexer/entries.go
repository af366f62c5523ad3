package indexer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// BuildEntries tokenizes every attribute of inst and returns its postings by
// token. Repeated tokens within one attribute share an entry; the same token
// in two attributes yields two entries.
func (c *Core) BuildEntries(model TypeModel, inst Instance, attrs []AttributeHandler) map[string][]SearchIndexEntry {
	start := time.Now()
	result := make(map[string][]SearchIndexEntry)
	indexed := 0
	for _, attr := range attrs {
		value := attr.Extract()
		indexed += len(value)
		tokens := c.tokenizer.Tokenize(value)

		perAttr := make(map[string]*SearchIndexEntry, len(tokens))
		order := make([]string, 0, len(tokens))
		for pos, token := range tokens {
			if e, ok := perAttr[token]; ok {
				e.Positions = append(e.Positions, pos)
				continue
			}
			perAttr[token] = &SearchIndexEntry{
				InstanceID: inst.ID.ElementID,
				AppID:      model.AppID,
				TypeID:     model.TypeID,
				AttrID:     attr.AttributeID(),
				Positions:  []int{pos},
			}
			order = append(order, token)
		}
		for _, token := range order {
			result[token] = append(result[token], *perAttr[token])
		}
	}
	c.metrics.AddIndexedBytes(indexed)
	c.metrics.ObserveIndexing(time.Since(start))
	return result
}

// entryPayload is the encrypted part of a stored posting.
type entryPayload struct {
	AppID     int   `json:"a"`
	TypeID    int   `json:"t"`
	AttrID    int   `json:"f"`
	Positions []int `json:"p"`
}

// EncryptAndQueue encrypts the postings of one instance into update and
// records its ElementData. Postings of other instances already queued under
// the same token are kept. If the instance itself is already queued, its
// earlier version is replaced. On error update is left unchanged.
func (c *Core) EncryptAndQueue(id IDTuple, ownerGroup string, entries map[string][]SearchIndexEntry, update *IndexUpdate) (*IndexUpdate, error) {
	start := time.Now()
	encInstanceID := c.cipher.EncryptKey([]byte(id.ElementID))
	b64InstanceID := base64.StdEncoding.EncodeToString(encInstanceID)

	words := make([]string, 0, len(entries))
	for word := range entries {
		words = append(words, word)
	}
	sort.Strings(words)

	postings := make(map[string][]EncryptedEntry, len(words))
	for _, word := range words {
		encWord := c.cipher.EncryptKeyBase64(word)
		for _, entry := range entries[word] {
			enc, err := c.encryptEntry(entry, encInstanceID)
			if err != nil {
				return update, err
			}
			postings[encWord] = append(postings[encWord], enc)
		}
	}
	encWords, err := c.cipher.EncryptValue([]byte(strings.Join(words, " ")))
	if err != nil {
		return update, fmt.Errorf("encrypting word list of %s: %w", id.ElementID, err)
	}

	update.dropCreate(b64InstanceID)
	for encWord, enc := range postings {
		update.Create.IndexMap[encWord] = append(update.Create.IndexMap[encWord], enc...)
	}
	update.Create.ElementData[b64InstanceID] = ElementData{
		ListID:     id.ListID,
		EncWords:   encWords,
		OwnerGroup: ownerGroup,
	}
	c.metrics.ObserveEncryption(time.Since(start))
	return update, nil
}

func (c *Core) encryptEntry(entry SearchIndexEntry, encInstanceID []byte) (EncryptedEntry, error) {
	payload, err := json.Marshal(entryPayload{
		AppID:     entry.AppID,
		TypeID:    entry.TypeID,
		AttrID:    entry.AttrID,
		Positions: entry.Positions,
	})
	if err != nil {
		return EncryptedEntry{}, fmt.Errorf("encoding search index entry: %w", err)
	}
	data, err := c.cipher.EncryptValue(payload)
	if err != nil {
		return EncryptedEntry{}, fmt.Errorf("encrypting search index entry: %w", err)
	}
	return EncryptedEntry{EncInstanceID: encInstanceID, Data: data}, nil
}

func (c *Core) decryptEntry(enc EncryptedEntry) (SearchIndexEntry, error) {
	id, err := c.cipher.DecryptKey(enc.EncInstanceID)
	if err != nil {
		return SearchIndexEntry{}, fmt.Errorf("decrypting instance id: %w", err)
	}
	plain, err := c.cipher.DecryptValue(enc.Data)
	if err != nil {
		return SearchIndexEntry{}, fmt.Errorf("decrypting search index entry: %w", err)
	}
	var p entryPayload
	if err := json.Unmarshal(plain, &p); err != nil {
		return SearchIndexEntry{}, fmt.Errorf("decoding search index entry: %w", err)
	}
	return SearchIndexEntry{
		InstanceID: string(id),
		AppID:      p.AppID,
		TypeID:     p.TypeID,
		AttrID:     p.AttrID,
		Positions:  p.Positions,
	}, nil
}
