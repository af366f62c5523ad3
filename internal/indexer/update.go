package indexer

import "encoding/base64"

// IndexUpdate accumulates the changes of one batch before they are written
// in a single transaction. Ownership passes along with the pointer: the Core
// methods that take an IndexUpdate return it, and the caller must not touch
// it concurrently.
type IndexUpdate struct {
	GroupID string
	// BatchID is empty when the update does not complete a batch.
	BatchID string
	// IndexTimestamp is nil when unchanged; zero is a valid value.
	IndexTimestamp *int64

	Create CreateSet
	Delete DeleteSet
	Move   []MoveInstance
}

// CreateSet holds newly indexed instances keyed by base64 encrypted
// instance id, and their postings keyed by base64 encrypted token.
type CreateSet struct {
	ElementData map[string]ElementData
	IndexMap    map[string][]EncryptedEntry
}

// DeleteSet holds the instances to remove and, per encrypted token, the
// instances whose postings must be stripped.
type DeleteSet struct {
	EncInstanceIDs          []string
	EncWordToEncInstanceIDs map[string][]string
}

// MoveInstance relocates an indexed instance to another list.
type MoveInstance struct {
	EncInstanceID string
	NewListID     string
}

func NewIndexUpdate(groupID string) *IndexUpdate {
	return &IndexUpdate{
		GroupID: groupID,
		Create: CreateSet{
			ElementData: make(map[string]ElementData),
			IndexMap:    make(map[string][]EncryptedEntry),
		},
		Delete: DeleteSet{
			EncWordToEncInstanceIDs: make(map[string][]string),
		},
	}
}

// WithBatch marks the update as completing batchID.
func (u *IndexUpdate) WithBatch(batchID string) *IndexUpdate {
	u.BatchID = batchID
	return u
}

func (u *IndexUpdate) WithIndexTimestamp(ts int64) *IndexUpdate {
	u.IndexTimestamp = &ts
	return u
}

// IsEmpty reports whether writing u would change nothing.
func (u *IndexUpdate) IsEmpty() bool {
	return len(u.Create.ElementData) == 0 &&
		len(u.Create.IndexMap) == 0 &&
		len(u.Delete.EncInstanceIDs) == 0 &&
		len(u.Delete.EncWordToEncInstanceIDs) == 0 &&
		len(u.Move) == 0 &&
		u.BatchID == "" &&
		u.IndexTimestamp == nil
}

// dropCreate removes the queued ElementData and postings of one instance.
func (u *IndexUpdate) dropCreate(encInstanceID string) {
	if _, ok := u.Create.ElementData[encInstanceID]; !ok {
		return
	}
	delete(u.Create.ElementData, encInstanceID)
	for encWord, entries := range u.Create.IndexMap {
		kept := entries[:0]
		for _, e := range entries {
			if base64.StdEncoding.EncodeToString(e.EncInstanceID) != encInstanceID {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(u.Create.IndexMap, encWord)
			continue
		}
		u.Create.IndexMap[encWord] = kept
	}
}
