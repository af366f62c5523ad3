package indexer

// IDTuple identifies a list element: (listId, elementId).
type IDTuple struct {
	ListID    string `json:"listId"`
	ElementID string `json:"elementId"`
}

// SearchIndexEntry is one posting: a token's offsets within one attribute of
// one instance.
type SearchIndexEntry struct {
	InstanceID string
	AppID      int
	TypeID     int
	AttrID     int
	Positions  []int
}

// EncryptedEntry is a posting as stored in a SearchIndex row. The instance id
// is encrypted deterministically so rows can be filtered by instance without
// decrypting Data.
type EncryptedEntry struct {
	EncInstanceID []byte `json:"i"`
	Data          []byte `json:"d"`
}

// ElementData is stored under the encrypted instance id of every indexed
// instance. EncWords seals the space-joined token list.
type ElementData struct {
	ListID     string `json:"listId"`
	EncWords   []byte `json:"words"`
	OwnerGroup string `json:"ownerGroup"`
}

// MetadataEntry records how many postings of one token live in one row.
type MetadataEntry struct {
	RowKey string `json:"key"`
	Size   int    `json:"size"`
}

// GroupData tracks indexing progress of one group.
type GroupData struct {
	IndexTimestamp int64    `json:"indexTimestamp"`
	LastBatchIDs   []string `json:"lastBatchIds"`
}

// TypeModel describes the record type an instance belongs to.
type TypeModel struct {
	AppID  int
	TypeID int
	Name   string
}

// Instance is a record to index.
type Instance struct {
	ID         IDTuple
	OwnerGroup string
}

// Operation is the kind of a record change.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// EntityUpdate is one record-change event of a batch.
type EntityUpdate struct {
	AppID          int
	TypeID         int
	InstanceListID string
	InstanceID     string
	Operation      Operation
}
