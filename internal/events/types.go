// Package events defines the messages exchanged with the record-change
// stream: batches of entity updates coming in and BatchApplied notifications
// going out.
package events

import (
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/indexer"
)

type AttributeKind string

const (
	KindText AttributeKind = "text"
	KindHTML AttributeKind = "html"
	KindList AttributeKind = "list"
)

// Attribute is one indexable field of a record.
type Attribute struct {
	ID     int           `json:"id"`
	Kind   AttributeKind `json:"kind"`
	Value  string        `json:"value,omitempty"`
	Values []string      `json:"values,omitempty"`
}

// Handler returns the indexer attribute handler matching a's kind.
func (a Attribute) Handler() (indexer.AttributeHandler, error) {
	switch a.Kind {
	case KindText, "":
		return indexer.TextAttribute{ID: a.ID, Value: a.Value}, nil
	case KindHTML:
		return indexer.HTMLAttribute{ID: a.ID, HTML: a.Value}, nil
	case KindList:
		return indexer.ListAttribute{ID: a.ID, Values: a.Values}, nil
	default:
		return nil, fmt.Errorf("unknown attribute kind %q", a.Kind)
	}
}

// Record carries the indexable content of a created or updated instance.
type Record struct {
	TypeName   string      `json:"type_name,omitempty"`
	OwnerGroup string      `json:"owner_group"`
	Attributes []Attribute `json:"attributes"`
}

// Change is one entity update of a batch. Record is set for creates and
// content updates; an update without a record only moves the instance.
type Change struct {
	AppID          int               `json:"app_id"`
	TypeID         int               `json:"type_id"`
	InstanceListID string            `json:"instance_list_id"`
	InstanceID     string            `json:"instance_id"`
	Operation      indexer.Operation `json:"operation"`
	Record         *Record           `json:"record,omitempty"`
}

// EntityUpdate converts c to the indexer's event type.
func (c Change) EntityUpdate() indexer.EntityUpdate {
	return indexer.EntityUpdate{
		AppID:          c.AppID,
		TypeID:         c.TypeID,
		InstanceListID: c.InstanceListID,
		InstanceID:     c.InstanceID,
		Operation:      c.Operation,
	}
}

// Batch is the unit the indexer applies atomically.
type Batch struct {
	GroupID        string   `json:"group_id"`
	BatchID        string   `json:"batch_id"`
	IndexTimestamp *int64   `json:"index_timestamp,omitempty"`
	Changes        []Change `json:"changes"`
}

// Validate checks the fields the indexer relies on.
func (b Batch) Validate() error {
	if b.GroupID == "" {
		return fmt.Errorf("batch %q has no group id", b.BatchID)
	}
	for i, c := range b.Changes {
		if c.InstanceID == "" {
			return fmt.Errorf("change %d of batch %q has no instance id", i, b.BatchID)
		}
		switch c.Operation {
		case indexer.OperationCreate:
			if c.Record == nil {
				return fmt.Errorf("create of %s in batch %q has no record", c.InstanceID, b.BatchID)
			}
		case indexer.OperationUpdate, indexer.OperationDelete:
		default:
			return fmt.Errorf("change %d of batch %q has unknown operation %q", i, b.BatchID, c.Operation)
		}
	}
	return nil
}

// BatchApplied is published once a batch has been handled, including when it
// turned out to be a duplicate.
type BatchApplied struct {
	SessionID string    `json:"session_id"`
	GroupID   string    `json:"group_id"`
	BatchID   string    `json:"batch_id"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	Inserted  int       `json:"inserted"`
	Deleted   int       `json:"deleted"`
	Moved     int       `json:"moved"`
	AppliedAt time.Time `json:"applied_at"`
}
