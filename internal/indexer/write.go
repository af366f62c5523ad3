package indexer

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/errors"
)

// Outcome is the final state of a WriteIndexUpdate transaction.
type Outcome int

const (
	Committed Outcome = iota
	Aborted
)

func (o Outcome) String() string {
	if o == Aborted {
		return "aborted"
	}
	return "committed"
}

// AbortReason says why a transaction was rolled back without error.
type AbortReason string

const ReasonDuplicateBatch AbortReason = "duplicate batch"

// Result reports how WriteIndexUpdate ended.
type Result struct {
	Outcome Outcome
	Reason  AbortReason
	// Inserted counts instances indexed for the first time.
	Inserted int
}

// WriteIndexUpdate applies update in one transaction over all object stores.
// The phases run in a fixed order: moves, deletions, element data, postings,
// group progress.
//
// If the update's batch was already applied for its group, the transaction is
// rolled back and the Result is Aborted with ReasonDuplicateBatch; that is not
// an error. On error nothing is written.
func (c *Core) WriteIndexUpdate(ctx context.Context, update *IndexUpdate) (Result, error) {
	start := time.Now()
	tx, err := c.store.Begin(ctx, false, store.AllStores...)
	if err != nil {
		return Result{}, fmt.Errorf("opening index transaction: %w", err)
	}
	defer tx.Abort()

	var ws writeStats
	if err := c.moveIndexedInstances(ctx, tx, update); err != nil {
		return Result{}, fmt.Errorf("moving instances: %w", err)
	}
	if err := c.deleteIndexedInstances(ctx, tx, update); err != nil {
		return Result{}, fmt.Errorf("deleting instances: %w", err)
	}
	inserted, err := c.insertNewElementData(ctx, tx, update, &ws)
	if err != nil {
		return Result{}, fmt.Errorf("inserting element data: %w", err)
	}
	if err := c.insertNewIndexEntries(ctx, tx, update, inserted, &ws); err != nil {
		return Result{}, fmt.Errorf("inserting index entries: %w", err)
	}
	res, err := c.updateGroupData(ctx, tx, update)
	if err != nil {
		return Result{}, fmt.Errorf("updating group data: %w", err)
	}
	if res.Outcome == Aborted {
		c.logger.Warn("batch already indexed, transaction aborted",
			"group_id", update.GroupID,
			"batch_id", update.BatchID,
		)
		return res, nil
	}

	if err := tx.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("committing index update: %w", err)
	}
	ws.flush(c.metrics)
	c.metrics.ObserveStorage(time.Since(start))
	res.Inserted = len(inserted)
	c.logger.Debug("index update committed",
		"group_id", update.GroupID,
		"batch_id", update.BatchID,
		"inserted", len(inserted),
		"deleted", len(update.Delete.EncInstanceIDs),
		"moved", len(update.Move),
		"duration", time.Since(start),
	)
	return res, nil
}

func (c *Core) moveIndexedInstances(ctx context.Context, tx store.Transaction, update *IndexUpdate) error {
	for _, mv := range update.Move {
		ed, ok, err := store.GetJSON[ElementData](ctx, tx, store.ElementData, mv.EncInstanceID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		ed.ListID = mv.NewListID
		if err := store.PutJSON(ctx, tx, store.ElementData, mv.EncInstanceID, ed); err != nil {
			return err
		}
	}
	return nil
}

func (c *Core) deleteIndexedInstances(ctx context.Context, tx store.Transaction, update *IndexUpdate) error {
	for _, encWord := range sortedKeys(update.Delete.EncWordToEncInstanceIDs) {
		meta, err := store.GetAsList[MetadataEntry](ctx, tx, store.SearchIndexMetaData, encWord)
		if err != nil {
			return err
		}
		if len(meta) == 0 {
			continue
		}
		ids := make(map[string]bool)
		for _, id := range update.Delete.EncWordToEncInstanceIDs[encWord] {
			ids[id] = true
		}
		remaining := meta[:0]
		for _, m := range meta {
			size, err := c.stripRow(ctx, tx, m.RowKey, ids)
			if err != nil {
				return err
			}
			if size > 0 {
				m.Size = size
				remaining = append(remaining, m)
			}
		}
		if len(remaining) == 0 {
			err = tx.Delete(ctx, store.SearchIndexMetaData, encWord)
		} else {
			err = store.PutJSON(ctx, tx, store.SearchIndexMetaData, encWord, remaining)
		}
		if err != nil {
			return err
		}
	}
	for _, id := range update.Delete.EncInstanceIDs {
		if err := tx.Delete(ctx, store.ElementData, id); err != nil {
			return err
		}
	}
	return nil
}

// stripRow removes the postings of ids from a row and returns the number of
// postings left. An emptied row is deleted.
func (c *Core) stripRow(ctx context.Context, tx store.Transaction, rowKey string, ids map[string]bool) (int, error) {
	row, err := store.GetAsList[EncryptedEntry](ctx, tx, store.SearchIndex, rowKey)
	if err != nil {
		return 0, err
	}
	kept := make([]EncryptedEntry, 0, len(row))
	for _, e := range row {
		if !ids[base64.StdEncoding.EncodeToString(e.EncInstanceID)] {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		return 0, tx.Delete(ctx, store.SearchIndex, rowKey)
	}
	if len(kept) == len(row) {
		return len(kept), nil
	}
	return len(kept), store.PutJSON(ctx, tx, store.SearchIndex, rowKey, kept)
}

// insertNewElementData stores the element data of instances not indexed yet
// and returns their ids.
func (c *Core) insertNewElementData(ctx context.Context, tx store.Transaction, update *IndexUpdate, ws *writeStats) (map[string]bool, error) {
	inserted := make(map[string]bool)
	for _, id := range sortedKeys(update.Create.ElementData) {
		_, exists, err := tx.Get(ctx, store.ElementData, id)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		ed := update.Create.ElementData[id]
		if err := store.PutJSON(ctx, tx, store.ElementData, id, ed); err != nil {
			return nil, err
		}
		inserted[id] = true
		ws.writeRequests++
		ws.storedBytes += base64.StdEncoding.DecodedLen(len(id)) + len(ed.ListID) + len(ed.EncWords)
	}
	return inserted, nil
}

func (c *Core) insertNewIndexEntries(ctx context.Context, tx store.Transaction, update *IndexUpdate, inserted map[string]bool, ws *writeStats) error {
	if len(inserted) == 0 {
		return nil
	}
	for _, encWord := range sortedKeys(update.Create.IndexMap) {
		var entries []EncryptedEntry
		for _, e := range update.Create.IndexMap[encWord] {
			if inserted[base64.StdEncoding.EncodeToString(e.EncInstanceID)] {
				entries = append(entries, e)
			}
		}
		if len(entries) == 0 {
			continue
		}
		meta, err := store.GetAsList[MetadataEntry](ctx, tx, store.SearchIndexMetaData, encWord)
		if err != nil {
			return err
		}
		if len(meta) == 0 {
			ws.words++
			ws.storedBytes += len(encWord)
		}
		meta, err = c.placeEntries(ctx, tx, encWord, meta, entries)
		if err != nil {
			return err
		}
		if err := store.PutJSON(ctx, tx, store.SearchIndexMetaData, encWord, meta); err != nil {
			return err
		}

		column := 0
		for _, m := range meta {
			column += m.Size
		}
		stored := 0
		for _, e := range entries {
			stored += len(e.EncInstanceID) + len(e.Data)
		}
		ws.writeRequests++
		ws.storedBytes += stored
		if column > ws.largestColumn {
			ws.largestColumn = column
		}
	}
	return nil
}

// updateGroupData records the update's index timestamp and batch id. A batch
// id already recorded aborts tx.
func (c *Core) updateGroupData(ctx context.Context, tx store.Transaction, update *IndexUpdate) (Result, error) {
	if update.BatchID == "" && update.IndexTimestamp == nil {
		return Result{Outcome: Committed}, nil
	}
	gd, ok, err := store.GetJSON[GroupData](ctx, tx, store.GroupData, update.GroupID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		if update.BatchID != "" {
			return Result{}, apperrors.Newf(apperrors.ErrGroupDataMissing, "writeIndexUpdate", "group %s", update.GroupID)
		}
		gd = GroupData{LastBatchIDs: []string{}}
	}
	if update.IndexTimestamp != nil {
		gd.IndexTimestamp = *update.IndexTimestamp
	}
	if update.BatchID != "" {
		ids, added := insertBatchID(gd.LastBatchIDs, update.BatchID, c.maxBatchIDs)
		if !added {
			tx.Abort()
			return Result{Outcome: Aborted, Reason: ReasonDuplicateBatch}, nil
		}
		gd.LastBatchIDs = ids
	}
	if err := store.PutJSON(ctx, tx, store.GroupData, update.GroupID, gd); err != nil {
		return Result{}, err
	}
	return Result{Outcome: Committed}, nil
}

// writeStats holds the storage counters of one transaction until it commits.
type writeStats struct {
	words         int
	storedBytes   int
	writeRequests int
	largestColumn int
}

func (ws writeStats) flush(m MetricsSink) {
	m.AddWords(ws.words)
	m.AddStoredBytes(ws.storedBytes)
	m.AddWriteRequests(ws.writeRequests)
	if ws.largestColumn > 0 {
		m.ObserveColumnSize(ws.largestColumn)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
