package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/errors"
)

// ResolveDeletion queues the removal of the instance named by event. A
// create of the instance queued earlier in update is dropped. An instance
// that was never indexed is skipped without error.
func (c *Core) ResolveDeletion(ctx context.Context, event EntityUpdate, update *IndexUpdate) (*IndexUpdate, error) {
	encInstanceID := c.cipher.EncryptKeyBase64(event.InstanceID)
	update.dropCreate(encInstanceID)

	tx, err := c.store.Begin(ctx, true, store.ElementData)
	if err != nil {
		return update, fmt.Errorf("opening element data transaction: %w", err)
	}
	ed, ok, err := store.GetJSON[ElementData](ctx, tx, store.ElementData, encInstanceID)
	tx.Abort()
	if err != nil {
		return update, fmt.Errorf("loading element data: %w", err)
	}
	if !ok {
		c.logger.Info("index data not available (instance is not indexed)",
			"enc_instance_id", encInstanceID,
			"instance_id", event.InstanceID,
		)
		return update, nil
	}

	plain, err := c.cipher.DecryptValue(ed.EncWords)
	if err != nil {
		return update, apperrors.Newf(apperrors.ErrDecryption, "resolveDeletion", "word list of %s: %v", encInstanceID, err)
	}
	for _, word := range strings.Split(string(plain), " ") {
		if word == "" {
			continue
		}
		encWord := c.cipher.EncryptKeyBase64(word)
		update.Delete.EncWordToEncInstanceIDs[encWord] = append(update.Delete.EncWordToEncInstanceIDs[encWord], encInstanceID)
	}
	update.Delete.EncInstanceIDs = append(update.Delete.EncInstanceIDs, encInstanceID)
	return update, nil
}

// QueueMove queues relocating the instance named by event to its new list.
func (c *Core) QueueMove(event EntityUpdate, update *IndexUpdate) *IndexUpdate {
	update.Move = append(update.Move, MoveInstance{
		EncInstanceID: c.cipher.EncryptKeyBase64(event.InstanceID),
		NewListID:     event.InstanceListID,
	})
	return update
}

// InitGroupData creates the progress record of a group unless it exists.
// It reports whether a record was created.
func (c *Core) InitGroupData(ctx context.Context, groupID string, indexTimestamp int64) (bool, error) {
	tx, err := c.store.Begin(ctx, false, store.GroupData)
	if err != nil {
		return false, fmt.Errorf("opening group data transaction: %w", err)
	}
	defer tx.Abort()
	_, ok, err := tx.Get(ctx, store.GroupData, groupID)
	if err != nil {
		return false, fmt.Errorf("loading group data of %s: %w", groupID, err)
	}
	if ok {
		return false, nil
	}
	gd := GroupData{IndexTimestamp: indexTimestamp, LastBatchIDs: []string{}}
	if err := store.PutJSON(ctx, tx, store.GroupData, groupID, gd); err != nil {
		return false, err
	}
	if err := tx.Wait(ctx); err != nil {
		return false, fmt.Errorf("committing group data of %s: %w", groupID, err)
	}
	c.logger.Info("group data initialised", "group_id", groupID, "index_timestamp", indexTimestamp)
	return true, nil
}

// LoadGroupData returns the progress record of a group.
func (c *Core) LoadGroupData(ctx context.Context, groupID string) (GroupData, bool, error) {
	tx, err := c.store.Begin(ctx, true, store.GroupData)
	if err != nil {
		return GroupData{}, false, fmt.Errorf("opening group data transaction: %w", err)
	}
	defer tx.Abort()
	return store.GetJSON[GroupData](ctx, tx, store.GroupData, groupID)
}
