// Package consumer reads record-change batches from Kafka and applies each
// one to the search index as a single IndexUpdate, then announces the result
// on the batch-applied topic.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/resilience"
)

// Indexer is the part of indexer.Core the consumer drives.
type Indexer interface {
	BuildEntries(model indexer.TypeModel, inst indexer.Instance, attrs []indexer.AttributeHandler) map[string][]indexer.SearchIndexEntry
	EncryptAndQueue(id indexer.IDTuple, ownerGroup string, entries map[string][]indexer.SearchIndexEntry, update *indexer.IndexUpdate) (*indexer.IndexUpdate, error)
	ResolveDeletion(ctx context.Context, event indexer.EntityUpdate, update *indexer.IndexUpdate) (*indexer.IndexUpdate, error)
	QueueMove(event indexer.EntityUpdate, update *indexer.IndexUpdate) *indexer.IndexUpdate
	InitGroupData(ctx context.Context, groupID string, indexTimestamp int64) (bool, error)
	WriteIndexUpdate(ctx context.Context, update *indexer.IndexUpdate) (indexer.Result, error)
}

// Publisher delivers BatchApplied notifications.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// BatchRecorder counts handled batches by outcome.
type BatchRecorder interface {
	RecordBatch(outcome string)
}

// Handler applies decoded batches to the index one at a time.
type Handler struct {
	core      Indexer
	publisher Publisher
	recorder  BatchRecorder
	retry     resilience.RetryConfig
	sessionID string
	logger    *slog.Logger

	mu     sync.Mutex
	groups map[string]bool
}

type Option func(*Handler)

// WithPublisher announces every handled batch through p.
func WithPublisher(p Publisher) Option {
	return func(h *Handler) { h.publisher = p }
}

func WithRecorder(r BatchRecorder) Option {
	return func(h *Handler) { h.recorder = r }
}

// WithRetry overrides the retry policy for transient store failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(h *Handler) { h.retry = cfg }
}

// NewHandler creates a Handler. sessionID tags logs and notifications of this
// indexing session.
func NewHandler(core Indexer, sessionID string, opts ...Option) *Handler {
	h := &Handler{
		core:      core,
		sessionID: sessionID,
		logger:    slog.Default().With("component", "index-consumer", "session_id", sessionID),
		groups:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.retry.Retryable = apperrors.Retryable
	return h
}

// HandleMessage is the kafka.MessageHandler of the record-change topic.
// Messages that cannot be decoded or validated are logged and skipped.
func (h *Handler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	batch, err := kafka.DecodeJSON[events.Batch](value)
	if err != nil {
		h.logger.Error("failed to decode batch", "error", err, "key", string(key))
		return nil
	}
	if err := batch.Validate(); err != nil {
		h.logger.Error("invalid batch skipped", "error", err, "key", string(key))
		h.record("invalid")
		return nil
	}
	_, err = h.Apply(logger.WithSession(ctx, h.sessionID), batch)
	return err
}

// Apply writes batch to the index. The update is rebuilt on every retry, as
// deletions read the current index state.
func (h *Handler) Apply(ctx context.Context, batch events.Batch) (indexer.Result, error) {
	start := time.Now()
	if err := h.ensureGroup(ctx, batch); err != nil {
		h.record("failed")
		return indexer.Result{}, err
	}

	var (
		res    indexer.Result
		update *indexer.IndexUpdate
	)
	err := resilience.Retry(ctx, "apply-batch", h.retry, func() error {
		var err error
		update, err = h.buildUpdate(ctx, batch)
		if err != nil {
			return err
		}
		res, err = h.core.WriteIndexUpdate(ctx, update)
		return err
	})
	if err != nil {
		h.record("failed")
		return indexer.Result{}, fmt.Errorf("applying batch %s of group %s: %w", batch.BatchID, batch.GroupID, err)
	}

	log := logger.FromContext(ctx).With("component", "index-consumer")
	if res.Outcome == indexer.Aborted {
		log.Info("batch already applied",
			"group_id", batch.GroupID,
			"batch_id", batch.BatchID,
			"reason", res.Reason,
		)
	} else {
		log.Info("batch applied",
			"group_id", batch.GroupID,
			"batch_id", batch.BatchID,
			"changes", len(batch.Changes),
			"inserted", res.Inserted,
			"duration", time.Since(start),
		)
	}
	h.record(res.Outcome.String())

	if err := h.announce(ctx, batch, update, res); err != nil {
		return res, err
	}
	return res, nil
}

// ensureGroup creates the group's progress record the first time this
// session sees the group.
func (h *Handler) ensureGroup(ctx context.Context, batch events.Batch) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[batch.GroupID] {
		return nil
	}
	var ts int64
	if batch.IndexTimestamp != nil {
		ts = *batch.IndexTimestamp
	}
	err := resilience.Retry(ctx, "init-group-data", h.retry, func() error {
		_, err := h.core.InitGroupData(ctx, batch.GroupID, ts)
		return err
	})
	if err != nil {
		return fmt.Errorf("initialising group %s: %w", batch.GroupID, err)
	}
	h.groups[batch.GroupID] = true
	return nil
}

func (h *Handler) buildUpdate(ctx context.Context, batch events.Batch) (*indexer.IndexUpdate, error) {
	update := indexer.NewIndexUpdate(batch.GroupID)
	if batch.BatchID != "" {
		update.WithBatch(batch.BatchID)
	}
	if batch.IndexTimestamp != nil {
		update.WithIndexTimestamp(*batch.IndexTimestamp)
	}

	var err error
	for _, change := range batch.Changes {
		event := change.EntityUpdate()
		switch change.Operation {
		case indexer.OperationCreate:
			update, err = h.queueRecord(change, update)
		case indexer.OperationUpdate:
			if change.Record == nil {
				update = h.core.QueueMove(event, update)
				continue
			}
			update, err = h.core.ResolveDeletion(ctx, event, update)
			if err == nil {
				update, err = h.queueRecord(change, update)
			}
		case indexer.OperationDelete:
			update, err = h.core.ResolveDeletion(ctx, event, update)
		}
		if err != nil {
			return nil, fmt.Errorf("%s of %s: %w", change.Operation, change.InstanceID, err)
		}
	}
	return update, nil
}

func (h *Handler) queueRecord(change events.Change, update *indexer.IndexUpdate) (*indexer.IndexUpdate, error) {
	attrs := make([]indexer.AttributeHandler, 0, len(change.Record.Attributes))
	for _, a := range change.Record.Attributes {
		handler, err := a.Handler()
		if err != nil {
			return update, apperrors.Newf(apperrors.ErrInvalidInput, "queueRecord", "attribute %d: %v", a.ID, err)
		}
		attrs = append(attrs, handler)
	}
	id := indexer.IDTuple{ListID: change.InstanceListID, ElementID: change.InstanceID}
	model := indexer.TypeModel{AppID: change.AppID, TypeID: change.TypeID, Name: change.Record.TypeName}
	entries := h.core.BuildEntries(model, indexer.Instance{ID: id, OwnerGroup: change.Record.OwnerGroup}, attrs)
	return h.core.EncryptAndQueue(id, change.Record.OwnerGroup, entries, update)
}

func (h *Handler) announce(ctx context.Context, batch events.Batch, update *indexer.IndexUpdate, res indexer.Result) error {
	if h.publisher == nil {
		return nil
	}
	msg := events.BatchApplied{
		SessionID: h.sessionID,
		GroupID:   batch.GroupID,
		BatchID:   batch.BatchID,
		Outcome:   res.Outcome.String(),
		Reason:    string(res.Reason),
		Inserted:  res.Inserted,
		AppliedAt: time.Now().UTC(),
	}
	if res.Outcome == indexer.Committed {
		msg.Deleted = len(update.Delete.EncInstanceIDs)
		msg.Moved = len(update.Move)
	}
	if err := h.publisher.Publish(ctx, kafka.Event{Key: batch.GroupID, Value: msg}); err != nil {
		return fmt.Errorf("announcing batch %s: %w", batch.BatchID, err)
	}
	return nil
}

func (h *Handler) record(outcome string) {
	if h.recorder != nil {
		h.recorder.RecordBatch(outcome)
	}
}
