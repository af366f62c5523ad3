// Package indexer builds encrypted search index postings for records and
// applies batches of index changes to the store in one transaction.
//
// A batch is processed in two steps. First the caller accumulates an
// IndexUpdate: BuildEntries and EncryptAndQueue for created records,
// ResolveDeletion for deleted ones and QueueMove for relocated ones. Then
// WriteIndexUpdate applies the whole update atomically: moves, deletions,
// new element data, new postings and finally the group's batch progress.
package indexer

import (
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/tokenizer"
)

const (
	DefaultRowCapacity = 10000
	DefaultMaxBatchIDs = 1000
)

// CipherProvider encrypts index keys deterministically and values with a
// random IV.
type CipherProvider interface {
	EncryptKey(plain []byte) []byte
	EncryptKeyBase64(plain string) string
	DecryptKey(enc []byte) ([]byte, error)
	EncryptValue(plain []byte) ([]byte, error)
	DecryptValue(data []byte) ([]byte, error)
}

// Core holds no state across calls besides its collaborators; all
// serialisation is left to the store's transactions.
type Core struct {
	store       store.Store
	cipher      CipherProvider
	tokenizer   tokenizer.Tokenizer
	metrics     MetricsSink
	rowCapacity int
	maxBatchIDs int
	logger      *slog.Logger
}

type Option func(*Core)

func WithMetrics(m MetricsSink) Option {
	return func(c *Core) { c.metrics = m }
}

func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(c *Core) { c.tokenizer = t }
}

// WithRowCapacity bounds the number of postings per SearchIndex row.
func WithRowCapacity(n int) Option {
	return func(c *Core) {
		if n > 0 {
			c.rowCapacity = n
		}
	}
}

// WithMaxBatchIDs bounds the recent batch ids remembered per group.
func WithMaxBatchIDs(n int) Option {
	return func(c *Core) {
		if n > 0 {
			c.maxBatchIDs = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Core) { c.logger = l }
}

func New(st store.Store, cipher CipherProvider, opts ...Option) *Core {
	c := &Core{
		store:       st,
		cipher:      cipher,
		tokenizer:   tokenizer.Words{},
		metrics:     nopSink{},
		rowCapacity: DefaultRowCapacity,
		maxBatchIDs: DefaultMaxBatchIDs,
		logger:      slog.Default().With("component", "indexer-core"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
