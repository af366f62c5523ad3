package indexer

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// MetricsSink receives diagnostic counters. Byte counts are approximate: some
// are taken before encryption and some after.
type MetricsSink interface {
	ObserveIndexing(d time.Duration)
	ObserveEncryption(d time.Duration)
	ObserveStorage(d time.Duration)
	AddStoredBytes(n int)
	AddWriteRequests(n int)
	// ObserveColumnSize reports the total posting count of a token after an insert.
	ObserveColumnSize(n int)
	AddWords(n int)
	AddIndexedBytes(n int)
}

type nopSink struct{}

func (nopSink) ObserveIndexing(time.Duration)   {}
func (nopSink) ObserveEncryption(time.Duration) {}
func (nopSink) ObserveStorage(time.Duration)    {}
func (nopSink) AddStoredBytes(int)              {}
func (nopSink) AddWriteRequests(int)            {}
func (nopSink) ObserveColumnSize(int)           {}
func (nopSink) AddWords(int)                    {}
func (nopSink) AddIndexedBytes(int)             {}

// Stats accumulates counters in memory. It is safe for concurrent use.
type Stats struct {
	indexingTime   atomic.Int64
	encryptionTime atomic.Int64
	storageTime    atomic.Int64
	storedBytes    atomic.Int64
	writeRequests  atomic.Int64
	largestColumn  atomic.Int64
	words          atomic.Int64
	indexedBytes   atomic.Int64
}

var _ MetricsSink = (*Stats)(nil)

func (s *Stats) ObserveIndexing(d time.Duration)   { s.indexingTime.Add(int64(d)) }
func (s *Stats) ObserveEncryption(d time.Duration) { s.encryptionTime.Add(int64(d)) }
func (s *Stats) ObserveStorage(d time.Duration)    { s.storageTime.Add(int64(d)) }
func (s *Stats) AddStoredBytes(n int)              { s.storedBytes.Add(int64(n)) }
func (s *Stats) AddWriteRequests(n int)            { s.writeRequests.Add(int64(n)) }
func (s *Stats) AddWords(n int)                    { s.words.Add(int64(n)) }
func (s *Stats) AddIndexedBytes(n int)             { s.indexedBytes.Add(int64(n)) }

func (s *Stats) ObserveColumnSize(n int) {
	for {
		cur := s.largestColumn.Load()
		if int64(n) <= cur || s.largestColumn.CompareAndSwap(cur, int64(n)) {
			return
		}
	}
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	IndexingTime   time.Duration
	EncryptionTime time.Duration
	StorageTime    time.Duration
	StoredBytes    int64
	WriteRequests  int64
	LargestColumn  int64
	Words          int64
	IndexedBytes   int64
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		IndexingTime:   time.Duration(s.indexingTime.Load()),
		EncryptionTime: time.Duration(s.encryptionTime.Load()),
		StorageTime:    time.Duration(s.storageTime.Load()),
		StoredBytes:    s.storedBytes.Load(),
		WriteRequests:  s.writeRequests.Load(),
		LargestColumn:  s.largestColumn.Load(),
		Words:          s.words.Load(),
		IndexedBytes:   s.indexedBytes.Load(),
	}
}

// LogStatus logs every counter at info level.
func (s *Stats) LogStatus(logger *slog.Logger) {
	snap := s.Snapshot()
	logger.Info("indexer status",
		"indexing_time", snap.IndexingTime,
		"encryption_time", snap.EncryptionTime,
		"storage_time", snap.StorageTime,
		"total_time", snap.IndexingTime+snap.EncryptionTime+snap.StorageTime,
		"stored_bytes", snap.StoredBytes,
		"write_requests", snap.WriteRequests,
		"largest_column", snap.LargestColumn,
		"words", snap.Words,
		"indexed_bytes", snap.IndexedBytes,
	)
}

type teeSink []MetricsSink

// Tee forwards every observation to all sinks.
func Tee(sinks ...MetricsSink) MetricsSink {
	return teeSink(sinks)
}

func (t teeSink) ObserveIndexing(d time.Duration) {
	for _, s := range t {
		s.ObserveIndexing(d)
	}
}

func (t teeSink) ObserveEncryption(d time.Duration) {
	for _, s := range t {
		s.ObserveEncryption(d)
	}
}

func (t teeSink) ObserveStorage(d time.Duration) {
	for _, s := range t {
		s.ObserveStorage(d)
	}
}

func (t teeSink) AddStoredBytes(n int) {
	for _, s := range t {
		s.AddStoredBytes(n)
	}
}

func (t teeSink) AddWriteRequests(n int) {
	for _, s := range t {
		s.AddWriteRequests(n)
	}
}

func (t teeSink) ObserveColumnSize(n int) {
	for _, s := range t {
		s.ObserveColumnSize(n)
	}
}

func (t teeSink) AddWords(n int) {
	for _, s := range t {
		s.AddWords(n)
	}
}

func (t teeSink) AddIndexedBytes(n int) {
	for _, s := range t {
		s.AddIndexedBytes(n)
	}
}
