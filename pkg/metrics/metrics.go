// Package metrics defines the Prometheus collectors of the indexing service
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. It satisfies the indexer's
// metrics sink so the core reports straight into it.
type Metrics struct {
	IndexingDuration   prometheus.Histogram
	EncryptionDuration prometheus.Histogram
	StorageDuration    prometheus.Histogram
	StoredBytesTotal   prometheus.Counter
	WriteRequestsTotal prometheus.Counter
	LargestColumn      prometheus.Gauge
	WordsTotal         prometheus.Counter
	IndexedBytesTotal  prometheus.Counter
	BatchesTotal       *prometheus.CounterVec

	largest atomic.Int64
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IndexingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_tokenize_duration_seconds",
				Help:    "Time spent turning one record into postings.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),
		EncryptionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_encrypt_duration_seconds",
				Help:    "Time spent encrypting the postings of one record.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),
		StorageDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_write_duration_seconds",
				Help:    "Latency of committed index update transactions.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		StoredBytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_stored_bytes_total",
				Help: "Approximate bytes written to the index stores.",
			},
		),
		WriteRequestsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_write_requests_total",
				Help: "Element data and posting list writes.",
			},
		),
		LargestColumn: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_largest_column_postings",
				Help: "Largest number of postings seen for one token.",
			},
		),
		WordsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_words_total",
				Help: "Distinct tokens added to the index.",
			},
		),
		IndexedBytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_indexed_bytes_total",
				Help: "Bytes of attribute text tokenized.",
			},
		),
		BatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_batches_total",
				Help: "Record-change batches handled, by outcome (committed, aborted, failed).",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(
		m.IndexingDuration,
		m.EncryptionDuration,
		m.StorageDuration,
		m.StoredBytesTotal,
		m.WriteRequestsTotal,
		m.LargestColumn,
		m.WordsTotal,
		m.IndexedBytesTotal,
		m.BatchesTotal,
	)

	return m
}

func (m *Metrics) ObserveIndexing(d time.Duration)   { m.IndexingDuration.Observe(d.Seconds()) }
func (m *Metrics) ObserveEncryption(d time.Duration) { m.EncryptionDuration.Observe(d.Seconds()) }
func (m *Metrics) ObserveStorage(d time.Duration)    { m.StorageDuration.Observe(d.Seconds()) }
func (m *Metrics) AddStoredBytes(n int)              { m.StoredBytesTotal.Add(float64(n)) }
func (m *Metrics) AddWriteRequests(n int)            { m.WriteRequestsTotal.Add(float64(n)) }
func (m *Metrics) AddWords(n int)                    { m.WordsTotal.Add(float64(n)) }
func (m *Metrics) AddIndexedBytes(n int)             { m.IndexedBytesTotal.Add(float64(n)) }

func (m *Metrics) ObserveColumnSize(n int) {
	for {
		cur := m.largest.Load()
		if int64(n) <= cur {
			return
		}
		if m.largest.CompareAndSwap(cur, int64(n)) {
			m.LargestColumn.Set(float64(n))
			return
		}
	}
}

// RecordBatch counts one handled batch.
func (m *Metrics) RecordBatch(outcome string) {
	m.BatchesTotal.WithLabelValues(outcome).Inc()
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
