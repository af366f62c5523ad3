package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsSink(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.AddWords(2)
	m.AddStoredBytes(100)
	m.AddWriteRequests(3)
	m.AddIndexedBytes(40)
	m.ObserveColumnSize(7)
	m.ObserveColumnSize(3)
	m.ObserveStorage(20 * time.Millisecond)
	m.RecordBatch("committed")
	m.RecordBatch("committed")
	m.RecordBatch("aborted")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WordsTotal))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.StoredBytesTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.WriteRequestsTotal))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.IndexedBytesTotal))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.LargestColumn))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BatchesTotal.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesTotal.WithLabelValues("aborted")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StorageDuration))
}

func TestServerRoutes(t *testing.T) {
	checker := health.NewChecker()
	srv := NewServer(0, checker)

	for path, want := range map[string]int{
		"/metrics":      http.StatusOK,
		"/health/live":  http.StatusOK,
		"/health/ready": http.StatusOK,
		"/":             http.StatusOK,
	} {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}
