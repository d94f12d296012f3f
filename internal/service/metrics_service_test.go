package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/documents", http.StatusOK, 20*time.Millisecond)
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/documents", http.StatusOK, 40*time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(false, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.ObserveDBQuery("documents.list", 10*time.Millisecond)
	metrics.RecordOutboxTask(models.TaskDeleteStorageFile, OutboxOutcomeDone, time.Millisecond)
	metrics.RecordOutboxTask(models.TaskDeleteStorageFile, OutboxOutcomeRetry, time.Millisecond)
	metrics.RecordOutboxTask(models.TaskIndexKeywords, OutboxOutcomeFailed, time.Millisecond)
	metrics.SetOutboxBacklog(map[models.OutboxStatus]int{models.OutboxPending: 4})

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.RequestsTotal)
	assert.InDelta(t, 30, snapshot.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(2), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
	assert.InDelta(t, 2.0/3.0, snapshot.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(1), snapshot.DBQueryCount)
	assert.Equal(t, uint64(1), snapshot.OutboxProcessed)
	assert.Equal(t, uint64(1), snapshot.OutboxFailed)
	assert.Equal(t, int64(4), snapshot.OutboxBacklog[string(models.OutboxPending)])
	assert.Equal(t, int64(0), snapshot.OutboxBacklog[string(models.OutboxFailed)])
	assert.Positive(t, snapshot.Goroutines)

	assert.Equal(t, float64(4), testutil.ToFloat64(metrics.outboxBacklog.WithLabelValues(string(models.OutboxPending))))
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordOutboxTask(models.TaskIndexKeywords, OutboxOutcomeDone, time.Millisecond)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "outbox_tasks_total")
}

func TestMetricsServiceNilIsSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	metrics.RecordOutboxTask("x", OutboxOutcomeDone, time.Millisecond)
	metrics.SetOutboxBacklog(nil)
	assert.Equal(t, models.SystemMetrics{}, metrics.Snapshot())

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
