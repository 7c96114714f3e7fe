// Package metrics provides Prometheus metrics for the beacon query service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "beacon"

var (
	// QueryConcurrency tracks per-collection concurrent query execution.
	QueryConcurrency = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "query_concurrency",
			Help:      "Number of concurrent queries per collection",
		},
		[]string{"collection"},
	)

	// QueriesTotal tracks total queries executed per entry point and result-set mode.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total queries executed",
		},
		[]string{"entry_point", "mode", "status"}, // mode: HIT/MISS/ALL/NONE/DEFAULT
	)

	// QueryLatency tracks query execution latency.
	QueryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_latency_seconds",
			Help:      "Query execution latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"entry_point", "mode"},
	)

	// StorageOps tracks document store operations.
	StorageOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_ops_total",
			Help:      "Total document store operations",
		},
		[]string{"operation", "collection", "status"}, // operation: count/find/find_one
	)

	// StorageLatency tracks document store operation latency.
	StorageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_latency_seconds",
			Help:      "Document store operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// MissPositiveSetSize tracks how many identifiers a MISS query excludes.
	MissPositiveSetSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "miss_positive_set_size",
			Help:      "Number of documents matched by the positive predicate of MISS queries",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	// ObjectStoreOps tracks object store operations.
	ObjectStoreOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objectstore_ops_total",
			Help:      "Total object store operations",
		},
		[]string{"operation", "status"}, // operation: get/put/list, status: success/error
	)

	// ObjectStoreLatency tracks object store operation latency.
	ObjectStoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "objectstore_latency_seconds",
			Help:      "Object store operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// SnapshotDocuments tracks the number of documents loaded per collection.
	SnapshotDocuments = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_documents",
			Help:      "Documents loaded from the last snapshot per collection",
		},
		[]string{"collection"},
	)
)

// IncQueryConcurrency increments the query concurrency gauge for a collection.
func IncQueryConcurrency(collection string) {
	QueryConcurrency.WithLabelValues(collection).Inc()
}

// DecQueryConcurrency decrements the query concurrency gauge for a collection.
func DecQueryConcurrency(collection string) {
	QueryConcurrency.WithLabelValues(collection).Dec()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveQuery records an entry point execution.
func ObserveQuery(entryPoint, mode string, latencySeconds float64, err error) {
	QueriesTotal.WithLabelValues(entryPoint, mode, statusOf(err)).Inc()
	QueryLatency.WithLabelValues(entryPoint, mode).Observe(latencySeconds)
}

// ObserveStorageOp records a document store operation.
func ObserveStorageOp(operation, collection string, latencySeconds float64, err error) {
	StorageOps.WithLabelValues(operation, collection, statusOf(err)).Inc()
	StorageLatency.WithLabelValues(operation).Observe(latencySeconds)
}

// ObserveMissPositiveSet records the size of a MISS positive set.
func ObserveMissPositiveSet(size int) {
	MissPositiveSetSize.Observe(float64(size))
}

// ObserveObjectStoreOp records an object store operation.
func ObserveObjectStoreOp(operation string, latencySeconds float64, err error) {
	ObjectStoreOps.WithLabelValues(operation, statusOf(err)).Inc()
	ObjectStoreLatency.WithLabelValues(operation).Observe(latencySeconds)
}

// SetSnapshotDocuments sets the loaded document count for a collection.
func SetSnapshotDocuments(collection string, n int) {
	SnapshotDocuments.WithLabelValues(collection).Set(float64(n))
}
