package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestQueryConcurrencyMetric(t *testing.T) {
	QueryConcurrency.Reset()

	coll := "genomicVariations"

	if val := testutil.ToFloat64(QueryConcurrency.WithLabelValues(coll)); val != 0 {
		t.Errorf("expected initial value 0, got %f", val)
	}

	IncQueryConcurrency(coll)
	IncQueryConcurrency(coll)
	if val := testutil.ToFloat64(QueryConcurrency.WithLabelValues(coll)); val != 2 {
		t.Errorf("expected value 2 after two incs, got %f", val)
	}

	DecQueryConcurrency(coll)
	DecQueryConcurrency(coll)
	if val := testutil.ToFloat64(QueryConcurrency.WithLabelValues(coll)); val != 0 {
		t.Errorf("expected value 0 after decs, got %f", val)
	}
}

func TestQueryConcurrencyMultipleCollections(t *testing.T) {
	QueryConcurrency.Reset()

	IncQueryConcurrency("biosamples")
	IncQueryConcurrency("biosamples")
	IncQueryConcurrency("runs")

	if val := testutil.ToFloat64(QueryConcurrency.WithLabelValues("biosamples")); val != 2 {
		t.Errorf("expected biosamples value 2, got %f", val)
	}
	if val := testutil.ToFloat64(QueryConcurrency.WithLabelValues("runs")); val != 1 {
		t.Errorf("expected runs value 1, got %f", val)
	}
}

func TestObserveQuery(t *testing.T) {
	QueriesTotal.Reset()
	QueryLatency.Reset()

	ObserveQuery("search_variants", "HIT", 0.01, nil)
	ObserveQuery("search_variants", "HIT", 0.02, nil)
	ObserveQuery("search_variants", "MISS", 0.5, errors.New("boom"))

	if val := testutil.ToFloat64(QueriesTotal.WithLabelValues("search_variants", "HIT", "success")); val != 2 {
		t.Errorf("expected 2 successful HIT queries, got %f", val)
	}
	if val := testutil.ToFloat64(QueriesTotal.WithLabelValues("search_variants", "MISS", "error")); val != 1 {
		t.Errorf("expected 1 failed MISS query, got %f", val)
	}
	if n := testutil.CollectAndCount(QueryLatency); n != 2 {
		t.Errorf("expected 2 latency series, got %d", n)
	}
}

func TestObserveStorageOp(t *testing.T) {
	StorageOps.Reset()
	StorageLatency.Reset()

	ObserveStorageOp("find", "biosamples", 0.001, nil)
	ObserveStorageOp("count", "biosamples", 0.001, errors.New("timeout"))

	if val := testutil.ToFloat64(StorageOps.WithLabelValues("find", "biosamples", "success")); val != 1 {
		t.Errorf("expected 1 find success, got %f", val)
	}
	if val := testutil.ToFloat64(StorageOps.WithLabelValues("count", "biosamples", "error")); val != 1 {
		t.Errorf("expected 1 count error, got %f", val)
	}
}

func TestObserveObjectStoreOp(t *testing.T) {
	ObjectStoreOps.Reset()
	ObjectStoreLatency.Reset()

	ObserveObjectStoreOp("get", 0.1, nil)
	ObserveObjectStoreOp("get", 0.1, errors.New("not found"))

	if val := testutil.ToFloat64(ObjectStoreOps.WithLabelValues("get", "success")); val != 1 {
		t.Errorf("expected 1 get success, got %f", val)
	}
	if val := testutil.ToFloat64(ObjectStoreOps.WithLabelValues("get", "error")); val != 1 {
		t.Errorf("expected 1 get error, got %f", val)
	}
}

func TestSnapshotDocuments(t *testing.T) {
	SnapshotDocuments.Reset()

	SetSnapshotDocuments("individuals", 42)
	if val := testutil.ToFloat64(SnapshotDocuments.WithLabelValues("individuals")); val != 42 {
		t.Errorf("expected 42, got %f", val)
	}
}

func TestObserveMissPositiveSet(t *testing.T) {
	ObserveMissPositiveSet(3)
	if n := testutil.CollectAndCount(MissPositiveSetSize); n != 1 {
		t.Errorf("expected histogram to be collected once, got %d", n)
	}
}
