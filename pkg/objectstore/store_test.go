package objectstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/beaconsearch/beacon/internal/metrics"
)

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, NewMemoryStore())
}

func TestFSStore(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create fs store: %v", err)
	}
	runStoreTests(t, store)
}

func TestInstrumentedStore(t *testing.T) {
	runStoreTests(t, NewInstrumentedStore(NewMemoryStore()))
}

func runStoreTests(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("basic CRUD", func(t *testing.T) {
		testBasicCRUD(t, ctx, store)
	})
	t.Run("list operations", func(t *testing.T) {
		testListOperations(t, ctx, store)
	})
	t.Run("checksum verification", func(t *testing.T) {
		testChecksumVerification(t, ctx, store)
	})
}

func testBasicCRUD(t *testing.T, ctx context.Context, store Store) {
	key := "dumps/genomicVariations.jsonl"
	content := []byte(`{"variantInternalId":"v1"}` + "\n")

	info, err := store.Put(ctx, key, bytes.NewReader(content), int64(len(content)), &PutOptions{ContentType: "application/x-ndjson"})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if info.ETag == "" || info.Size != int64(len(content)) {
		t.Errorf("unexpected put info %+v", info)
	}

	head, err := store.Head(ctx, key)
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if head.ETag != info.ETag || head.ContentType != "application/x-ndjson" {
		t.Errorf("Head = %+v, want etag %s", head, info.ETag)
	}

	rc, got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("content = %q, want %q", data, content)
	}
	if got.Size != int64(len(content)) {
		t.Errorf("size = %d", got.Size)
	}

	replacement := []byte("{}\n")
	info2, err := store.Put(ctx, key, bytes.NewReader(replacement), int64(len(replacement)), nil)
	if err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if info2.ETag == info.ETag {
		t.Error("expected a new etag after overwrite")
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, _, err := store.Get(ctx, key); !IsNotFoundError(err) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := store.Head(ctx, key); !IsNotFoundError(err) {
		t.Errorf("expected ErrNotFound from Head, got %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Errorf("deleting a missing object should succeed, got %v", err)
	}
}

func testListOperations(t *testing.T, ctx context.Context, store Store) {
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("list/obj-%d.jsonl", i)
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), 1, nil); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if _, err := store.Put(ctx, "other/obj.jsonl", bytes.NewReader([]byte("x")), 1, nil); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	res, err := store.List(ctx, &ListOptions{Prefix: "list/"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(res.Objects) != 5 || res.IsTruncated {
		t.Fatalf("expected 5 objects, got %d (truncated=%v)", len(res.Objects), res.IsTruncated)
	}
	for i, obj := range res.Objects {
		if want := fmt.Sprintf("list/obj-%d.jsonl", i); obj.Key != want {
			t.Errorf("object %d = %s, want %s", i, obj.Key, want)
		}
	}

	page, err := store.List(ctx, &ListOptions{Prefix: "list/", MaxKeys: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page.Objects) != 2 || !page.IsTruncated || page.NextMarker != "list/obj-1.jsonl" {
		t.Errorf("unexpected first page %+v", page)
	}

	next, err := store.List(ctx, &ListOptions{Prefix: "list/", Marker: page.NextMarker})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(next.Objects) != 3 || next.Objects[0].Key != "list/obj-2.jsonl" {
		t.Errorf("unexpected second page %+v", next)
	}

	all, err := ListAll(ctx, pagedStore{Store: store, maxKeys: 2}, "list/")
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("ListAll returned %d objects, want 5", len(all))
	}
}

func testChecksumVerification(t *testing.T, ctx context.Context, store Store) {
	content := []byte("checksummed dump")
	sum := sha256.Sum256(content)
	good := base64.StdEncoding.EncodeToString(sum[:])

	if _, err := store.Put(ctx, "sum/ok", bytes.NewReader(content), int64(len(content)), &PutOptions{Checksum: good}); err != nil {
		t.Fatalf("Put with valid checksum failed: %v", err)
	}

	bad := base64.StdEncoding.EncodeToString(make([]byte, 32))
	_, err := store.Put(ctx, "sum/bad", bytes.NewReader(content), int64(len(content)), &PutOptions{Checksum: bad})
	if !errors.Is(err, ErrChecksumFailed) {
		t.Errorf("expected ErrChecksumFailed, got %v", err)
	}
	if _, err := store.Head(ctx, "sum/bad"); !IsNotFoundError(err) {
		t.Errorf("rejected object must not be stored, got %v", err)
	}
}

// pagedStore caps every List call so ListAll has to follow markers.
type pagedStore struct {
	Store
	maxKeys int
}

func (p pagedStore) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
	o := *opts
	o.MaxKeys = p.maxKeys
	return p.Store.List(ctx, &o)
}

func TestFSStoreCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "subdir", "nested")
	store, err := NewFSStore(root)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if _, err := store.Put(context.Background(), "a/b.jsonl", bytes.NewReader([]byte("x")), 1, nil); err != nil {
		t.Errorf("Put after creation failed: %v", err)
	}
	res, err := store.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(res.Objects) != 1 || res.Objects[0].Key != "a/b.jsonl" {
		t.Errorf("unexpected listing %+v", res.Objects)
	}
}

func TestFSStoreEmptyList(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	res, err := store.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(res.Objects) != 0 {
		t.Errorf("expected no objects, got %d", len(res.Objects))
	}
}

func TestInstrumentedStoreMetrics(t *testing.T) {
	store := NewInstrumentedStore(NewMemoryStore())
	ctx := context.Background()

	okGet := metrics.ObjectStoreOps.WithLabelValues("get", "success")
	errGet := metrics.ObjectStoreOps.WithLabelValues("get", "error")
	okBefore, errBefore := testutil.ToFloat64(okGet), testutil.ToFloat64(errGet)

	store.Put(ctx, "k", bytes.NewReader([]byte("v")), 1, nil)
	rc, _, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	rc.Close()
	store.Get(ctx, "missing")

	if got := testutil.ToFloat64(okGet); got != okBefore+1 {
		t.Errorf("success count = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(errGet); got != errBefore+1 {
		t.Errorf("error count = %v, want %v", got, errBefore+1)
	}
	if _, ok := store.Unwrap().(*MemoryStore); !ok {
		t.Errorf("Unwrap returned %T", store.Unwrap())
	}
}

func TestNewStoreFactory(t *testing.T) {
	t.Run("memory store", func(t *testing.T) {
		store, err := New(Config{Type: "memory"})
		if err != nil {
			t.Fatalf("New memory store failed: %v", err)
		}
		if _, err := store.Put(context.Background(), "test.txt", bytes.NewReader([]byte("test")), 4, nil); err != nil {
			t.Errorf("Put failed: %v", err)
		}
	})

	t.Run("default is memory", func(t *testing.T) {
		store, err := New(Config{})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if _, ok := store.(*InstrumentedStore).Unwrap().(*MemoryStore); !ok {
			t.Errorf("expected a memory backend, got %T", store)
		}
	})

	t.Run("filesystem store", func(t *testing.T) {
		store, err := New(Config{Type: "fs", RootPath: t.TempDir()})
		if err != nil {
			t.Fatalf("New fs store failed: %v", err)
		}
		if _, ok := store.(*InstrumentedStore).Unwrap().(*FSStore); !ok {
			t.Errorf("expected an fs backend, got %T", store)
		}
	})

	t.Run("filesystem store without root", func(t *testing.T) {
		if _, err := New(Config{Type: "fs"}); err == nil {
			t.Error("expected error for missing root path")
		}
	})

	t.Run("s3 store without bucket", func(t *testing.T) {
		if _, err := New(Config{Type: "s3", Endpoint: "localhost:9000"}); err == nil {
			t.Error("expected error for missing bucket")
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := New(Config{Type: "unknown"})
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("expected ErrUnsupported, got %v", err)
		}
	})
}
