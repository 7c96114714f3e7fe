// Package snapshot moves whole collections between a document store and an
// object store as JSON-lines dumps, optionally zstd-compressed. The server
// seeds its in-memory store from these dumps.
package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/beaconsearch/beacon/internal/filter"
	"github.com/beaconsearch/beacon/internal/logging"
	"github.com/beaconsearch/beacon/internal/metrics"
	"github.com/beaconsearch/beacon/internal/storage"
	"github.com/beaconsearch/beacon/pkg/objectstore"
)

const (
	ExtJSONL     = ".jsonl"
	ExtJSONLZstd = ".jsonl.zst"

	maxLineBytes = 16 * 1024 * 1024
)

var ErrMalformedDump = errors.New("malformed collection dump")

// LoadReport describes one collection dump read or written.
type LoadReport struct {
	Collection string `json:"collection"`
	Key        string `json:"key"`
	Documents  int    `json:"documents"`
	Bytes      int64  `json:"bytes"`
	// Checksum is the xxhash64 of the uncompressed dump.
	Checksum uint64 `json:"checksum"`
}

// CollectionOf returns the collection a dump key holds, or false when the key
// is not a dump.
func CollectionOf(key string) (string, bool) {
	base := path.Base(key)
	for _, ext := range []string{ExtJSONLZstd, ExtJSONL} {
		if strings.HasSuffix(base, ext) {
			name := strings.TrimSuffix(base, ext)
			return name, name != ""
		}
	}
	return "", false
}

// Loader reads dumps from an object store.
type Loader struct {
	objects objectstore.Store
	prefix  string
	logger  *logging.Logger
}

func NewLoader(objects objectstore.Store, prefix string, logger *logging.Logger) *Loader {
	return &Loader{objects: objects, prefix: prefix, logger: logging.OrDiscard(logger)}
}

// Load replaces every known collection that has a dump under the prefix.
// Dumps of unknown collections are skipped. When a collection has both a
// compressed and a plain dump, the compressed one wins. When the prefix holds
// a manifest, its format version must be readable and every dump it lists
// must match the recorded checksum.
func (l *Loader) Load(ctx context.Context, dst *storage.MemoryStore) ([]LoadReport, error) {
	manifest, err := ReadManifest(ctx, l.objects, l.prefix)
	if err != nil {
		return nil, err
	}
	if manifest != nil {
		l.logger.Info("snapshot manifest found",
			"snapshot_id", manifest.SnapshotID,
			"format_version", manifest.FormatVersion,
			"build", manifest.Build,
		)
	}

	objects, err := objectstore.ListAll(ctx, l.objects, l.prefix)
	if err != nil {
		return nil, fmt.Errorf("list dumps: %w", err)
	}

	chosen := make(map[string]string)
	for _, obj := range objects {
		collection, ok := CollectionOf(obj.Key)
		if !ok {
			continue
		}
		if !storage.IsKnownCollection(collection) {
			l.logger.Warn("skipping dump of unknown collection", "key", obj.Key, "collection", collection)
			continue
		}
		if prev, seen := chosen[collection]; seen && strings.HasSuffix(prev, ExtJSONLZstd) {
			continue
		}
		chosen[collection] = obj.Key
	}

	collections := make([]string, 0, len(chosen))
	for c := range chosen {
		collections = append(collections, c)
	}
	sort.Strings(collections)

	reports := make([]LoadReport, 0, len(collections))
	for _, collection := range collections {
		start := time.Now()
		key := chosen[collection]
		docs, report, err := l.loadKey(ctx, key)
		if err != nil {
			return reports, err
		}
		report.Collection = collection
		if manifest != nil {
			if want, ok := manifest.Report(collection); ok && want.Key == key && want.Checksum != report.Checksum {
				return reports, fmt.Errorf("%w: %s", ErrChecksumMismatch, key)
			}
		}
		dst.Replace(collection, docs)
		metrics.SetSnapshotDocuments(collection, len(docs))
		l.logger.Info("collection loaded",
			"collection", collection,
			"key", key,
			"documents", report.Documents,
			"bytes", report.Bytes,
			"checksum", fmt.Sprintf("%016x", report.Checksum),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		reports = append(reports, report)
	}
	return reports, nil
}

func (l *Loader) loadKey(ctx context.Context, key string) ([]filter.Document, LoadReport, error) {
	rc, _, err := l.objects.Get(ctx, key)
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("read %s: %w", key, err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if strings.HasSuffix(key, ExtJSONLZstd) {
		dec, err := zstd.NewReader(rc, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, LoadReport{}, fmt.Errorf("open %s: %w", key, err)
		}
		defer dec.Close()
		r = dec
	}

	docs, report, err := Decode(r)
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("%s: %w", key, err)
	}
	report.Key = key
	return docs, report, nil
}

// Decode reads JSON-lines documents. Blank lines are skipped and MongoDB
// extended JSON wrappers ($oid, $date, $numberLong, $numberInt,
// $numberDouble) are unwrapped.
func Decode(r io.Reader) ([]filter.Document, LoadReport, error) {
	digest := xxhash.New()
	counter := &countingReader{r: io.TeeReader(r, digest)}

	scanner := bufio.NewScanner(counter)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var docs []filter.Document
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, LoadReport{}, fmt.Errorf("%w: line %d: %v", ErrMalformedDump, line, err)
		}
		unwrapped, ok := unwrapExtended(doc).(map[string]any)
		if !ok {
			return nil, LoadReport{}, fmt.Errorf("%w: line %d: not a document", ErrMalformedDump, line)
		}
		docs = append(docs, filter.Document(unwrapped))
	}
	if err := scanner.Err(); err != nil {
		return nil, LoadReport{}, fmt.Errorf("%w: %v", ErrMalformedDump, err)
	}

	return docs, LoadReport{
		Documents: len(docs),
		Bytes:     counter.n,
		Checksum:  digest.Sum64(),
	}, nil
}

func unwrapExtended(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 1 {
			if out, ok := unwrapScalar(val); ok {
				return out
			}
		}
		for k, item := range val {
			val[k] = unwrapExtended(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = unwrapExtended(item)
		}
		return val
	default:
		return v
	}
}

func unwrapScalar(m map[string]any) (any, bool) {
	if s, ok := m["$oid"].(string); ok {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			return oid, true
		}
		return s, true
	}
	if d, ok := m["$date"]; ok {
		switch dv := d.(type) {
		case string:
			if t, err := time.Parse(time.RFC3339Nano, dv); err == nil {
				return t.UTC(), true
			}
		case float64:
			return time.UnixMilli(int64(dv)).UTC(), true
		case map[string]any:
			if n, ok := dv["$numberLong"].(string); ok {
				var ms int64
				if _, err := fmt.Sscan(n, &ms); err == nil {
					return time.UnixMilli(ms).UTC(), true
				}
			}
		}
	}
	for _, key := range []string{"$numberLong", "$numberInt"} {
		if s, ok := m[key].(string); ok {
			var n int64
			if _, err := fmt.Sscan(s, &n); err == nil {
				return n, true
			}
		}
	}
	if s, ok := m["$numberDouble"].(string); ok {
		var f float64
		if _, err := fmt.Sscan(s, &f); err == nil {
			return f, true
		}
	}
	return nil, false
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
