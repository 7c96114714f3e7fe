package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/beaconsearch/beacon/internal/filter"
	"github.com/beaconsearch/beacon/internal/logging"
	"github.com/beaconsearch/beacon/internal/storage"
	"github.com/beaconsearch/beacon/pkg/objectstore"
)

// Exporter writes collection dumps to an object store.
type Exporter struct {
	objects objectstore.Store
	prefix  string
	logger  *logging.Logger
}

func NewExporter(objects objectstore.Store, prefix string, logger *logging.Logger) *Exporter {
	return &Exporter{objects: objects, prefix: prefix, logger: logging.OrDiscard(logger)}
}

// Export reads every document of each collection from src and writes it as
// <prefix><collection>.jsonl.zst, followed by a manifest. ObjectIDs and
// times are written as extended JSON so that Load restores them.
func (e *Exporter) Export(ctx context.Context, src storage.Store, collections []string) ([]LoadReport, error) {
	reports := make([]LoadReport, 0, len(collections))
	for _, collection := range collections {
		docs, err := src.Find(ctx, collection, nil, storage.FindOptions{})
		if err != nil {
			return reports, fmt.Errorf("read %s: %w", collection, err)
		}
		raw, err := Encode(docs)
		if err != nil {
			return reports, fmt.Errorf("encode %s: %w", collection, err)
		}

		compressed, err := compress(raw)
		if err != nil {
			return reports, fmt.Errorf("compress %s: %w", collection, err)
		}
		key := e.prefix + collection + ExtJSONLZstd
		if _, err := e.objects.Put(ctx, key, bytes.NewReader(compressed), int64(len(compressed)), &objectstore.PutOptions{
			ContentType: "application/zstd",
		}); err != nil {
			return reports, fmt.Errorf("write %s: %w", key, err)
		}

		report := LoadReport{
			Collection: collection,
			Key:        key,
			Documents:  len(docs),
			Bytes:      int64(len(raw)),
			Checksum:   xxhash.Sum64(raw),
		}
		e.logger.Info("collection exported",
			"collection", collection,
			"key", key,
			"documents", report.Documents,
			"compressed_bytes", len(compressed),
		)
		reports = append(reports, report)
	}

	manifest := newManifest(reports)
	if err := writeManifest(ctx, e.objects, e.prefix, manifest); err != nil {
		return reports, fmt.Errorf("write manifest: %w", err)
	}
	e.logger.Info("snapshot exported", "snapshot_id", manifest.SnapshotID, "collections", len(reports))
	return reports, nil
}

// Encode renders documents as JSON lines.
func Encode(docs []filter.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		if err := enc.Encode(wrapExtended(map[string]any(doc))); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func wrapExtended(v any) any {
	switch val := v.(type) {
	case primitive.ObjectID:
		return map[string]any{"$oid": val.Hex()}
	case time.Time:
		return map[string]any{"$date": val.UTC().Format(time.RFC3339Nano)}
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = wrapExtended(item)
		}
		return out
	case filter.Document:
		return wrapExtended(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = wrapExtended(item)
		}
		return out
	default:
		return v
	}
}
