package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/beaconsearch/beacon/internal/version"
	"github.com/beaconsearch/beacon/pkg/objectstore"
)

// ManifestKey is the object name, relative to the prefix, of a snapshot manifest.
const ManifestKey = "manifest.json"

var ErrChecksumMismatch = errors.New("dump checksum does not match manifest")

// Manifest describes one export: which dumps it wrote and their fingerprints.
type Manifest struct {
	SnapshotID    string       `json:"snapshot_id"`
	FormatVersion int          `json:"format_version"`
	Build         string       `json:"build"`
	CreatedAt     time.Time    `json:"created_at"`
	Collections   []LoadReport `json:"collections"`
}

func newManifest(reports []LoadReport) *Manifest {
	return &Manifest{
		SnapshotID:    uuid.NewString(),
		FormatVersion: version.DumpFormatVersionCurrent,
		Build:         version.Build,
		CreatedAt:     time.Now().UTC(),
		Collections:   reports,
	}
}

// Report returns the manifest entry for a collection.
func (m *Manifest) Report(collection string) (LoadReport, bool) {
	for _, r := range m.Collections {
		if r.Collection == collection {
			return r, true
		}
	}
	return LoadReport{}, false
}

func writeManifest(ctx context.Context, objects objectstore.Store, prefix string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	_, err = objects.Put(ctx, prefix+ManifestKey, bytes.NewReader(data), int64(len(data)), &objectstore.PutOptions{
		ContentType: "application/json",
	})
	return err
}

// ReadManifest returns the manifest under prefix, or nil when there is none.
// Dumps without a manifest are loaded unchecked.
func ReadManifest(ctx context.Context, objects objectstore.Store, prefix string) (*Manifest, error) {
	rc, _, err := objects.Get(ctx, prefix+ManifestKey)
	if objectstore.IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrMalformedDump, err)
	}
	if err := version.CheckDumpVersion(m.FormatVersion); err != nil {
		return nil, err
	}
	return &m, nil
}
