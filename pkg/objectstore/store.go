// Package objectstore reads and writes the collection dumps the beacon
// snapshot loader seeds its in-memory store from.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	ErrNotFound       = errors.New("object not found")
	ErrChecksumFailed = errors.New("checksum verification failed")
	ErrUnsupported    = errors.New("unsupported object store type")
)

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	ContentType  string
}

type ListResult struct {
	Objects     []ObjectInfo
	NextMarker  string
	IsTruncated bool
}

type PutOptions struct {
	ContentType string
	// Checksum is the base64 SHA-256 of the body. When set, a body with a
	// different digest is rejected with ErrChecksumFailed.
	Checksum string
}

type ListOptions struct {
	Prefix  string
	Marker  string
	MaxKeys int
}

const defaultMaxKeys = 1000

func (o *ListOptions) values() (prefix, marker string, maxKeys int) {
	maxKeys = defaultMaxKeys
	if o == nil {
		return "", "", maxKeys
	}
	if o.MaxKeys > 0 {
		maxKeys = o.MaxKeys
	}
	return o.Prefix, o.Marker, maxKeys
}

type Store interface {
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	Put(ctx context.Context, key string, body io.Reader, size int64, opts *PutOptions) (*ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, opts *ListOptions) (*ListResult, error)
}

// IsNotFoundError reports whether err means the object does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ListAll follows list markers until every object under prefix is returned.
func ListAll(ctx context.Context, store Store, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	opts := &ListOptions{Prefix: prefix}
	for {
		res, err := store.List(ctx, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, res.Objects...)
		if !res.IsTruncated || res.NextMarker == "" {
			return out, nil
		}
		opts.Marker = res.NextMarker
	}
}

// Config selects and configures a backend.
type Config struct {
	Type      string // memory, fs or s3
	RootPath  string
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// New creates the backend named by cfg.Type, wrapped with metrics.
func New(cfg Config) (Store, error) {
	var (
		inner Store
		err   error
	)
	switch cfg.Type {
	case "", "memory":
		inner = NewMemoryStore()
	case "fs":
		if cfg.RootPath == "" {
			return nil, fmt.Errorf("fs object store requires a root path")
		}
		inner, err = NewFSStore(cfg.RootPath)
	case "s3":
		inner, err = NewS3Store(S3Config{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return NewInstrumentedStore(inner), nil
}
