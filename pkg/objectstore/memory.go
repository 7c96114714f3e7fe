package objectstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*memoryObject
}

type memoryObject struct {
	data         []byte
	etag         string
	lastModified time.Time
	contentType  string
}

func (o *memoryObject) info(key string) *ObjectInfo {
	return &ObjectInfo{
		Key:          key,
		Size:         int64(len(o.data)),
		ETag:         o.etag,
		LastModified: o.lastModified,
		ContentType:  o.contentType,
	}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*memoryObject),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.info(key), nil
}

func (s *MemoryStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return obj.info(key), nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, body io.Reader, size int64, opts *PutOptions) (*ObjectInfo, error) {
	data, etag, err := readVerified(body, opts)
	if err != nil {
		return nil, err
	}

	obj := &memoryObject{
		data:         data,
		etag:         etag,
		lastModified: time.Now(),
	}
	if opts != nil {
		obj.contentType = opts.ContentType
	}

	s.mu.Lock()
	s.objects[key] = obj
	s.mu.Unlock()

	return obj.info(key), nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix, marker, maxKeys := opts.values()

	var keys []string
	for k := range s.objects {
		if prefix != "" && !strings.HasPrefix(k, prefix) {
			continue
		}
		if marker != "" && k <= marker {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := &ListResult{}
	for i, key := range keys {
		if i >= maxKeys {
			result.IsTruncated = true
			result.NextMarker = keys[i-1]
			break
		}
		result.Objects = append(result.Objects, *s.objects[key].info(key))
	}
	return result, nil
}

// readVerified buffers body and returns it with its ETag, checking the
// optional SHA-256 checksum.
func readVerified(body io.Reader, opts *PutOptions) ([]byte, string, error) {
	var buf bytes.Buffer
	hash := sha256.New()
	if _, err := io.Copy(&buf, io.TeeReader(body, hash)); err != nil {
		return nil, "", err
	}
	sum := hash.Sum(nil)

	if opts != nil && opts.Checksum != "" {
		checksum := base64.StdEncoding.EncodeToString(sum)
		if checksum != opts.Checksum {
			return nil, "", fmt.Errorf("%w: expected %s, got %s", ErrChecksumFailed, opts.Checksum, checksum)
		}
	}
	return buf.Bytes(), fmt.Sprintf("%x", sum[:16]), nil
}
