package blob

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"
)

type object struct {
	data        []byte
	contentType string
}

// MemoryStore keeps objects in process, used in tests and local runs
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	baseURL string
	objects map[string]object
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. URLs are built as baseURL/bucket/path.
func NewMemoryStore(bucket, baseURL string) *MemoryStore {
	if bucket == "" {
		bucket = "uploads"
	}
	if baseURL == "" {
		baseURL = "memory://"
	}
	return &MemoryStore{
		bucket:  bucket,
		baseURL: baseURL,
		objects: map[string]object{},
	}
}

func (m *MemoryStore) Upload(ctx context.Context, path string, data []byte, contentType string) (Ref, error) {
	path, err := CleanPath(path)
	if err != nil {
		return Ref{}, err
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	sum := md5.Sum(buf)

	m.mu.Lock()
	m.objects[path] = object{data: buf, contentType: contentType}
	m.mu.Unlock()

	return Ref{
		Bucket:      m.bucket,
		Path:        path,
		ContentType: contentType,
		Size:        int64(len(buf)),
		ETag:        hex.EncodeToString(sum[:]),
	}, nil
}

func (m *MemoryStore) DownloadURL(ctx context.Context, ref Ref) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[ref.Path]
	m.mu.RUnlock()
	if !ok {
		return "", ErrObjectNotFound
	}
	return m.baseURL + m.bucket + "/" + ref.Path, nil
}

// Get returns a copy of a stored object
func (m *MemoryStore) Get(path string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[path]
	if !ok {
		return nil, "", false
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, obj.contentType, true
}
