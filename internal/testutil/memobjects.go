package testutil

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/feedpress/apiserver/internal/storage"
)

// MemObjects is an in-memory storage.ObjectStorage backend.
type MemObjects struct {
	mu      sync.Mutex
	objects map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
}

func NewMemObjects() *MemObjects {
	return &MemObjects{objects: map[string]memObject{}}
}

func (m *MemObjects) EnsureBucket(ctx context.Context) error { return nil }

func (m *MemObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: data, contentType: contentType}
	return nil
}

func (m *MemObjects) Get(ctx context.Context, key string) (storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return storage.Object{}, storage.ErrObjectNotFound
	}
	return storage.Object{
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
	}, nil
}

func (m *MemObjects) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemObjects) Bucket() string { return "memory" }

// Has reports whether key is stored.
func (m *MemObjects) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}
