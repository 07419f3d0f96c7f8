package testutil

import (
	"context"
	"sync"

	"github.com/feedpress/apiserver/internal/storage"
)

// Published is one message captured by a RecordingPublisher.
type Published struct {
	Channel string
	Data    []byte
	Attrs   map[string]string
}

// RecordingPublisher captures published messages instead of sending them.
type RecordingPublisher struct {
	mu       sync.Mutex
	Messages []Published
	Err      error
}

func (p *RecordingPublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	p.Messages = append(p.Messages, Published{Channel: channel, Data: data, Attrs: attrs})
	return "msg-" + channel, nil
}

// RecordingImages applies the storage key layout to decide ownership and
// records every removal.
type RecordingImages struct {
	mu      sync.Mutex
	Removed []string
	Err     error
}

func (r *RecordingImages) Managed(path string) bool {
	return storage.IsManagedImage(path)
}

func (r *RecordingImages) OwnedBy(path string, userID int64) bool {
	owner, ok := storage.ImageOwner(path)
	return ok && owner == userID
}

func (r *RecordingImages) Remove(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Removed = append(r.Removed, path)
	return r.Err
}
