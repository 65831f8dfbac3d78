package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"quizhive/internal/domain"
)

// ImageStore keeps uploaded images in process memory. Refs are opaque UUIDs
// embedded in question payloads; the bytes are served back over HTTP.
type ImageStore struct {
	mu     sync.RWMutex
	images map[domain.ImageRef]storedImage
}

type storedImage struct {
	contentType string
	data        []byte
}

func NewImageStore() *ImageStore {
	return &ImageStore{images: make(map[domain.ImageRef]storedImage)}
}

func (s *ImageStore) Save(_ context.Context, contentType string, data []byte) (domain.ImageRef, error) {
	ref := domain.ImageRef(uuid.NewString())
	s.mu.Lock()
	s.images[ref] = storedImage{contentType: contentType, data: append([]byte(nil), data...)}
	s.mu.Unlock()
	return ref, nil
}

// Get returns the stored bytes for serving; ok is false for unknown refs.
func (s *ImageStore) Get(_ context.Context, ref domain.ImageRef) (string, []byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[ref]
	if !ok {
		return "", nil, false
	}
	return img.contentType, img.data, true
}
