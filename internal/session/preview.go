package session

import (
	"strings"
	"sync"

	"github.com/segmentio/ksuid"
)

// Preview is a locally held copy of an uploaded file, served back to the
// browser for display.
type Preview struct {
	Data     []byte
	MIMEType string
}

// PreviewStore hands out preview URLs of the form <prefix><ksuid>. Every
// acquired URL must be released by its owner.
type PreviewStore struct {
	mu     sync.RWMutex
	prefix string
	items  map[string]Preview
}

func NewPreviewStore(prefix string) *PreviewStore {
	return &PreviewStore{
		prefix: prefix,
		items:  make(map[string]Preview),
	}
}

func (s *PreviewStore) Acquire(data []byte, mimeType string) string {
	id := ksuid.New().String()

	s.mu.Lock()
	s.items[id] = Preview{Data: data, MIMEType: mimeType}
	s.mu.Unlock()

	return s.prefix + id
}

func (s *PreviewStore) Get(id string) (Preview, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.items[id]
	return p, ok
}

// Release drops the preview behind url. Unknown URLs are ignored.
func (s *PreviewStore) Release(url string) {
	id := strings.TrimPrefix(url, s.prefix)

	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *PreviewStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
