// Package preview hands out displayable references for in-memory image
// binaries, in the manner of browser object URLs.
package preview

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultPrefix is the URL path previews are served from
const DefaultPrefix = "/previews/"

// Blob is the binary behind a preview reference
type Blob struct {
	Data     []byte
	MIMEType string
}

// Registry maps preview references to binaries until they are revoked
type Registry struct {
	prefix string
	blobs  map[string]Blob
	mu     sync.RWMutex
}

func NewRegistry(prefix string) *Registry {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Registry{
		prefix: prefix,
		blobs:  make(map[string]Blob),
	}
}

// Create registers a binary and returns its reference
func (r *Registry) Create(data []byte, mimeType string) string {
	ref := r.prefix + uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[ref] = Blob{Data: data, MIMEType: mimeType}
	return ref
}

// Get resolves a reference. Bare ids without the prefix are accepted.
func (r *Registry) Get(ref string) (Blob, bool) {
	if !strings.HasPrefix(ref, r.prefix) {
		ref = r.prefix + ref
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blobs[ref]
	return b, ok
}

// Revoke releases references; unknown or empty references are ignored
func (r *Registry) Revoke(refs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range refs {
		if ref != "" {
			delete(r.blobs, ref)
		}
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}
