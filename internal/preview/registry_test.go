package preview

import (
	"strings"
	"testing"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry("")

	ref := r.Create([]byte("abc"), "image/png")
	if !strings.HasPrefix(ref, DefaultPrefix) {
		t.Errorf("Expected prefix %s, got %s", DefaultPrefix, ref)
	}

	blob, ok := r.Get(ref)
	if !ok || string(blob.Data) != "abc" || blob.MIMEType != "image/png" {
		t.Fatalf("Unexpected blob %+v ok=%v", blob, ok)
	}

	if _, ok := r.Get(strings.TrimPrefix(ref, DefaultPrefix)); !ok {
		t.Error("Expected bare id lookup to succeed")
	}

	other := r.Create([]byte("def"), "image/jpeg")
	if other == ref {
		t.Error("Expected unique references")
	}
	if r.Len() != 2 {
		t.Errorf("Expected 2 blobs, got %d", r.Len())
	}

	r.Revoke(ref, "", "unknown")
	if _, ok := r.Get(ref); ok {
		t.Error("Expected revoked reference to be gone")
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 blob, got %d", r.Len())
	}
}
