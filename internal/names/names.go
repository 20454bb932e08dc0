// Package names maps caller-supplied collection names onto the restricted
// charset the vector store accepts for class names, and keeps a reverse
// mapping so results can be reported under the caller's original name.
package names

import (
	"strings"
	"sync"
)

// fallbackName is used when sanitization consumes every character.
const fallbackName = "Collection"

// Sanitize converts an arbitrary caller name into a storage-safe class name:
// ASCII letters and digits only, first letter of every word upper-cased,
// leading capital guaranteed. The mapping is deterministic, so repeated
// calls with the same input always return the same storage name.
//
//	"Board Minutes 2024" -> "BoardMinutes2024"
//	"board-minutes"      -> "BoardMinutes"
//	"2024 review"        -> "C2024Review"
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	startOfWord := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			if startOfWord {
				r -= 'a' - 'A'
			}
			b.WriteRune(r)
			startOfWord = false
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			startOfWord = false
		default:
			// Everything else (spaces, punctuation, non-ASCII) separates words.
			startOfWord = true
		}
	}

	out := b.String()
	if out == "" {
		return fallbackName
	}
	if out[0] >= '0' && out[0] <= '9' {
		// Class names must begin with a letter.
		out = "C" + out
	}
	return out
}

// Registry remembers which caller name produced which storage name so the
// layer can translate store-side names back for callers. Safe for
// concurrent use; one Registry lives on each connection-scoped store.
type Registry struct {
	mu sync.RWMutex
	// byStorage maps sanitized storage name -> original caller name.
	byStorage map[string]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byStorage: make(map[string]string)}
}

// Register sanitizes name, records the mapping, and returns the storage name.
// Re-registering the same caller name is a no-op returning the same result.
func (r *Registry) Register(name string) string {
	storage := Sanitize(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byStorage[storage]; !ok {
		r.byStorage[storage] = name
	}
	return storage
}

// Lookup returns the caller name that produced storage. When the mapping is
// unknown (collection created by another actor) it returns storage itself,
// so callers always get a usable display name.
func (r *Registry) Lookup(storage string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if original, ok := r.byStorage[storage]; ok {
		return original
	}
	return storage
}
