// Package determinism provides primitives for guaranteeing deterministic
// execution and serialization. All code that needs ordered iteration or a
// reproducible hash must use these primitives instead of bare Go maps.
package determinism

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// OrderedMap is a map that preserves insertion order on iteration, the way
// spec.md §3/§9 requires for Dict and List: "All ordered structures (Dict,
// List, group keys) must iterate in insertion order."
type OrderedMap[K comparable, V any] struct {
	mu     sync.RWMutex
	keys   []K
	values map[K]V
}

// NewOrderedMap creates a new OrderedMap.
func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{values: make(map[K]V)}
}

// Set adds or updates a key-value pair. Updating an existing key does not
// change its position.
func (m *OrderedMap[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get retrieves a value by key.
func (m *OrderedMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.values[key]
	return val, ok
}

// Delete removes a key.
func (m *OrderedMap[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Range iterates in insertion order, stopping early if fn returns false.
func (m *OrderedMap[K, V]) Range(fn func(K, V) bool) {
	m.mu.RLock()
	keys := make([]K, len(m.keys))
	copy(keys, m.keys)
	m.mu.RUnlock()

	for _, k := range keys {
		m.mu.RLock()
		v, ok := m.values[k]
		m.mu.RUnlock()
		if !ok {
			continue
		}
		if !fn(k, v) {
			break
		}
	}
}

// Keys returns all keys in insertion order.
func (m *OrderedMap[K, V]) Keys() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]K, len(m.keys))
	copy(result, m.keys)
	return result
}

// Len returns the number of entries.
func (m *OrderedMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Clone returns a shallow copy that shares no backing storage with the
// original, used when a lambda closure or pipeline node needs its own
// independent view of an environment frame's bindings.
func (m *OrderedMap[K, V]) Clone() *OrderedMap[K, V] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := NewOrderedMap[K, V]()
	out.keys = append(out.keys, m.keys...)
	out.values = make(map[K]V, len(m.values))
	for k, v := range m.values {
		out.values[k] = v
	}
	return out
}

// StableID is a hash-derived, deterministic identifier.
type StableID string

// IDGenerator generates stable IDs from a namespace plus parts.
type IDGenerator struct {
	namespace string
}

// NewIDGenerator creates an ID generator with a namespace.
func NewIDGenerator(namespace string) *IDGenerator {
	return &IDGenerator{namespace: namespace}
}

// Generate creates a stable ID from inputs.
func (g *IDGenerator) Generate(parts ...string) StableID {
	h := sha256.New()
	h.Write([]byte(g.namespace))
	h.Write([]byte{0})
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return StableID(hex.EncodeToString(h.Sum(nil))[:16])
}

// ContentHash is a SHA-256 hash used for the pipeline build log's <hash>
// filename component (spec.md §6.2) so a rebuild of an unchanged pipeline
// yields a byte-identical log name.
type ContentHash [32]byte

// ComputeHash computes a content hash from bytes.
func ComputeHash(data []byte) ContentHash {
	return sha256.Sum256(data)
}

// Hex returns the hash as a full hex string.
func (h ContentHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 12 hex characters, the form used in build log
// filenames.
func (h ContentHash) Short() string {
	return h.Hex()[:12]
}

// CanonicalFloat renders a float64 as a canonical decimal string for JSON
// output (dag.json, build_log_*.json). It never participates in the TOBJ
// binary codec, which stores raw IEEE-754 bytes per spec.md §4.6; this exists
// solely so two runs on different platforms produce byte-identical JSON,
// generalizing the teacher's Money type, which exists for the same reason.
func CanonicalFloat(f float64) string {
	return decimal.NewFromFloat(f).String()
}

// SortedStrings returns a sorted copy of ss without mutating the input.
func SortedStrings(ss []string) []string {
	out := make([]string, len(ss))
	copy(out, ss)
	sort.Strings(out)
	return out
}
