// Package blackboard holds per-agent scratch data that node kinds read and
// write through the executor.
package blackboard

import (
	"maps"
	"slices"
	"strings"
	"sync"
)

// Blackboard is a flat key/value store with optional namespaced views.
type Blackboard interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
	// Namespace returns a view that prefixes every key with "ns:".
	Namespace(ns string) Blackboard
	// Keys returns the visible keys, sorted.
	Keys() []string
	// Snapshot copies the visible entries.
	Snapshot() map[string]any
}

type board struct {
	mu     sync.RWMutex
	data   map[string]any
	prefix string
	root   *board
}

// New returns an empty blackboard seeded with initial.
func New(initial map[string]any) Blackboard {
	b := &board{data: make(map[string]any, len(initial))}
	b.root = b
	maps.Copy(b.data, initial)
	return b
}

func (b *board) fullKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + ":" + key
}

func (b *board) Get(key string) (any, bool) {
	r := b.root
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[b.fullKey(key)]
	return v, ok
}

func (b *board) Set(key string, value any) {
	r := b.root
	r.mu.Lock()
	r.data[b.fullKey(key)] = value
	r.mu.Unlock()
}

func (b *board) Delete(key string) {
	r := b.root
	r.mu.Lock()
	delete(r.data, b.fullKey(key))
	r.mu.Unlock()
}

func (b *board) Namespace(ns string) Blackboard {
	ns = strings.ReplaceAll(ns, ":", "_")
	return &board{root: b.root, prefix: b.fullKey(ns)}
}

func (b *board) Keys() []string {
	return slices.Sorted(maps.Keys(b.Snapshot()))
}

func (b *board) Snapshot() map[string]any {
	r := b.root
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any)
	pref := ""
	if b.prefix != "" {
		pref = b.prefix + ":"
	}
	for k, v := range r.data {
		if rest, ok := strings.CutPrefix(k, pref); ok {
			out[rest] = v
		}
	}
	return out
}

// Float reads numeric values stored under key regardless of their Go type.
func Float(bb Blackboard, key string) (float64, bool) {
	v, ok := bb.Get(key)
	if !ok {
		return 0, false
	}
	switch tv := v.(type) {
	case float64:
		return tv, true
	case float32:
		return float64(tv), true
	case int:
		return float64(tv), true
	case int64:
		return float64(tv), true
	case int32:
		return float64(tv), true
	case uint64:
		return float64(tv), true
	default:
		return 0, false
	}
}

func Bool(bb Blackboard, key string) (bool, bool) {
	v, ok := bb.Get(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
