// Package store implements the bounded indexed store primitive (spec
// component 4.B). Every downstream store in the engine (knowledge,
// evidence, outcomes, skills, ...) composes a Bounded instead of hand
// rolling its own map-plus-eviction bookkeeping, mirroring the teacher's
// pattern of factoring shared plumbing (see internal/mcp's Registry for
// the sibling idiom applied to tool/prompt/resource tables).
package store

import "sync"

// Identified is the minimal contract a record must satisfy to live in a
// Bounded store.
type Identified interface {
	RecordID() string
}

// KeyExtractor derives a secondary index key from a record. A false
// second return means the record has no key for this index.
type KeyExtractor[T Identified] func(record T) (key string, ok bool)

// Index is a named secondary index definition.
type Index[T Identified] struct {
	Name    string
	Extract KeyExtractor[T]
}

// Bounded is a generic map-plus-indices container with FIFO eviction
// above a configured ceiling. All index lookups are guaranteed
// consistent with the live record set: put/remove/evict always update
// every index, and trims never leave a dangling id behind.
type Bounded[T Identified] struct {
	mu       sync.RWMutex
	ceiling  int
	records  map[string]T
	order    []string // insertion order, oldest first
	indices  []Index[T]
	indexMap map[string]map[string]map[string]struct{} // indexName -> key -> set of ids
	idKeys   map[string][]indexKey                      // id -> (indexName, key) pairs currently held, for O(1) purge
}

type indexKey struct {
	index string
	key   string
}

// New creates a Bounded store with the given eviction ceiling (<=0 means
// unbounded) and secondary index definitions.
func New[T Identified](ceiling int, indices ...Index[T]) *Bounded[T] {
	b := &Bounded[T]{
		ceiling:  ceiling,
		records:  make(map[string]T),
		indexMap: make(map[string]map[string]map[string]struct{}, len(indices)),
		idKeys:   make(map[string][]indexKey),
	}
	b.indices = append(b.indices, indices...)
	for _, idx := range indices {
		b.indexMap[idx.Name] = make(map[string]map[string]struct{})
	}
	return b
}

// Put inserts or replaces a record and refreshes all of its index
// entries. If the store exceeds its ceiling, the oldest record (by
// insertion order) is evicted and purged from every index. Evicted ids
// are returned, if any.
func (b *Bounded[T]) Put(record T) (evicted []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := record.RecordID()
	if _, exists := b.records[id]; exists {
		b.removeFromIndices(id)
	} else {
		b.order = append(b.order, id)
	}
	b.records[id] = record
	b.addToIndices(id, record)

	if b.ceiling > 0 {
		for len(b.order) > b.ceiling {
			oldest := b.order[0]
			b.order = b.order[1:]
			if _, ok := b.records[oldest]; ok {
				b.removeFromIndices(oldest)
				delete(b.records, oldest)
				evicted = append(evicted, oldest)
			}
		}
	}
	return evicted
}

// Get returns a record by id.
func (b *Bounded[T]) Get(id string) (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.records[id]
	return rec, ok
}

// List returns all records in insertion order.
func (b *Bounded[T]) List() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]T, 0, len(b.order))
	for _, id := range b.order {
		if rec, ok := b.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// Len returns the current number of live records.
func (b *Bounded[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// ByIndex returns the set of ids registered under key in the named
// index. Returns nil if the index or key is unknown.
func (b *Bounded[T]) ByIndex(name, key string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys, ok := b.indexMap[name]
	if !ok {
		return nil
	}
	ids, ok := keys[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		if _, ok := b.records[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Remove deletes a record from the primary map and every index.
func (b *Bounded[T]) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.records[id]; !ok {
		return false
	}
	b.removeFromIndices(id)
	delete(b.records, id)
	for i, oid := range b.order {
		if oid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

func (b *Bounded[T]) addToIndices(id string, record T) {
	var held []indexKey
	for _, idx := range b.indices {
		key, ok := idx.Extract(record)
		if !ok {
			continue
		}
		bucket, ok := b.indexMap[idx.Name][key]
		if !ok {
			bucket = make(map[string]struct{})
			b.indexMap[idx.Name][key] = bucket
		}
		bucket[id] = struct{}{}
		held = append(held, indexKey{index: idx.Name, key: key})
	}
	b.idKeys[id] = held
}

// removeFromIndices purges id from every index bucket it currently holds
// a membership in, using the id->keys reverse map so eviction and
// replacement are O(held indices) rather than a scan of every bucket.
func (b *Bounded[T]) removeFromIndices(id string) {
	for _, ik := range b.idKeys[id] {
		bucket := b.indexMap[ik.index]
		if ids, ok := bucket[ik.key]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(bucket, ik.key)
			}
		}
	}
	delete(b.idKeys, id)
}
