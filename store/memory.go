package store

import (
	"context"
	"sync"

	"github.com/tidwall/btree"
)

// MemoryStore keeps everything in memory. Data is lost on restart.
// Safe for concurrent use. Store-native order is ascending by id.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*btree.BTree
}

type memEntry struct {
	id  string
	doc Document
}

func byID(a, b interface{}) bool {
	return a.(*memEntry).id < b.(*memEntry).id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*btree.BTree)}
}

// deepCopy returns a deep copy of a document value. Store-native values
// (timestamps, references, geo points) are immutable and shared.
func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	case []byte:
		return append([]byte(nil), val...)
	}
	return v
}

func copyDocument(doc Document) Document {
	if doc == nil {
		return Document{}
	}
	return deepCopy(doc).(map[string]any)
}

// Put inserts or replaces a document.
func (m *MemoryStore) Put(collection, id string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tree, ok := m.collections[collection]
	if !ok {
		tree = btree.NewNonConcurrent(byID)
		m.collections[collection] = tree
	}
	tree.Set(&memEntry{id: id, doc: copyDocument(doc)})
	return nil
}

// LoadDir copies every collection of a JSON data directory into memory.
func (m *MemoryStore) LoadDir(dir string) error {
	src, err := NewJsonFileStore(dir)
	if err != nil {
		return err
	}
	names, err := src.ListCollections()
	if err != nil {
		return err
	}
	for _, name := range names {
		docs, err := src.readCollection(context.Background(), name)
		if err != nil {
			return err
		}
		for id, doc := range docs {
			if err := m.Put(name, id, doc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MemoryStore) FetchPage(_ context.Context, collection string, q Query) ([]Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tree, ok := m.collections[collection]
	if !ok {
		return []Snapshot{}, nil
	}

	// Without ordering the tree order is final and the window can be cut
	// while walking.
	if q.OrderBy == "" {
		page := make([]Snapshot, 0, min(q.Limit, tree.Len()))
		skipped := 0
		tree.Ascend(nil, func(item interface{}) bool {
			if skipped < q.Offset {
				skipped++
				return true
			}
			e := item.(*memEntry)
			page = append(page, Snapshot{ID: e.id, Data: copyDocument(e.doc)})
			return len(page) < q.Limit
		})
		return page, nil
	}

	all := make([]Snapshot, 0, tree.Len())
	tree.Ascend(nil, func(item interface{}) bool {
		e := item.(*memEntry)
		all = append(all, Snapshot{ID: e.id, Data: e.doc})
		return true
	})
	page := paginate(all, q)
	for i := range page {
		page[i].Data = copyDocument(page[i].Data)
	}
	return page, nil
}

func (m *MemoryStore) FetchOne(_ context.Context, collection, id string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tree, ok := m.collections[collection]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	item := tree.Get(&memEntry{id: id})
	if item == nil {
		return Snapshot{}, ErrNotFound
	}
	e := item.(*memEntry)
	return Snapshot{ID: e.id, Data: copyDocument(e.doc)}, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
