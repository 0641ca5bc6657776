package search

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

type storedDocument struct {
	version int
	body    []byte
	seq     int
}

// MemoryIndex keeps documents in process.
type MemoryIndex struct {
	mu   sync.RWMutex
	data map[string]map[string]storedDocument // collection -> id -> document
	seq  int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		data: make(map[string]map[string]storedDocument),
	}
}

func (m *MemoryIndex) IndexDocument(ctx context.Context, doc Document) (bool, error) {
	if err := doc.validate(); err != nil {
		return false, err
	}
	body, err := json.Marshal(doc.Body)
	if err != nil {
		return false, errors.Wrapf(err, "marshal %s/%s", doc.Collection, doc.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data[doc.Collection] == nil {
		m.data[doc.Collection] = make(map[string]storedDocument)
	}
	if current, ok := m.data[doc.Collection][doc.ID]; ok && current.version > doc.Version {
		return false, nil
	}
	m.seq++
	m.data[doc.Collection][doc.ID] = storedDocument{
		version: doc.Version,
		body:    body,
		seq:     m.seq,
	}
	return true, nil
}

func (m *MemoryIndex) Get(ctx context.Context, collection, id string, dest any) (bool, int, error) {
	m.mu.RLock()
	stored, ok := m.data[collection][id]
	m.mu.RUnlock()
	if !ok {
		return false, 0, nil
	}
	if err := json.Unmarshal(stored.body, dest); err != nil {
		return false, 0, errors.Wrapf(err, "unmarshal %s/%s", collection, id)
	}
	return true, stored.version, nil
}

func (m *MemoryIndex) List(ctx context.Context, collection string, limit int) ([]json.RawMessage, error) {
	m.mu.RLock()
	docs := make([]storedDocument, 0, len(m.data[collection]))
	for _, d := range m.data[collection] {
		docs = append(docs, d)
	}
	m.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].seq > docs[j].seq })
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	out := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		out[i] = json.RawMessage(d.body)
	}
	return out, nil
}
