package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/example/ec-order-engine/internal/infrastructure/search"
)

// MockIndex is a search.Index that records calls. By default it behaves
// like an index without version guards; IndexResult, IndexErr and
// IndexCallback override that.
type MockIndex struct {
	mu   sync.RWMutex
	docs map[string]map[string]search.Document

	IndexCalls    []search.Document
	GetCalls      []GetCall
	IndexResult   *bool
	IndexErr      error
	IndexCallback func(ctx context.Context, doc search.Document) (bool, error)
	GetErr        error
}

type GetCall struct {
	Collection string
	ID         string
}

func NewMockIndex() *MockIndex {
	return &MockIndex{
		docs:       make(map[string]map[string]search.Document),
		IndexCalls: make([]search.Document, 0),
	}
}

// Reject makes every IndexDocument call a soft failure.
func (m *MockIndex) Reject() {
	no := false
	m.IndexResult = &no
}

func (m *MockIndex) IndexDocument(ctx context.Context, doc search.Document) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.IndexCalls = append(m.IndexCalls, doc)

	if m.IndexCallback != nil {
		return m.IndexCallback(ctx, doc)
	}
	if m.IndexErr != nil {
		return false, m.IndexErr
	}
	if m.IndexResult != nil && !*m.IndexResult {
		return false, nil
	}
	m.put(doc)
	return true, nil
}

func (m *MockIndex) Get(ctx context.Context, collection, id string, dest any) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls = append(m.GetCalls, GetCall{Collection: collection, ID: id})
	if m.GetErr != nil {
		return false, 0, m.GetErr
	}
	doc, ok := m.docs[collection][id]
	if !ok {
		return false, 0, nil
	}
	if err := remarshal(doc.Body, dest); err != nil {
		return false, 0, err
	}
	return true, doc.Version, nil
}

func (m *MockIndex) List(ctx context.Context, collection string, limit int) ([]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]json.RawMessage, 0, len(m.docs[collection]))
	for _, doc := range m.docs[collection] {
		body, err := json.Marshal(doc.Body)
		if err != nil {
			return nil, err
		}
		out = append(out, body)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetDocument stores a document directly for testing.
func (m *MockIndex) SetDocument(doc search.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(doc)
}

// Document returns the stored body decoded into dest, without recording a call.
func (m *MockIndex) Document(collection, id string, dest any) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[collection][id]
	if !ok || remarshal(doc.Body, dest) != nil {
		return 0, false
	}
	return doc.Version, true
}

func (m *MockIndex) put(doc search.Document) {
	if m.docs[doc.Collection] == nil {
		m.docs[doc.Collection] = make(map[string]search.Document)
	}
	m.docs[doc.Collection][doc.ID] = doc
}

func remarshal(src, dest any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
