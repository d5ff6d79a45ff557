package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"resumekit/internal/domain"
)

// mockGateway is an in-memory PersistenceGateway with failure injection.
// It mirrors the durable side of the write-through contract so tests can
// compare the engine's optimistic state against "storage".
type mockGateway struct {
	mu        sync.Mutex
	instances map[string]*domain.BlockInstance
	links     map[string][]domain.BlockLink // documentID → links

	// failNext, when set, fails every write until cleared.
	failNext error

	linkCalls    int
	unlinkCalls  int
	reorderCalls int
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		instances: make(map[string]*domain.BlockInstance),
		links:     make(map[string][]domain.BlockLink),
	}
}

func (m *mockGateway) fail(err error) { m.failNext = err }
func (m *mockGateway) ok()            { m.failNext = nil }

// seed installs a block instance without going through CreateBlockInstance.
func (m *mockGateway) seed(id string, t domain.BlockType, owner string, payload domain.Payload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[id] = &domain.BlockInstance{
		ID: id, Type: t, OwnerUserID: owner, Payload: payload,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
}

// storedLinks returns storage's view of a document, ordered.
func (m *mockGateway) storedLinks(documentID string) []domain.BlockLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.BlockLink(nil), m.links[documentID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (m *mockGateway) CreateBlockInstance(_ context.Context, b *domain.BlockInstance) error {
	if m.failNext != nil {
		return m.failNext
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	cp := *b
	m.instances[b.ID] = &cp
	return nil
}

func (m *mockGateway) GetBlockInstance(_ context.Context, id string) (*domain.BlockInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.instances[id]
	if !ok {
		return nil, fmt.Errorf("block instance %s: %w", id, domain.ErrNotFound)
	}
	cp := *b
	cp.Payload = b.Payload.Clone()
	return &cp, nil
}

func (m *mockGateway) UpdateBlockInstance(_ context.Context, b *domain.BlockInstance) error {
	if m.failNext != nil {
		return m.failNext
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[b.ID]; !ok {
		return fmt.Errorf("block instance %s: %w", b.ID, domain.ErrNotFound)
	}
	b.UpdatedAt = time.Now()
	cp := *b
	m.instances[b.ID] = &cp
	return nil
}

func (m *mockGateway) DeleteBlockInstance(_ context.Context, id string) error {
	if m.failNext != nil {
		return m.failNext
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, links := range m.links {
		for _, l := range links {
			if l.BlockID == id {
				return fmt.Errorf("block instance %s still referenced: %w", id, domain.ErrConflict)
			}
		}
	}
	if _, ok := m.instances[id]; !ok {
		return fmt.Errorf("block instance %s: %w", id, domain.ErrNotFound)
	}
	delete(m.instances, id)
	return nil
}

func (m *mockGateway) LinkBlockToDocument(_ context.Context, documentID, blockID string, position int) error {
	m.linkCalls++
	if m.failNext != nil {
		return m.failNext
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	links := m.links[documentID]
	for i := range links {
		if links[i].BlockID == blockID {
			links[i].Position = position // upsert
			return nil
		}
	}
	var t domain.BlockType
	if b, ok := m.instances[blockID]; ok {
		t = b.Type
	}
	m.links[documentID] = append(links, domain.BlockLink{
		DocumentID: documentID, BlockID: blockID, Type: t, Position: position,
	})
	return nil
}

func (m *mockGateway) InsertBlockAt(_ context.Context, documentID, blockID string, position int) error {
	m.linkCalls++
	if m.failNext != nil {
		return m.failNext
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	links := m.links[documentID]
	for i := range links {
		if links[i].Position >= position {
			links[i].Position++
		}
	}
	var t domain.BlockType
	if b, ok := m.instances[blockID]; ok {
		t = b.Type
	}
	m.links[documentID] = append(links, domain.BlockLink{
		DocumentID: documentID, BlockID: blockID, Type: t, Position: position,
	})
	return nil
}

func (m *mockGateway) RelinkBlock(_ context.Context, documentID, oldBlockID, newBlockID string) error {
	if m.failNext != nil {
		return m.failNext
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	links := m.links[documentID]
	for i := range links {
		if links[i].BlockID == oldBlockID {
			links[i].BlockID = newBlockID
			if b, ok := m.instances[newBlockID]; ok {
				links[i].Type = b.Type
			}
			return nil
		}
	}
	return fmt.Errorf("link %s/%s: %w", documentID, oldBlockID, domain.ErrNotFound)
}

func (m *mockGateway) UnlinkBlockFromDocument(_ context.Context, documentID, blockID string) error {
	m.unlinkCalls++
	if m.failNext != nil {
		return m.failNext
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	links := m.links[documentID]
	for i, l := range links {
		if l.BlockID == blockID {
			p := l.Position
			links = append(links[:i], links[i+1:]...)
			for j := range links {
				if links[j].Position > p {
					links[j].Position--
				}
			}
			m.links[documentID] = links
			return nil
		}
	}
	return fmt.Errorf("link %s/%s: %w", documentID, blockID, domain.ErrNotFound)
}

func (m *mockGateway) Reorder(_ context.Context, documentID, blockID string, from, to int) error {
	m.reorderCalls++
	if m.failNext != nil {
		return m.failNext
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	links := m.links[documentID]
	found := false
	for i := range links {
		switch {
		case links[i].BlockID == blockID:
			links[i].Position = to
			found = true
		case from < to && links[i].Position > from && links[i].Position <= to:
			links[i].Position--
		case from > to && links[i].Position >= to && links[i].Position < from:
			links[i].Position++
		}
	}
	if !found {
		return fmt.Errorf("link %s/%s: %w", documentID, blockID, domain.ErrNotFound)
	}
	return nil
}

func (m *mockGateway) ListLinks(_ context.Context, documentID string) ([]domain.BlockLink, error) {
	return m.storedLinks(documentID), nil
}

func (m *mockGateway) CountDocumentsReferencing(_ context.Context, blockID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, links := range m.links {
		for _, l := range links {
			if l.BlockID == blockID {
				count++
				break
			}
		}
	}
	return count, nil
}
