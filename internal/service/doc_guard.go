package service

import "sync"

// ─────────────────────────────────────────────────────────────
// docGuard — serializes operations per document
// ─────────────────────────────────────────────────────────────

// docGuard hands out one mutex per document ID. Two concurrent operations on
// the same document queue behind each other; operations on different
// documents proceed in parallel. Position arithmetic is only correct when
// each operation sees the table the previous one left behind.
type docGuard struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// forDocument returns the mutex owning documentID, creating it on first use.
func (g *docGuard) forDocument(documentID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.locks == nil {
		g.locks = make(map[string]*sync.Mutex)
	}
	l, ok := g.locks[documentID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[documentID] = l
	}
	return l
}

// Lock acquires the document's mutex, blocking until any in-flight operation
// on the same document completes.
func (g *docGuard) Lock(documentID string) {
	g.forDocument(documentID).Lock()
}

// Unlock releases the document's mutex.
func (g *docGuard) Unlock(documentID string) {
	g.forDocument(documentID).Unlock()
}
