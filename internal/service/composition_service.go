package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"resumekit/internal/blocktype"
	"resumekit/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Composition Service — ordered block links per document
// ─────────────────────────────────────────────────────────────

// DefaultMaxBlocksPerDocument caps composition size when no limit is configured.
const DefaultMaxBlocksPerDocument = 100

// CompositionService maintains, per document, the ordered list of block
// links and keeps the density invariant: positions are exactly 0..n-1, no
// gaps, no duplicates.
//
// Writes go through optimistically: the in-memory ordering is updated first,
// then the gateway is called. On gateway failure the in-memory state is NOT
// rolled back: the affected links are marked dirty, the caller gets a
// retryable error, and the reconciler re-pushes the durable state later.
//
// Operations on one document are serialized; different documents proceed in
// parallel.
type CompositionService struct {
	registry  *blocktype.Registry
	gateway   domain.PersistenceGateway
	emitter   EventEmitter
	log       zerolog.Logger
	maxBlocks int

	guard docGuard

	mu             sync.Mutex
	cache          map[string][]domain.BlockLink
	pendingUnlinks map[string]map[string]struct{}
}

// NewCompositionService creates a CompositionService. maxBlocks <= 0 selects
// the default cap.
func NewCompositionService(
	registry *blocktype.Registry,
	gateway domain.PersistenceGateway,
	emitter EventEmitter,
	log zerolog.Logger,
	maxBlocks int,
) *CompositionService {
	if maxBlocks <= 0 {
		maxBlocks = DefaultMaxBlocksPerDocument
	}
	return &CompositionService{
		registry:       registry,
		gateway:        gateway,
		emitter:        emitter,
		log:            log,
		maxBlocks:      maxBlocks,
		cache:          make(map[string][]domain.BlockLink),
		pendingUnlinks: make(map[string]map[string]struct{}),
	}
}

// Add links a block into a document. With at == nil the block is appended;
// otherwise at must be in [0, n] and every link at or above it shifts up by
// one. Returns the updated ordered list.
func (s *CompositionService) Add(ctx context.Context, documentID, blockID string, t domain.BlockType, at *int) ([]domain.BlockLink, error) {
	s.guard.Lock(documentID)
	defer s.guard.Unlock(documentID)

	desc, ok := s.registry.Get(t)
	if !ok {
		return nil, fmt.Errorf("block type %q is not registered: %w", t, domain.ErrNotFound)
	}

	links, err := s.loadLocked(ctx, documentID)
	if err != nil {
		return nil, err
	}
	n := len(links)

	if n >= s.maxBlocks {
		return nil, fmt.Errorf("document %s holds the maximum of %d blocks: %w", documentID, s.maxBlocks, domain.ErrLimitExceeded)
	}
	for _, l := range links {
		if l.BlockID == blockID {
			return nil, fmt.Errorf("block %s is already linked to document %s: %w", blockID, documentID, domain.ErrConflict)
		}
	}
	if desc.MaxInstances != nil {
		count := 0
		for _, l := range links {
			if l.Type == t {
				count++
			}
		}
		if count >= *desc.MaxInstances {
			return nil, fmt.Errorf("document %s already holds %d %s block(s), limit is %d: %w",
				documentID, count, t, *desc.MaxInstances, domain.ErrLimitExceeded)
		}
	}

	pos := n
	if at != nil {
		if *at < 0 || *at > n {
			return nil, fmt.Errorf("insert position %d outside [0, %d]: %w", *at, n, domain.ErrInvalidArgument)
		}
		pos = *at
	}

	// Optimistic: shift up, insert, then persist.
	for i := range links {
		if links[i].Position >= pos {
			links[i].Position++
		}
	}
	links = append(links, domain.BlockLink{
		DocumentID: documentID,
		BlockID:    blockID,
		Type:       t,
		Position:   pos,
	})
	sortLinks(links)
	s.storeLocked(documentID, links)

	if err := s.gateway.InsertBlockAt(ctx, documentID, blockID, pos); err != nil {
		s.markDirtyLocked(documentID, func(l *domain.BlockLink) bool { return l.Position >= pos })
		s.log.Error().Err(err).Str("document", documentID).Str("block", blockID).Msg("link write failed, composition kept optimistic")
		return s.snapshotLocked(documentID), fmt.Errorf("persist link: %w", gatewayErr(err))
	}

	s.emitter.Emit(ctx, EventCompositionChanged, domain.Composition{DocumentID: documentID, Links: s.snapshotLocked(documentID)})
	return s.snapshotLocked(documentID), nil
}

// Remove unlinks a block from a document and closes the gap it leaves.
// The block instance itself stays untouched.
func (s *CompositionService) Remove(ctx context.Context, documentID, blockID string) ([]domain.BlockLink, error) {
	s.guard.Lock(documentID)
	defer s.guard.Unlock(documentID)

	links, err := s.loadLocked(ctx, documentID)
	if err != nil {
		return nil, err
	}

	idx := indexOf(links, blockID)
	if idx < 0 {
		return nil, fmt.Errorf("block %s is not linked to document %s: %w", blockID, documentID, domain.ErrNotFound)
	}
	p := links[idx].Position

	links = append(links[:idx], links[idx+1:]...)
	for i := range links {
		if links[i].Position > p {
			links[i].Position--
		}
	}
	sortLinks(links)
	s.storeLocked(documentID, links)

	if err := s.gateway.UnlinkBlockFromDocument(ctx, documentID, blockID); err != nil {
		s.recordPendingUnlinkLocked(documentID, blockID)
		s.markDirtyLocked(documentID, func(l *domain.BlockLink) bool { return l.Position >= p })
		s.log.Error().Err(err).Str("document", documentID).Str("block", blockID).Msg("unlink write failed, composition kept optimistic")
		return s.snapshotLocked(documentID), fmt.Errorf("persist unlink: %w", gatewayErr(err))
	}

	s.emitter.Emit(ctx, EventCompositionChanged, domain.Composition{DocumentID: documentID, Links: s.snapshotLocked(documentID)})
	return s.snapshotLocked(documentID), nil
}

// Move relocates a block to a new position. Equal source and target is a
// no-op. Only the bounded range between the two positions shifts; everything
// outside it is untouched.
func (s *CompositionService) Move(ctx context.Context, documentID, blockID string, to int) ([]domain.BlockLink, error) {
	s.guard.Lock(documentID)
	defer s.guard.Unlock(documentID)

	links, err := s.loadLocked(ctx, documentID)
	if err != nil {
		return nil, err
	}
	n := len(links)

	idx := indexOf(links, blockID)
	if idx < 0 {
		return nil, fmt.Errorf("block %s is not linked to document %s: %w", blockID, documentID, domain.ErrNotFound)
	}
	if to < 0 || to > n-1 {
		return nil, fmt.Errorf("target position %d outside [0, %d]: %w", to, n-1, domain.ErrInvalidArgument)
	}

	from := links[idx].Position
	if to == from {
		return s.snapshotLocked(documentID), nil
	}

	for i := range links {
		switch {
		case links[i].BlockID == blockID:
			links[i].Position = to
		case from < to && links[i].Position > from && links[i].Position <= to:
			links[i].Position--
		case from > to && links[i].Position >= to && links[i].Position < from:
			links[i].Position++
		}
	}
	sortLinks(links)
	s.storeLocked(documentID, links)

	if err := s.gateway.Reorder(ctx, documentID, blockID, from, to); err != nil {
		lo, hi := from, to
		if lo > hi {
			lo, hi = hi, lo
		}
		s.markDirtyLocked(documentID, func(l *domain.BlockLink) bool {
			return l.Position >= lo && l.Position <= hi
		})
		s.log.Error().Err(err).Str("document", documentID).Str("block", blockID).Int("from", from).Int("to", to).Msg("reorder write failed, composition kept optimistic")
		return s.snapshotLocked(documentID), fmt.Errorf("persist reorder: %w", gatewayErr(err))
	}

	s.emitter.Emit(ctx, EventCompositionChanged, domain.Composition{DocumentID: documentID, Links: s.snapshotLocked(documentID)})
	return s.snapshotLocked(documentID), nil
}

// List returns the ordered composition as an independent snapshot.
func (s *CompositionService) List(ctx context.Context, documentID string) (domain.Composition, error) {
	s.guard.Lock(documentID)
	defer s.guard.Unlock(documentID)

	if _, err := s.loadLocked(ctx, documentID); err != nil {
		return domain.Composition{}, err
	}
	return domain.Composition{DocumentID: documentID, Links: s.snapshotLocked(documentID)}, nil
}

// ReplaceBlock swaps one linked block for another at the same position.
// Used by the shared-block duplicate path.
func (s *CompositionService) ReplaceBlock(ctx context.Context, documentID, oldBlockID, newBlockID string) error {
	s.guard.Lock(documentID)
	defer s.guard.Unlock(documentID)

	links, err := s.loadLocked(ctx, documentID)
	if err != nil {
		return err
	}
	idx := indexOf(links, oldBlockID)
	if idx < 0 {
		return fmt.Errorf("block %s is not linked to document %s: %w", oldBlockID, documentID, domain.ErrNotFound)
	}
	pos := links[idx].Position
	links[idx].BlockID = newBlockID
	s.storeLocked(documentID, links)

	if err := s.gateway.RelinkBlock(ctx, documentID, oldBlockID, newBlockID); err != nil {
		// Reconciliation replays the unlink (gap-closing) and re-upserts
		// every link from the position onward at its in-memory slot.
		s.recordPendingUnlinkLocked(documentID, oldBlockID)
		s.markDirtyLocked(documentID, func(l *domain.BlockLink) bool { return l.Position >= pos })
		return fmt.Errorf("persist relink: %w", gatewayErr(err))
	}

	s.emitter.Emit(ctx, EventCompositionChanged, domain.Composition{DocumentID: documentID, Links: s.snapshotLocked(documentID)})
	return nil
}

// Invalidate drops the cached composition so the next operation re-reads the
// durable state. Callers use it to reconcile after giving up on an error.
func (s *CompositionService) Invalidate(documentID string) {
	s.guard.Lock(documentID)
	defer s.guard.Unlock(documentID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, documentID)
	delete(s.pendingUnlinks, documentID)
}

// ── reconciliation ─────────────────────────────────────────

// ReconcileAll re-pushes unconfirmed writes for every document that has any.
// Returns the number of documents that are fully clean afterwards.
func (s *CompositionService) ReconcileAll(ctx context.Context) int {
	s.mu.Lock()
	docs := make([]string, 0)
	seen := make(map[string]struct{})
	for docID, links := range s.cache {
		for _, l := range links {
			if l.Dirty {
				docs = append(docs, docID)
				seen[docID] = struct{}{}
				break
			}
		}
	}
	for docID := range s.pendingUnlinks {
		if _, ok := seen[docID]; !ok {
			docs = append(docs, docID)
		}
	}
	s.mu.Unlock()

	clean := 0
	for _, docID := range docs {
		if err := s.ReconcileDocument(ctx, docID); err != nil {
			s.log.Warn().Err(err).Str("document", docID).Msg("reconcile pass left document dirty")
			continue
		}
		clean++
	}
	return clean
}

// ReconcileDocument replays the document's pending unlinks and re-upserts
// every dirty link. On success all dirty flags clear.
func (s *CompositionService) ReconcileDocument(ctx context.Context, documentID string) error {
	s.guard.Lock(documentID)
	defer s.guard.Unlock(documentID)

	s.mu.Lock()
	pending := make([]string, 0, len(s.pendingUnlinks[documentID]))
	for blockID := range s.pendingUnlinks[documentID] {
		pending = append(pending, blockID)
	}
	sort.Strings(pending)
	links := append([]domain.BlockLink(nil), s.cache[documentID]...)
	s.mu.Unlock()

	for _, blockID := range pending {
		err := s.gateway.UnlinkBlockFromDocument(ctx, documentID, blockID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("replay unlink %s: %w", blockID, gatewayErr(err))
		}
		s.mu.Lock()
		delete(s.pendingUnlinks[documentID], blockID)
		if len(s.pendingUnlinks[documentID]) == 0 {
			delete(s.pendingUnlinks, documentID)
		}
		s.mu.Unlock()
	}

	for _, l := range links {
		if !l.Dirty {
			continue
		}
		if err := s.gateway.LinkBlockToDocument(ctx, documentID, l.BlockID, l.Position); err != nil {
			return fmt.Errorf("replay link %s: %w", l.BlockID, gatewayErr(err))
		}
		s.mu.Lock()
		cached := s.cache[documentID]
		if i := indexOf(cached, l.BlockID); i >= 0 {
			cached[i].Dirty = false
		}
		s.mu.Unlock()
	}
	return nil
}

// ── internals ──────────────────────────────────────────────

// loadLocked returns the document's links, reading through the gateway on a
// cache miss. Caller holds the document guard.
func (s *CompositionService) loadLocked(ctx context.Context, documentID string) ([]domain.BlockLink, error) {
	s.mu.Lock()
	links, ok := s.cache[documentID]
	s.mu.Unlock()
	if ok {
		return append([]domain.BlockLink(nil), links...), nil
	}

	fetched, err := s.gateway.ListLinks(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load composition: %w", gatewayErr(err))
	}
	sortLinks(fetched)
	s.storeLocked(documentID, fetched)
	return append([]domain.BlockLink(nil), fetched...), nil
}

func (s *CompositionService) storeLocked(documentID string, links []domain.BlockLink) {
	s.mu.Lock()
	s.cache[documentID] = links
	s.mu.Unlock()
}

func (s *CompositionService) snapshotLocked(documentID string) []domain.BlockLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.BlockLink(nil), s.cache[documentID]...)
}

func (s *CompositionService) markDirtyLocked(documentID string, match func(*domain.BlockLink) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	links := s.cache[documentID]
	for i := range links {
		if match(&links[i]) {
			links[i].Dirty = true
		}
	}
}

func (s *CompositionService) recordPendingUnlinkLocked(documentID, blockID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingUnlinks[documentID] == nil {
		s.pendingUnlinks[documentID] = make(map[string]struct{})
	}
	s.pendingUnlinks[documentID][blockID] = struct{}{}
}

func sortLinks(links []domain.BlockLink) {
	sort.Slice(links, func(i, j int) bool { return links[i].Position < links[j].Position })
}

func indexOf(links []domain.BlockLink, blockID string) int {
	for i, l := range links {
		if l.BlockID == blockID {
			return i
		}
	}
	return -1
}

// gatewayErr folds a gateway failure into the retryable class unless it is
// already a classified sentinel.
func gatewayErr(err error) error {
	if errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrDatabaseError) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrDatabaseError, err)
}
