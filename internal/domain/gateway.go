package domain

import "context"

// PersistenceGateway is the async storage port behind the composition engine.
// The engine mutates its in-memory state first and then calls the gateway;
// a gateway failure is surfaced to the caller but the optimistic state is
// kept (the link is marked dirty for later reconciliation).
//
// Implementations map their driver errors onto the sentinel taxonomy:
// missing rows → ErrNotFound, still-referenced deletes → ErrConflict,
// anything transport- or engine-level → ErrDatabaseError.
type PersistenceGateway interface {
	CreateBlockInstance(ctx context.Context, b *BlockInstance) error
	GetBlockInstance(ctx context.Context, id string) (*BlockInstance, error)
	UpdateBlockInstance(ctx context.Context, b *BlockInstance) error
	// DeleteBlockInstance removes a block that no document references.
	// Fails with ErrConflict while the reference count is non-zero.
	DeleteBlockInstance(ctx context.Context, id string) error

	// LinkBlockToDocument upserts: linking an already-linked block updates
	// its position. Reconciliation replays rely on that.
	LinkBlockToDocument(ctx context.Context, documentID, blockID string, position int) error
	// InsertBlockAt links a block at position, atomically shifting every
	// link at or above it up by one first. The durable counterpart of a
	// mid-list insert; appends degrade to a zero-row shift.
	InsertBlockAt(ctx context.Context, documentID, blockID string, position int) error
	UnlinkBlockFromDocument(ctx context.Context, documentID, blockID string) error
	// RelinkBlock swaps which block an existing link points at, keeping its
	// position. Atomic: no other link's position moves.
	RelinkBlock(ctx context.Context, documentID, oldBlockID, newBlockID string) error
	// Reorder applies the bounded-range position shift for a move, atomically:
	// from < to decrements (from, to], from > to increments [to, from), then
	// the moved link lands on to. Never a full-list rewrite.
	Reorder(ctx context.Context, documentID, blockID string, from, to int) error

	ListLinks(ctx context.Context, documentID string) ([]BlockLink, error)
	CountDocumentsReferencing(ctx context.Context, blockID string) (int, error)
}
