package domain

import "time"

// Document is a resume assembled from an ordered sequence of block instances.
type Document struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"ownerUserId"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BlockLink joins a block instance to a document at an integer position.
// For a fixed document the positions of its links are exactly 0..n-1 with no
// gaps and no duplicates. A link is owned by its document; the block instance
// it points at is not.
type BlockLink struct {
	DocumentID string    `json:"documentId"`
	BlockID    string    `json:"blockId"`
	Type       BlockType `json:"type"`
	Position   int       `json:"position"`

	// Dirty marks a link whose durable write has not been confirmed.
	// In-memory only, never persisted.
	Dirty bool `json:"dirty,omitempty"`
}

// Composition is the ordered per-document view of linked blocks,
// always sorted by position.
type Composition struct {
	DocumentID string      `json:"documentId"`
	Links      []BlockLink `json:"links"`
}
