package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resumekit/internal/domain"
)

// Gateway implements domain.PersistenceGateway on the local SQLite database.
type Gateway struct {
	db *DB
}

func NewGateway(db *DB) *Gateway {
	return &Gateway{db: db}
}

func (g *Gateway) CreateBlockInstance(ctx context.Context, b *domain.BlockInstance) error {
	payload, err := json.Marshal(b.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err = g.db.Conn().ExecContext(ctx,
		`INSERT INTO block_instances (id, type, payload, owner_user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Type, string(payload), b.OwnerUserID, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return dbErr("create block instance", err)
	}
	return nil
}

func (g *Gateway) GetBlockInstance(ctx context.Context, id string) (*domain.BlockInstance, error) {
	b := &domain.BlockInstance{}
	var payload string
	err := g.db.Conn().QueryRowContext(ctx,
		`SELECT id, type, payload, owner_user_id, created_at, updated_at FROM block_instances WHERE id = ?`, id,
	).Scan(&b.ID, &b.Type, &payload, &b.OwnerUserID, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("block instance %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("get block instance", err)
	}
	if err := json.Unmarshal([]byte(payload), &b.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return b, nil
}

func (g *Gateway) UpdateBlockInstance(ctx context.Context, b *domain.BlockInstance) error {
	payload, err := json.Marshal(b.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	b.UpdatedAt = time.Now().UTC()
	res, err := g.db.Conn().ExecContext(ctx,
		`UPDATE block_instances SET payload = ?, updated_at = ? WHERE id = ?`,
		string(payload), b.UpdatedAt, b.ID,
	)
	if err != nil {
		return dbErr("update block instance", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("block instance %s: %w", b.ID, domain.ErrNotFound)
	}
	return nil
}

// DeleteBlockInstance removes a block. The reference check and the delete
// run in one transaction so a concurrent link cannot slip in between.
func (g *Gateway) DeleteBlockInstance(ctx context.Context, id string) error {
	tx, err := g.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return dbErr("begin tx", err)
	}
	defer tx.Rollback()

	var refs int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM document_blocks WHERE block_id = ?`, id,
	).Scan(&refs); err != nil {
		return dbErr("count references", err)
	}
	if refs > 0 {
		return fmt.Errorf("block instance %s referenced by %d document(s): %w", id, refs, domain.ErrConflict)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM block_instances WHERE id = ?`, id)
	if err != nil {
		return dbErr("delete block instance", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("block instance %s: %w", id, domain.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return dbErr("commit", err)
	}
	return nil
}

// LinkBlockToDocument upserts the link; re-linking updates the position.
func (g *Gateway) LinkBlockToDocument(ctx context.Context, documentID, blockID string, position int) error {
	_, err := g.db.Conn().ExecContext(ctx,
		`INSERT INTO document_blocks (document_id, block_id, position) VALUES (?, ?, ?)
		 ON CONFLICT (document_id, block_id) DO UPDATE SET position = excluded.position`,
		documentID, blockID, position,
	)
	if err != nil {
		return dbErr("link block", err)
	}
	return nil
}

// InsertBlockAt shifts every link at or above position up by one and inserts
// the new link, in one transaction. The gap it opens is exactly the slot the
// new link fills, so durable positions stay dense.
func (g *Gateway) InsertBlockAt(ctx context.Context, documentID, blockID string, position int) error {
	tx, err := g.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return dbErr("begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE document_blocks SET position = position + 1 WHERE document_id = ? AND position >= ?`,
		documentID, position,
	); err != nil {
		return dbErr("open slot", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO document_blocks (document_id, block_id, position) VALUES (?, ?, ?)
		 ON CONFLICT (document_id, block_id) DO UPDATE SET position = excluded.position`,
		documentID, blockID, position,
	); err != nil {
		return dbErr("insert link", err)
	}
	if err := tx.Commit(); err != nil {
		return dbErr("commit", err)
	}
	return nil
}

// RelinkBlock points an existing link at a different block, keeping its
// position. One statement; no other link moves.
func (g *Gateway) RelinkBlock(ctx context.Context, documentID, oldBlockID, newBlockID string) error {
	res, err := g.db.Conn().ExecContext(ctx,
		`UPDATE document_blocks SET block_id = ? WHERE document_id = ? AND block_id = ?`,
		newBlockID, documentID, oldBlockID,
	)
	if err != nil {
		return dbErr("relink block", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("link %s/%s: %w", documentID, oldBlockID, domain.ErrNotFound)
	}
	return nil
}

// UnlinkBlockFromDocument deletes the link and closes the position gap in
// the same transaction.
func (g *Gateway) UnlinkBlockFromDocument(ctx context.Context, documentID, blockID string) error {
	tx, err := g.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return dbErr("begin tx", err)
	}
	defer tx.Rollback()

	var pos int
	err = tx.QueryRowContext(ctx,
		`SELECT position FROM document_blocks WHERE document_id = ? AND block_id = ?`,
		documentID, blockID,
	).Scan(&pos)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("link %s/%s: %w", documentID, blockID, domain.ErrNotFound)
	}
	if err != nil {
		return dbErr("find link", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_blocks WHERE document_id = ? AND block_id = ?`,
		documentID, blockID,
	); err != nil {
		return dbErr("delete link", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE document_blocks SET position = position - 1 WHERE document_id = ? AND position > ?`,
		documentID, pos,
	); err != nil {
		return dbErr("close gap", err)
	}
	if err := tx.Commit(); err != nil {
		return dbErr("commit", err)
	}
	return nil
}

// Reorder applies the bounded-range shift for a move atomically. Only links
// between the two positions change; nothing outside the range is rewritten.
func (g *Gateway) Reorder(ctx context.Context, documentID, blockID string, from, to int) error {
	if from == to {
		return nil
	}
	tx, err := g.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return dbErr("begin tx", err)
	}
	defer tx.Rollback()

	if from < to {
		_, err = tx.ExecContext(ctx,
			`UPDATE document_blocks SET position = position - 1
			 WHERE document_id = ? AND block_id != ? AND position > ? AND position <= ?`,
			documentID, blockID, from, to,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE document_blocks SET position = position + 1
			 WHERE document_id = ? AND block_id != ? AND position >= ? AND position < ?`,
			documentID, blockID, to, from,
		)
	}
	if err != nil {
		return dbErr("shift range", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE document_blocks SET position = ? WHERE document_id = ? AND block_id = ?`,
		to, documentID, blockID,
	)
	if err != nil {
		return dbErr("place moved block", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("link %s/%s: %w", documentID, blockID, domain.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return dbErr("commit", err)
	}
	return nil
}

func (g *Gateway) ListLinks(ctx context.Context, documentID string) ([]domain.BlockLink, error) {
	rows, err := g.db.Conn().QueryContext(ctx,
		`SELECT db.document_id, db.block_id, bi.type, db.position
		 FROM document_blocks db JOIN block_instances bi ON bi.id = db.block_id
		 WHERE db.document_id = ? ORDER BY db.position ASC`,
		documentID,
	)
	if err != nil {
		return nil, dbErr("list links", err)
	}
	defer rows.Close()

	var links []domain.BlockLink
	for rows.Next() {
		var l domain.BlockLink
		if err := rows.Scan(&l.DocumentID, &l.BlockID, &l.Type, &l.Position); err != nil {
			return nil, dbErr("scan link", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("iterate links", err)
	}
	return links, nil
}

func (g *Gateway) CountDocumentsReferencing(ctx context.Context, blockID string) (int, error) {
	var count int
	err := g.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT document_id) FROM document_blocks WHERE block_id = ?`, blockID,
	).Scan(&count)
	if err != nil {
		return 0, dbErr("count references", err)
	}
	return count, nil
}

func dbErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrDatabaseError, err)
}
