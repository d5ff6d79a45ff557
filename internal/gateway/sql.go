package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"resumekit/internal/domain"
)

// sqlGateway is the shared implementation for Postgres and MySQL. The two
// dialects differ only in placeholder style, the link-upsert statement, and
// how the reorder shift is made atomic.
type sqlGateway struct {
	driverName string
	db         *sql.DB
	upsertLink string
	// reorder applies the bounded-range shift inside tx. Postgres delegates
	// to a stored function; MySQL runs the two range updates itself.
	reorder func(ctx context.Context, tx *sql.Tx, documentID, blockID string, from, to int) error
}

func openSQL(driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)
	return db, nil
}

// rebind converts ?-style placeholders to the driver's native style.
func (g *sqlGateway) rebind(query string) string {
	if g.driverName != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (g *sqlGateway) CreateBlockInstance(ctx context.Context, b *domain.BlockInstance) error {
	payload, err := json.Marshal(b.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err = g.db.ExecContext(ctx, g.rebind(
		`INSERT INTO block_instances (id, type, payload, owner_user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
		b.ID, b.Type, string(payload), b.OwnerUserID, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return remoteErr("create block instance", err)
	}
	return nil
}

func (g *sqlGateway) GetBlockInstance(ctx context.Context, id string) (*domain.BlockInstance, error) {
	b := &domain.BlockInstance{}
	var payload string
	err := g.db.QueryRowContext(ctx, g.rebind(
		`SELECT id, type, payload, owner_user_id, created_at, updated_at FROM block_instances WHERE id = ?`), id,
	).Scan(&b.ID, &b.Type, &payload, &b.OwnerUserID, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("block instance %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, remoteErr("get block instance", err)
	}
	if err := json.Unmarshal([]byte(payload), &b.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return b, nil
}

func (g *sqlGateway) UpdateBlockInstance(ctx context.Context, b *domain.BlockInstance) error {
	payload, err := json.Marshal(b.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	b.UpdatedAt = time.Now().UTC()
	res, err := g.db.ExecContext(ctx, g.rebind(
		`UPDATE block_instances SET payload = ?, updated_at = ? WHERE id = ?`),
		string(payload), b.UpdatedAt, b.ID,
	)
	if err != nil {
		return remoteErr("update block instance", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("block instance %s: %w", b.ID, domain.ErrNotFound)
	}
	return nil
}

func (g *sqlGateway) DeleteBlockInstance(ctx context.Context, id string) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return remoteErr("begin tx", err)
	}
	defer tx.Rollback()

	var refs int
	if err := tx.QueryRowContext(ctx, g.rebind(
		`SELECT COUNT(*) FROM document_blocks WHERE block_id = ?`), id,
	).Scan(&refs); err != nil {
		return remoteErr("count references", err)
	}
	if refs > 0 {
		return fmt.Errorf("block instance %s referenced by %d document(s): %w", id, refs, domain.ErrConflict)
	}

	res, err := tx.ExecContext(ctx, g.rebind(`DELETE FROM block_instances WHERE id = ?`), id)
	if err != nil {
		return remoteErr("delete block instance", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("block instance %s: %w", id, domain.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return remoteErr("commit", err)
	}
	return nil
}

func (g *sqlGateway) LinkBlockToDocument(ctx context.Context, documentID, blockID string, position int) error {
	if _, err := g.db.ExecContext(ctx, g.rebind(g.upsertLink), documentID, blockID, position); err != nil {
		return remoteErr("link block", err)
	}
	return nil
}

// InsertBlockAt opens a slot by shifting links at or above position up by
// one, then upserts the new link into it. Both statements run in one
// transaction so durable positions stay dense.
func (g *sqlGateway) InsertBlockAt(ctx context.Context, documentID, blockID string, position int) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return remoteErr("begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, g.rebind(
		`UPDATE document_blocks SET position = position + 1 WHERE document_id = ? AND position >= ?`),
		documentID, position,
	); err != nil {
		return remoteErr("open slot", err)
	}
	if _, err := tx.ExecContext(ctx, g.rebind(g.upsertLink), documentID, blockID, position); err != nil {
		return remoteErr("insert link", err)
	}
	if err := tx.Commit(); err != nil {
		return remoteErr("commit", err)
	}
	return nil
}

// RelinkBlock points an existing link at a different block in place. One
// statement, so the link's position and every other link stay untouched.
func (g *sqlGateway) RelinkBlock(ctx context.Context, documentID, oldBlockID, newBlockID string) error {
	res, err := g.db.ExecContext(ctx, g.rebind(
		`UPDATE document_blocks SET block_id = ? WHERE document_id = ? AND block_id = ?`),
		newBlockID, documentID, oldBlockID,
	)
	if err != nil {
		return remoteErr("relink block", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("link %s/%s: %w", documentID, oldBlockID, domain.ErrNotFound)
	}
	return nil
}

func (g *sqlGateway) UnlinkBlockFromDocument(ctx context.Context, documentID, blockID string) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return remoteErr("begin tx", err)
	}
	defer tx.Rollback()

	var pos int
	err = tx.QueryRowContext(ctx, g.rebind(
		`SELECT position FROM document_blocks WHERE document_id = ? AND block_id = ?`),
		documentID, blockID,
	).Scan(&pos)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("link %s/%s: %w", documentID, blockID, domain.ErrNotFound)
	}
	if err != nil {
		return remoteErr("find link", err)
	}

	if _, err := tx.ExecContext(ctx, g.rebind(
		`DELETE FROM document_blocks WHERE document_id = ? AND block_id = ?`),
		documentID, blockID,
	); err != nil {
		return remoteErr("delete link", err)
	}
	if _, err := tx.ExecContext(ctx, g.rebind(
		`UPDATE document_blocks SET position = position - 1 WHERE document_id = ? AND position > ?`),
		documentID, pos,
	); err != nil {
		return remoteErr("close gap", err)
	}
	if err := tx.Commit(); err != nil {
		return remoteErr("commit", err)
	}
	return nil
}

func (g *sqlGateway) Reorder(ctx context.Context, documentID, blockID string, from, to int) error {
	if from == to {
		return nil
	}
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return remoteErr("begin tx", err)
	}
	defer tx.Rollback()

	if err := g.reorder(ctx, tx, documentID, blockID, from, to); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return remoteErr("commit", err)
	}
	return nil
}

// shiftRange is the generic two-statement reorder used when no stored
// function is available.
func (g *sqlGateway) shiftRange(ctx context.Context, tx *sql.Tx, documentID, blockID string, from, to int) error {
	var err error
	if from < to {
		_, err = tx.ExecContext(ctx, g.rebind(
			`UPDATE document_blocks SET position = position - 1
			 WHERE document_id = ? AND block_id != ? AND position > ? AND position <= ?`),
			documentID, blockID, from, to,
		)
	} else {
		_, err = tx.ExecContext(ctx, g.rebind(
			`UPDATE document_blocks SET position = position + 1
			 WHERE document_id = ? AND block_id != ? AND position >= ? AND position < ?`),
			documentID, blockID, to, from,
		)
	}
	if err != nil {
		return remoteErr("shift range", err)
	}

	res, err := tx.ExecContext(ctx, g.rebind(
		`UPDATE document_blocks SET position = ? WHERE document_id = ? AND block_id = ?`),
		to, documentID, blockID,
	)
	if err != nil {
		return remoteErr("place moved block", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("link %s/%s: %w", documentID, blockID, domain.ErrNotFound)
	}
	return nil
}

func (g *sqlGateway) ListLinks(ctx context.Context, documentID string) ([]domain.BlockLink, error) {
	rows, err := g.db.QueryContext(ctx, g.rebind(
		`SELECT db.document_id, db.block_id, bi.type, db.position
		 FROM document_blocks db JOIN block_instances bi ON bi.id = db.block_id
		 WHERE db.document_id = ? ORDER BY db.position ASC`),
		documentID,
	)
	if err != nil {
		return nil, remoteErr("list links", err)
	}
	defer rows.Close()

	var links []domain.BlockLink
	for rows.Next() {
		var l domain.BlockLink
		if err := rows.Scan(&l.DocumentID, &l.BlockID, &l.Type, &l.Position); err != nil {
			return nil, remoteErr("scan link", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, remoteErr("iterate links", err)
	}
	return links, nil
}

func (g *sqlGateway) CountDocumentsReferencing(ctx context.Context, blockID string) (int, error) {
	var count int
	err := g.db.QueryRowContext(ctx, g.rebind(
		`SELECT COUNT(DISTINCT document_id) FROM document_blocks WHERE block_id = ?`), blockID,
	).Scan(&count)
	if err != nil {
		return 0, remoteErr("count references", err)
	}
	return count, nil
}

func remoteErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrDatabaseError, err)
}
