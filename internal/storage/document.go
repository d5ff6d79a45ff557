package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"resumekit/internal/domain"
)

// DocumentStore persists document records. The composition engine never
// touches it; it exists so callers have somewhere to hang links off.
type DocumentStore struct {
	db *DB
}

func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) CreateDocument(ctx context.Context, d *domain.Document) error {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	_, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO documents (id, owner_user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.OwnerUserID, d.Title, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return dbErr("create document", err)
	}
	return nil
}

func (s *DocumentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	d := &domain.Document{}
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT id, owner_user_id, title, created_at, updated_at FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.OwnerUserID, &d.Title, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("get document", err)
	}
	return d, nil
}

func (s *DocumentStore) ListDocuments(ctx context.Context, ownerUserID string) ([]domain.Document, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, owner_user_id, title, created_at, updated_at FROM documents WHERE owner_user_id = ? ORDER BY created_at ASC`,
		ownerUserID,
	)
	if err != nil {
		return nil, dbErr("list documents", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.OwnerUserID, &d.Title, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, dbErr("scan document", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("iterate documents", err)
	}
	return docs, nil
}

// DeleteDocument removes a document and its links. Linked block instances
// survive; they may be referenced elsewhere.
func (s *DocumentStore) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return dbErr("begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_blocks WHERE document_id = ?`, id); err != nil {
		return dbErr("delete links", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return dbErr("delete document", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return dbErr("commit", err)
	}
	return nil
}
