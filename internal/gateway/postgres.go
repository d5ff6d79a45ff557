package gateway

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"resumekit/internal/domain"
)

// buildPostgresDSN constructs a Postgres connection string from a Config.
func buildPostgresDSN(cfg *Config, password string) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, port, cfg.Username, password, cfg.Database, sslMode,
	)
}

func newPostgresGateway(cfg *Config, password string) (*sqlGateway, error) {
	db, err := openSQL("postgres", buildPostgresDSN(cfg, password))
	if err != nil {
		return nil, err
	}
	g := &sqlGateway{
		driverName: "postgres",
		db:         db,
		upsertLink: `INSERT INTO document_blocks (document_id, block_id, position) VALUES (?, ?, ?)
		 ON CONFLICT (document_id, block_id) DO UPDATE SET position = excluded.position`,
	}
	// The shift runs server-side so the whole range moves in one statement.
	g.reorder = func(ctx context.Context, tx *sql.Tx, documentID, blockID string, from, to int) error {
		var moved bool
		err := tx.QueryRowContext(ctx,
			`SELECT shift_block_range($1, $2, $3, $4)`,
			documentID, blockID, from, to,
		).Scan(&moved)
		if err != nil {
			return remoteErr("shift range", err)
		}
		if !moved {
			return fmt.Errorf("link %s/%s: %w", documentID, blockID, domain.ErrNotFound)
		}
		return nil
	}
	return g, nil
}

// EnsurePostgresSchema creates the tables and the reorder stored function.
// Idempotent; run it once at startup when the driver is postgres.
func EnsurePostgresSchema(ctx context.Context, gw domain.PersistenceGateway) error {
	g, ok := gw.(*sqlGateway)
	if !ok || g.driverName != "postgres" {
		return fmt.Errorf("not a postgres gateway: %w", domain.ErrInvalidArgument)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			owner_user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS block_instances (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}',
			owner_user_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS document_blocks (
			document_id TEXT NOT NULL REFERENCES documents(id),
			block_id TEXT NOT NULL REFERENCES block_instances(id),
			position INTEGER NOT NULL,
			PRIMARY KEY (document_id, block_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_document_blocks_doc ON document_blocks(document_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_document_blocks_block ON document_blocks(block_id)`,
		`CREATE OR REPLACE FUNCTION shift_block_range(p_document_id TEXT, p_block_id TEXT, p_from INT, p_to INT)
		RETURNS BOOLEAN AS $$
		DECLARE
			moved INT;
		BEGIN
			IF p_from < p_to THEN
				UPDATE document_blocks SET position = position - 1
				WHERE document_id = p_document_id AND block_id != p_block_id
				  AND position > p_from AND position <= p_to;
			ELSIF p_from > p_to THEN
				UPDATE document_blocks SET position = position + 1
				WHERE document_id = p_document_id AND block_id != p_block_id
				  AND position >= p_to AND position < p_from;
			END IF;
			UPDATE document_blocks SET position = p_to
			WHERE document_id = p_document_id AND block_id = p_block_id;
			GET DIAGNOSTICS moved = ROW_COUNT;
			RETURN moved > 0;
		END;
		$$ LANGUAGE plpgsql`,
	}
	for _, stmt := range stmts {
		if _, err := g.db.ExecContext(ctx, stmt); err != nil {
			return remoteErr("ensure schema", err)
		}
	}
	return nil
}
