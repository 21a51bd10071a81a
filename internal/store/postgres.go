package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresKV stores rows in the tree_nodes table.
type PostgresKV struct {
	db *pgxpool.Pool
}

// NewPostgresKV creates a backend on an open pool.
func NewPostgresKV(db *pgxpool.Pool) *PostgresKV {
	return &PostgresKV{db: db}
}

// Migrate creates the tree_nodes table when missing.
func (p *PostgresKV) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS tree_nodes (
			path  TEXT PRIMARY KEY,
			value JSONB NOT NULL
		)
	`
	if _, err := p.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tree_nodes: %w", err)
	}
	return nil
}

func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `SELECT value FROM tree_nodes WHERE path = $1`
	var value []byte
	err := p.db.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get node: %w", err)
	}
	return value, true, nil
}

func (p *PostgresKV) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	query := `
		SELECT path, value
		FROM tree_nodes
		WHERE starts_with(path, $1)
		ORDER BY path COLLATE "C"
	`
	rows, err := p.db.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan nodes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return entries, nil
}

func (p *PostgresKV) Apply(ctx context.Context, ops []Op) error {
	return pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		for _, op := range ops {
			if op.Delete {
				if _, err := tx.Exec(ctx, `DELETE FROM tree_nodes WHERE path = $1`, op.Key); err != nil {
					return fmt.Errorf("failed to delete node %s: %w", op.Key, err)
				}
				continue
			}
			query := `
				INSERT INTO tree_nodes (path, value)
				VALUES ($1, $2)
				ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value
			`
			if _, err := tx.Exec(ctx, query, op.Key, op.Value); err != nil {
				return fmt.Errorf("failed to upsert node %s: %w", op.Key, err)
			}
		}
		return nil
	})
}

func (p *PostgresKV) Close() error {
	p.db.Close()
	return nil
}
