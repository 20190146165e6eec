package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// schemaStatements create the tables on first run. Kept idempotent so the
// migrate binary can be re-run safely.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username VARCHAR(100) UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id SERIAL PRIMARY KEY,
		date DATE NOT NULL,
		type VARCHAR(50) NOT NULL CHECK (type IN ('income', 'expense', 'subscription')),
		description TEXT,
		amount DECIMAL(10,2) NOT NULL CHECK (amount >= 0),
		user_id INTEGER REFERENCES users(id),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key VARCHAR(50) PRIMARY KEY,
		value TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS saved_filters (
		id SERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		filter_column VARCHAR(50) NOT NULL CHECK (filter_column IN ('type', 'description', 'amount')),
		filter_text TEXT NOT NULL,
		owner_id INTEGER REFERENCES users(id),
		is_shared BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS user_partnerships (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		partner_id INTEGER NOT NULL REFERENCES users(id),
		status VARCHAR(20) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected')),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, partner_id)
	)`,
	`CREATE TABLE IF NOT EXISTS filter_sharing (
		filter_id INTEGER NOT NULL REFERENCES saved_filters(id) ON DELETE CASCADE,
		shared_with_id INTEGER NOT NULL REFERENCES users(id),
		status VARCHAR(20) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected')),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (filter_id, shared_with_id)
	)`,
}

// Setup creates all tables if they do not exist yet.
func (s *Store) Setup(ctx context.Context) error {
	return s.withTx(ctx, "setup", func(ctx context.Context, tx pgx.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}
