package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmarkov/finsight/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// CreateUser inserts a new account and returns it with id and creation time
// filled in. A duplicate username is a ValidationError.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	user := &domain.User{Username: username, PasswordHash: passwordHash}
	err := s.withRetry(ctx, "create user", func(ctx context.Context, conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			INSERT INTO users (username, password_hash)
			VALUES ($1, $2)
			RETURNING id, created_at`,
			username, passwordHash).Scan(&user.ID, &user.CreatedAt)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, &domain.ValidationError{Field: "username", Reason: "already taken"}
		}
		return nil, fmt.Errorf("CreateUser: %w", err)
	}
	return user, nil
}

// GetUserByUsername looks an account up by its unique username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	err := s.withRetry(ctx, "get user by username", func(ctx context.Context, conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT id, username, password_hash, created_at
			FROM users WHERE username = $1`, username).
			Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "user"}
		}
		return nil, fmt.Errorf("GetUserByUsername: %w", err)
	}
	return &user, nil
}

// GetUserByID looks an account up by id.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	err := s.withRetry(ctx, "get user by id", func(ctx context.Context, conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT id, username, password_hash, created_at
			FROM users WHERE id = $1`, id).
			Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "user", ID: id}
		}
		return nil, fmt.Errorf("GetUserByID: %w", err)
	}
	return &user, nil
}

// UpdatePasswordHash replaces the stored hash for one account.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error {
	err := s.withRetry(ctx, "update password hash", func(ctx context.Context, conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return &domain.NotFoundError{Entity: "user", ID: userID}
		}
		return nil
	})
	if err != nil {
		if isSemantic(err) {
			return err
		}
		return fmt.Errorf("UpdatePasswordHash: %w", err)
	}
	return nil
}
