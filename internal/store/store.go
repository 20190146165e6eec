// Package store persists transactions, settings, saved filters, sharing
// relations and user accounts in Postgres.
//
// Every operation goes through a single shared connection guarded by a
// mutex. Before each attempt the connection is probed and reconnected if
// dead; transient connectivity failures are retried up to maxAttempts with
// a short fixed delay, then surfaced as a domain.StorageError wrapping the
// last cause. Semantic failures (bad value, missing row) are never retried.
package store

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dmarkov/finsight/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const (
	maxAttempts = 3
	retryDelay  = 250 * time.Millisecond
)

// Store is the Postgres-backed persistent store.
type Store struct {
	mu      sync.Mutex
	conn    *pgx.Conn
	connStr string
	log     zerolog.Logger
}

// Open connects to Postgres and returns a ready Store.
func Open(ctx context.Context, connStr string, log zerolog.Logger) (*Store, error) {
	s := &Store{connStr: connStr, log: log}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reconnect(ctx); err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close(ctx)
	s.conn = nil
	return err
}

// reconnect drops any existing connection and dials a fresh one.
// Callers must hold s.mu.
func (s *Store) reconnect(ctx context.Context) error {
	if s.conn != nil {
		_ = s.conn.Close(ctx)
		s.conn = nil
	}

	conn, err := pgx.Connect(ctx, s.connStr)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// ensureConn verifies the connection is alive with a cheap probe and
// reconnects on failure. Callers must hold s.mu.
func (s *Store) ensureConn(ctx context.Context) error {
	if s.conn == nil || s.conn.IsClosed() {
		return s.reconnect(ctx)
	}
	if err := s.conn.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("connection probe failed, reconnecting")
		return s.reconnect(ctx)
	}
	return nil
}

// withRetry runs fn against the shared connection, retrying transient
// connectivity failures up to maxAttempts. Non-transient errors from fn are
// returned as-is on the first occurrence.
func (s *Store) withRetry(ctx context.Context, op string, fn func(ctx context.Context, conn *pgx.Conn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			s.log.Warn().Err(lastErr).Str("op", op).Int("attempt", attempt+1).Msg("retrying store operation")
			time.Sleep(retryDelay)
		}

		if err := s.ensureConn(ctx); err != nil {
			lastErr = err
			continue
		}

		err := fn(ctx, s.conn)
		if err == nil {
			return nil
		}
		// A connection that died mid-operation is retried even when the
		// error itself does not classify as transient; the next attempt's
		// probe will reconnect.
		if !isTransient(err) && !s.conn.IsClosed() {
			return err
		}
		lastErr = err
	}

	return &domain.StorageError{Op: op, Err: lastErr}
}

// withTx is withRetry with fn wrapped in a transaction: committed on nil,
// rolled back on error. Retries restart the whole transaction.
func (s *Store) withTx(ctx context.Context, op string, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return s.withRetry(ctx, op, func(ctx context.Context, conn *pgx.Conn) error {
		return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
			return fn(ctx, tx)
		})
	})
}

// isTransient reports whether err looks like a connectivity failure worth a
// reconnect-and-retry, as opposed to a semantic error from the database.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}
