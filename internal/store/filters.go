package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmarkov/finsight/internal/domain"
	"github.com/jackc/pgx/v5"
)

// SaveFilter persists a named filter and returns its id.
func (s *Store) SaveFilter(ctx context.Context, f domain.SavedFilter) (int64, error) {
	var id int64
	err := s.withRetry(ctx, "save filter", func(ctx context.Context, conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			INSERT INTO saved_filters (name, filter_column, filter_text, owner_id)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			f.Name, f.Column, f.Text, f.OwnerID).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("SaveFilter: %w", err)
	}
	return id, nil
}

// GetSavedFilters returns the filters owned by ownerID, ordered by name.
// A nil ownerID returns every filter (single-user deployments).
func (s *Store) GetSavedFilters(ctx context.Context, ownerID *int64) ([]domain.SavedFilter, error) {
	query := `SELECT id, name, filter_column, filter_text, owner_id, is_shared FROM saved_filters`
	args := []any{}
	if ownerID != nil {
		query += ` WHERE owner_id = $1`
		args = append(args, *ownerID)
	}
	query += ` ORDER BY name ASC`

	var filters []domain.SavedFilter
	err := s.withRetry(ctx, "get saved filters", func(ctx context.Context, conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		filters = filters[:0]
		for rows.Next() {
			var f domain.SavedFilter
			if err := rows.Scan(&f.ID, &f.Name, &f.Column, &f.Text, &f.OwnerID, &f.IsShared); err != nil {
				return err
			}
			filters = append(filters, f)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("GetSavedFilters: %w", err)
	}
	return filters, nil
}

// DeleteSavedFilter removes a filter by id. Only the filter's owner may
// delete it; sharing grants read access, never deletion. Shares referencing
// it are removed by the schema's cascade.
func (s *Store) DeleteSavedFilter(ctx context.Context, id, ownerID int64) error {
	err := s.withTx(ctx, "delete saved filter", func(ctx context.Context, tx pgx.Tx) error {
		var filterOwner *int64
		err := tx.QueryRow(ctx, `SELECT owner_id FROM saved_filters WHERE id = $1`, id).Scan(&filterOwner)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &domain.NotFoundError{Entity: "filter", ID: id}
			}
			return err
		}
		if filterOwner == nil || *filterOwner != ownerID {
			return &domain.PermissionError{Reason: "only the filter's owner may delete it"}
		}

		_, err = tx.Exec(ctx, `DELETE FROM saved_filters WHERE id = $1`, id)
		return err
	})
	if err != nil {
		if isSemantic(err) {
			return err
		}
		return fmt.Errorf("DeleteSavedFilter: %w", err)
	}
	return nil
}
