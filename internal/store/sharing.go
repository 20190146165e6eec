package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmarkov/finsight/internal/domain"
	"github.com/jackc/pgx/v5"
)

// ShareFilter invites partnerID to use one of ownerID's saved filters.
// Requires an accepted partnership between the pair. Sharing the same filter
// with the same partner twice is a no-op.
func (s *Store) ShareFilter(ctx context.Context, filterID, ownerID, partnerID int64) error {
	err := s.withTx(ctx, "share filter", func(ctx context.Context, tx pgx.Tx) error {
		var filterOwner *int64
		err := tx.QueryRow(ctx, `SELECT owner_id FROM saved_filters WHERE id = $1`, filterID).Scan(&filterOwner)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &domain.NotFoundError{Entity: "filter", ID: filterID}
			}
			return err
		}
		if filterOwner == nil || *filterOwner != ownerID {
			return &domain.PermissionError{Reason: "only the filter's owner may share it"}
		}

		var accepted bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM user_partnerships
				WHERE status = 'accepted'
				  AND ((user_id = $1 AND partner_id = $2) OR (user_id = $2 AND partner_id = $1))
			)`, ownerID, partnerID).Scan(&accepted)
		if err != nil {
			return err
		}
		if !accepted {
			return &domain.PermissionError{Reason: "no accepted partnership with this user"}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO filter_sharing (filter_id, shared_with_id, status)
			VALUES ($1, $2, $3)
			ON CONFLICT (filter_id, shared_with_id) DO NOTHING`,
			filterID, partnerID, domain.StatusPending); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `UPDATE saved_filters SET is_shared = TRUE WHERE id = $1`, filterID)
		return err
	})
	if err != nil {
		if isSemantic(err) {
			return err
		}
		return fmt.Errorf("ShareFilter: %w", err)
	}
	return nil
}

// RespondToFilterShare accepts or rejects a filter-sharing invitation. Only
// the invited user may respond, and only while the invitation is pending.
func (s *Store) RespondToFilterShare(ctx context.Context, filterID, userID int64, status domain.ShareStatus) error {
	if status != domain.StatusAccepted && status != domain.StatusRejected {
		return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not accepted or rejected", status)}
	}

	err := s.withTx(ctx, "respond to filter share", func(ctx context.Context, tx pgx.Tx) error {
		var current domain.ShareStatus
		err := tx.QueryRow(ctx, `
			SELECT status FROM filter_sharing
			WHERE filter_id = $1 AND shared_with_id = $2`, filterID, userID).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &domain.NotFoundError{Entity: "filter share", ID: filterID}
			}
			return err
		}
		if current != domain.StatusPending {
			return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("invitation already %s", current)}
		}

		_, err = tx.Exec(ctx, `
			UPDATE filter_sharing SET status = $1
			WHERE filter_id = $2 AND shared_with_id = $3`, status, filterID, userID)
		return err
	})
	if err != nil {
		if isSemantic(err) {
			return err
		}
		return fmt.Errorf("RespondToFilterShare: %w", err)
	}
	return nil
}

// GetSharedFilters returns filters other users have shared with userID where
// the invitation has been accepted. Pending and rejected shares are not
// visible here.
func (s *Store) GetSharedFilters(ctx context.Context, userID int64) ([]domain.SharedFilter, error) {
	return s.sharedFiltersByStatus(ctx, userID, domain.StatusAccepted, "GetSharedFilters")
}

// PendingFilterInvites returns filter-sharing invitations awaiting userID's
// response.
func (s *Store) PendingFilterInvites(ctx context.Context, userID int64) ([]domain.SharedFilter, error) {
	return s.sharedFiltersByStatus(ctx, userID, domain.StatusPending, "PendingFilterInvites")
}

func (s *Store) sharedFiltersByStatus(ctx context.Context, userID int64, status domain.ShareStatus, op string) ([]domain.SharedFilter, error) {
	var filters []domain.SharedFilter
	err := s.withRetry(ctx, op, func(ctx context.Context, conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT f.id, f.name, f.filter_column, f.filter_text, f.owner_id, f.is_shared, u.username, fs.status
			FROM filter_sharing fs
			JOIN saved_filters f ON f.id = fs.filter_id
			JOIN users u ON u.id = f.owner_id
			WHERE fs.shared_with_id = $1 AND fs.status = $2
			ORDER BY f.name ASC`, userID, status)
		if err != nil {
			return err
		}
		defer rows.Close()

		filters = filters[:0]
		for rows.Next() {
			var f domain.SharedFilter
			if err := rows.Scan(&f.ID, &f.Name, &f.Column, &f.Text, &f.OwnerID, &f.IsShared, &f.OwnerUsername, &f.Status); err != nil {
				return err
			}
			filters = append(filters, f)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return filters, nil
}

// GetVisibleFilters returns the union of filters userID owns and filters
// shared with userID whose invitations were accepted.
func (s *Store) GetVisibleFilters(ctx context.Context, userID int64) ([]domain.SharedFilter, error) {
	owned, err := s.GetSavedFilters(ctx, &userID)
	if err != nil {
		return nil, err
	}
	shared, err := s.GetSharedFilters(ctx, userID)
	if err != nil {
		return nil, err
	}

	visible := make([]domain.SharedFilter, 0, len(owned)+len(shared))
	for _, f := range owned {
		visible = append(visible, domain.SharedFilter{SavedFilter: f, Status: domain.StatusAccepted})
	}
	return append(visible, shared...), nil
}
