package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmarkov/finsight/internal/domain"
	"github.com/jackc/pgx/v5"
)

// SendPartnershipRequest creates a pending partnership from userID to the
// user named partnerUsername. If a relation already exists between the pair
// in either direction, the existing one is returned unchanged.
func (s *Store) SendPartnershipRequest(ctx context.Context, userID int64, partnerUsername string) (*domain.Partnership, error) {
	var p domain.Partnership
	err := s.withTx(ctx, "send partnership request", func(ctx context.Context, tx pgx.Tx) error {
		var partnerID int64
		err := tx.QueryRow(ctx, `SELECT id FROM users WHERE username = $1`, partnerUsername).Scan(&partnerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &domain.NotFoundError{Entity: "user"}
			}
			return err
		}
		if partnerID == userID {
			return &domain.ValidationError{Field: "partner", Reason: "cannot partner with yourself"}
		}

		err = tx.QueryRow(ctx, `
			SELECT id, user_id, partner_id, status
			FROM user_partnerships
			WHERE (user_id = $1 AND partner_id = $2) OR (user_id = $2 AND partner_id = $1)`,
			userID, partnerID).Scan(&p.ID, &p.UserID, &p.PartnerID, &p.Status)
		if err == nil {
			return nil // relation already exists, report its current status
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		p = domain.Partnership{UserID: userID, PartnerID: partnerID, Status: domain.StatusPending}
		return tx.QueryRow(ctx, `
			INSERT INTO user_partnerships (user_id, partner_id, status)
			VALUES ($1, $2, $3)
			RETURNING id`,
			userID, partnerID, domain.StatusPending).Scan(&p.ID)
	})
	if err != nil {
		if isSemantic(err) {
			return nil, err
		}
		return nil, fmt.Errorf("SendPartnershipRequest: %w", err)
	}
	return &p, nil
}

// UpdatePartnershipStatus resolves a pending request. Only the recipient of
// the request may transition it, and only out of pending.
func (s *Store) UpdatePartnershipStatus(ctx context.Context, id, userID int64, status domain.ShareStatus) error {
	if status != domain.StatusAccepted && status != domain.StatusRejected {
		return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not accepted or rejected", status)}
	}

	err := s.withTx(ctx, "update partnership status", func(ctx context.Context, tx pgx.Tx) error {
		var p domain.Partnership
		err := tx.QueryRow(ctx, `
			SELECT id, user_id, partner_id, status
			FROM user_partnerships WHERE id = $1`, id).
			Scan(&p.ID, &p.UserID, &p.PartnerID, &p.Status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &domain.NotFoundError{Entity: "partnership", ID: id}
			}
			return err
		}
		if p.PartnerID != userID {
			return &domain.PermissionError{Reason: "only the request's recipient may respond"}
		}
		if p.Status != domain.StatusPending {
			return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("request already %s", p.Status)}
		}

		_, err = tx.Exec(ctx, `UPDATE user_partnerships SET status = $1 WHERE id = $2`, status, id)
		return err
	})
	if err != nil {
		if isSemantic(err) {
			return err
		}
		return fmt.Errorf("UpdatePartnershipStatus: %w", err)
	}
	return nil
}

// GetPartnerships returns every partnership involving userID, in either
// direction, annotated with both usernames.
func (s *Store) GetPartnerships(ctx context.Context, userID int64) ([]domain.PartnershipView, error) {
	var views []domain.PartnershipView
	err := s.withRetry(ctx, "get partnerships", func(ctx context.Context, conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT p.id, p.user_id, p.partner_id, p.status, u.username, pu.username
			FROM user_partnerships p
			JOIN users u ON u.id = p.user_id
			JOIN users pu ON pu.id = p.partner_id
			WHERE p.user_id = $1 OR p.partner_id = $1
			ORDER BY p.id`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		views = views[:0]
		for rows.Next() {
			var v domain.PartnershipView
			if err := rows.Scan(&v.ID, &v.UserID, &v.PartnerID, &v.Status, &v.Username, &v.PartnerUsername); err != nil {
				return err
			}
			views = append(views, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("GetPartnerships: %w", err)
	}
	return views, nil
}

// HasAcceptedPartnership reports whether an accepted partnership exists
// between the two users, in either direction.
func (s *Store) HasAcceptedPartnership(ctx context.Context, a, b int64) (bool, error) {
	var exists bool
	err := s.withRetry(ctx, "has accepted partnership", func(ctx context.Context, conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM user_partnerships
				WHERE status = 'accepted'
				  AND ((user_id = $1 AND partner_id = $2) OR (user_id = $2 AND partner_id = $1))
			)`, a, b).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("HasAcceptedPartnership: %w", err)
	}
	return exists, nil
}

// isSemantic reports whether err is one of the typed domain errors that must
// pass through to the caller unwrapped.
func isSemantic(err error) bool {
	var notFound *domain.NotFoundError
	var invalid *domain.ValidationError
	var denied *domain.PermissionError
	return errors.As(err, &notFound) || errors.As(err, &invalid) || errors.As(err, &denied)
}
