package manager

import (
	"context"
	"fmt"

	"github.com/dmarkov/finsight/internal/domain"
)

// CommandResult reports what a dispatched command did.
type CommandResult struct {
	Action   domain.CommandAction `json:"action"`
	AddedIDs []int64              `json:"added_ids,omitempty"`
	Updated  *int64               `json:"updated_id,omitempty"`
	Deleted  []DeleteResult       `json:"deleted,omitempty"`
}

// ProcessCommand routes a tagged command (the shape the extraction adapter
// produces) to the matching operation. Update and delete support addressing
// by surrogate id or by fuzzy date+description criteria; deletes also
// support positional scopes over the insertion order.
func (m *Manager) ProcessCommand(ctx context.Context, ownerID *int64, cmd domain.Command) (*CommandResult, error) {
	switch cmd.Action {
	case domain.ActionAdd:
		return m.processAdd(ctx, ownerID, cmd.Transactions)
	case domain.ActionUpdate:
		return m.processUpdate(ctx, ownerID, cmd.Update)
	case domain.ActionDelete:
		return m.processDelete(ctx, ownerID, cmd.Delete)
	default:
		return nil, &domain.ValidationError{Field: "action", Reason: fmt.Sprintf("%q is not add, update or delete", cmd.Action)}
	}
}

// processAdd validates every payload before inserting any of them, so a bad
// payload in a multi-transaction command writes nothing.
func (m *Manager) processAdd(ctx context.Context, ownerID *int64, payloads []domain.TransactionPayload) (*CommandResult, error) {
	if len(payloads) == 0 {
		return nil, &domain.ValidationError{Field: "transactions", Reason: "must not be empty"}
	}

	parsed := make([]domain.Transaction, 0, len(payloads))
	for i, p := range payloads {
		t, err := parsePayload(p)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		t.OwnerID = ownerID
		parsed = append(parsed, t)
	}

	result := &CommandResult{Action: domain.ActionAdd}
	for _, t := range parsed {
		id, err := m.store.AddTransaction(ctx, t)
		if err != nil {
			return nil, err
		}
		result.AddedIDs = append(result.AddedIDs, id)
	}
	return result, nil
}

func (m *Manager) processUpdate(ctx context.Context, ownerID *int64, cmd *domain.UpdateCommand) (*CommandResult, error) {
	if cmd == nil {
		return nil, &domain.ValidationError{Field: "update", Reason: "missing update body"}
	}

	id, err := m.resolveTarget(ctx, ownerID, cmd.ID, cmd.Criteria)
	if err != nil {
		return nil, err
	}
	if err := m.UpdateTransactionField(ctx, id, cmd.Field, cmd.Value, ownerID); err != nil {
		return nil, err
	}
	return &CommandResult{Action: domain.ActionUpdate, Updated: &id}, nil
}

func (m *Manager) processDelete(ctx context.Context, ownerID *int64, cmd *domain.DeleteCommand) (*CommandResult, error) {
	if cmd == nil {
		return nil, &domain.ValidationError{Field: "delete", Reason: "missing delete body"}
	}

	ids, err := m.resolveDeleteScope(ctx, ownerID, cmd)
	if err != nil {
		return nil, err
	}
	return &CommandResult{Action: domain.ActionDelete, Deleted: m.DeleteTransactions(ctx, ids, ownerID)}, nil
}

// resolveTarget turns either an explicit id or fuzzy criteria into a
// surrogate id. Exactly one addressing mode must be supplied.
func (m *Manager) resolveTarget(ctx context.Context, ownerID *int64, id *int64, criteria *domain.MatchCriteria) (int64, error) {
	switch {
	case id != nil && criteria != nil:
		return 0, &domain.ValidationError{Field: "target", Reason: "supply an id or criteria, not both"}
	case id != nil:
		return *id, nil
	case criteria != nil:
		t, err := m.ResolveByCriteria(ctx, ownerID, *criteria)
		if err != nil {
			return 0, err
		}
		return t.ID, nil
	default:
		return 0, &domain.ValidationError{Field: "target", Reason: "supply an id or criteria"}
	}
}

// resolveDeleteScope expands a delete scope into concrete transaction ids.
// Positional scopes (last_n, first_n, all_except_last_n) are resolved
// against insertion order, newest first.
func (m *Manager) resolveDeleteScope(ctx context.Context, ownerID *int64, cmd *domain.DeleteCommand) ([]int64, error) {
	switch cmd.Scope {
	case domain.ScopeSpecificIDs:
		if len(cmd.IDs) == 0 {
			return nil, &domain.ValidationError{Field: "ids", Reason: "must not be empty"}
		}
		return cmd.IDs, nil

	case domain.ScopeLastN:
		if cmd.N <= 0 {
			return nil, &domain.ValidationError{Field: "n", Reason: "must be positive"}
		}
		return m.store.LatestTransactionIDs(ctx, ownerID, cmd.N)

	case domain.ScopeFirstN:
		if cmd.N <= 0 {
			return nil, &domain.ValidationError{Field: "n", Reason: "must be positive"}
		}
		all, err := m.store.LatestTransactionIDs(ctx, ownerID, 0)
		if err != nil {
			return nil, err
		}
		if cmd.N >= len(all) {
			return all, nil
		}
		return all[len(all)-cmd.N:], nil

	case domain.ScopeAll:
		return m.store.LatestTransactionIDs(ctx, ownerID, 0)

	case domain.ScopeAllExceptLast:
		if cmd.N <= 0 {
			return nil, &domain.ValidationError{Field: "n", Reason: "must be positive"}
		}
		all, err := m.store.LatestTransactionIDs(ctx, ownerID, 0)
		if err != nil {
			return nil, err
		}
		if cmd.N >= len(all) {
			return nil, nil
		}
		return all[cmd.N:], nil

	case domain.ScopeAllExceptIDs:
		all, err := m.store.LatestTransactionIDs(ctx, ownerID, 0)
		if err != nil {
			return nil, err
		}
		keep := make(map[int64]bool, len(cmd.IDs))
		for _, id := range cmd.IDs {
			keep[id] = true
		}
		var ids []int64
		for _, id := range all {
			if !keep[id] {
				ids = append(ids, id)
			}
		}
		return ids, nil

	case domain.ScopeCriteria:
		if cmd.Criteria == nil {
			return nil, &domain.ValidationError{Field: "criteria", Reason: "missing criteria"}
		}
		t, err := m.ResolveByCriteria(ctx, ownerID, *cmd.Criteria)
		if err != nil {
			return nil, err
		}
		return []int64{t.ID}, nil

	default:
		return nil, &domain.ValidationError{Field: "scope", Reason: fmt.Sprintf("unknown delete scope %q", cmd.Scope)}
	}
}
