package extract

import (
	"fmt"
	"strings"

	"github.com/dmarkov/finsight/internal/domain"
	"github.com/shopspring/decimal"
)

// transformCommand converts the model's generic JSON into a domain.Command.
// It understands the current tagged shape and the two legacy shapes the
// model was previously prompted to emit (a bare transactions array and an
// is_deletion object).
func transformCommand(parsed interface{}, exchangeRate float64) (*domain.Command, error) {
	obj, ok := parsed.(map[string]interface{})
	if !ok {
		// Legacy shape: a bare JSON array of transactions means "add".
		if arr, ok := parsed.([]interface{}); ok {
			obj = map[string]interface{}{"action": "add", "transactions": arr}
		} else {
			return nil, fmt.Errorf("transformCommand: model output is %T, want JSON object", parsed)
		}
	}

	action, err := getStringField(obj, "action", false)
	if err != nil {
		return nil, fmt.Errorf("transformCommand: %w", err)
	}
	if action == "" {
		// Legacy shapes carry no action tag.
		if isDeletion, _ := obj["is_deletion"].(bool); isDeletion {
			action = "delete"
		} else if _, ok := obj["transactions"]; ok {
			action = "add"
		} else {
			return nil, fmt.Errorf("transformCommand: missing 'action' in model output")
		}
	}

	switch domain.CommandAction(strings.ToLower(action)) {
	case domain.ActionAdd:
		return transformAdd(obj, exchangeRate)
	case domain.ActionUpdate:
		return transformUpdate(obj)
	case domain.ActionDelete:
		return transformDelete(obj)
	default:
		return nil, fmt.Errorf("transformCommand: unknown action %q", action)
	}
}

func transformAdd(obj map[string]interface{}, exchangeRate float64) (*domain.Command, error) {
	txAny, ok := obj["transactions"]
	if !ok {
		return nil, fmt.Errorf("transformAdd: missing 'transactions' in model output")
	}
	txSlice, ok := txAny.([]interface{})
	if !ok {
		return nil, fmt.Errorf("transformAdd: 'transactions' is %T, want array", txAny)
	}

	cmd := &domain.Command{Action: domain.ActionAdd}
	for i, item := range txSlice {
		txObj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("transformAdd: element %d is %T, want object", i, item)
		}
		payload, err := transformPayload(txObj, exchangeRate)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		cmd.Transactions = append(cmd.Transactions, *payload)
	}
	return cmd, nil
}

// transformPayload maps one model transaction object into an untrusted
// payload, applying the exchange rate when the model flagged a foreign
// currency. Amounts stay strings; the manager does the real validation.
func transformPayload(obj map[string]interface{}, exchangeRate float64) (*domain.TransactionPayload, error) {
	date, err := getStringField(obj, "date", true)
	if err != nil {
		return nil, err
	}
	typ, err := getStringField(obj, "type", true)
	if err != nil {
		return nil, err
	}
	desc, err := getStringField(obj, "description", true)
	if err != nil {
		return nil, err
	}
	amount, err := getNumberField(obj, "amount")
	if err != nil {
		return nil, err
	}
	currency, err := getStringField(obj, "original_currency", false)
	if err != nil {
		return nil, err
	}

	if currency != "" && exchangeRate > 0 {
		amount = amount.Mul(decimal.NewFromFloat(exchangeRate)).Round(2)
	}

	return &domain.TransactionPayload{
		Date:             date,
		Type:             typ,
		Description:      desc,
		Amount:           amount.String(),
		OriginalCurrency: currency,
	}, nil
}

func transformUpdate(obj map[string]interface{}) (*domain.Command, error) {
	field, err := getStringField(obj, "field", true)
	if err != nil {
		return nil, fmt.Errorf("transformUpdate: %w", err)
	}
	value, err := getStringField(obj, "value", true)
	if err != nil {
		return nil, fmt.Errorf("transformUpdate: %w", err)
	}

	update := &domain.UpdateCommand{Field: field, Value: value}

	if id, ok, err := getOptionalIntField(obj, "id"); err != nil {
		return nil, fmt.Errorf("transformUpdate: %w", err)
	} else if ok {
		update.ID = &id
	}

	criteria, err := getCriteria(obj)
	if err != nil {
		return nil, fmt.Errorf("transformUpdate: %w", err)
	}
	update.Criteria = criteria

	return &domain.Command{Action: domain.ActionUpdate, Update: update}, nil
}

func transformDelete(obj map[string]interface{}) (*domain.Command, error) {
	del := &domain.DeleteCommand{}

	scope, err := getStringField(obj, "scope", false)
	if err != nil {
		return nil, fmt.Errorf("transformDelete: %w", err)
	}
	del.Scope = domain.DeleteScope(strings.ToLower(scope))

	ids, err := getIntSliceField(obj, "ids")
	if err != nil {
		return nil, fmt.Errorf("transformDelete: %w", err)
	}
	// Legacy shapes used "transaction_ids" or a single "transaction_id".
	if ids == nil {
		ids, err = getIntSliceField(obj, "transaction_ids")
		if err != nil {
			return nil, fmt.Errorf("transformDelete: %w", err)
		}
	}
	if ids == nil {
		if id, ok, err := getOptionalIntField(obj, "transaction_id"); err != nil {
			return nil, fmt.Errorf("transformDelete: %w", err)
		} else if ok {
			ids = []int64{id}
		}
	}
	del.IDs = ids

	if n, ok, err := getOptionalIntField(obj, "n"); err != nil {
		return nil, fmt.Errorf("transformDelete: %w", err)
	} else if ok {
		del.N = int(n)
	}

	criteria, err := getCriteria(obj)
	if err != nil {
		return nil, fmt.Errorf("transformDelete: %w", err)
	}
	del.Criteria = criteria

	if del.Scope == "" {
		// Legacy deletions named ids only.
		if len(del.IDs) > 0 {
			del.Scope = domain.ScopeSpecificIDs
		} else if del.Criteria != nil {
			del.Scope = domain.ScopeCriteria
		} else {
			return nil, fmt.Errorf("transformDelete: missing 'scope' in model output")
		}
	}

	return &domain.Command{Action: domain.ActionDelete, Delete: del}, nil
}

func getCriteria(obj map[string]interface{}) (*domain.MatchCriteria, error) {
	v, ok := obj["criteria"]
	if !ok || v == nil {
		return nil, nil
	}
	critObj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("field \"criteria\" has type %T, want object", v)
	}
	date, err := getStringField(critObj, "date", true)
	if err != nil {
		return nil, err
	}
	desc, err := getStringField(critObj, "description", true)
	if err != nil {
		return nil, err
	}
	return &domain.MatchCriteria{Date: date, Description: desc}, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
	if required && strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("required field %q is empty", key)
	}
	return s, nil
}

// getNumberField accepts a JSON number or a numeric string and returns it as
// a decimal.
func getNumberField(m map[string]interface{}, key string) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.Zero, fmt.Errorf("missing required field %q", key)
	}
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: %q is not a number", key, val)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

func getOptionalIntField(m map[string]interface{}, key string) (int64, bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	f, ok := v.(float64)
	if !ok {
		return 0, false, fmt.Errorf("field %q has type %T, want number", key, v)
	}
	return int64(f), true, nil
}

func getIntSliceField(m map[string]interface{}, key string) ([]int64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	slice, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("field %q has type %T, want array", key, v)
	}
	ids := make([]int64, 0, len(slice))
	for i, item := range slice {
		f, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("field %q element %d has type %T, want number", key, i, item)
		}
		ids = append(ids, int64(f))
	}
	return ids, nil
}
