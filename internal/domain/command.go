package domain

// CommandAction tags a command produced by the UI or the extraction adapter.
type CommandAction string

const (
	ActionAdd    CommandAction = "add"
	ActionUpdate CommandAction = "update"
	ActionDelete CommandAction = "delete"
)

// DeleteScope selects which transactions a delete command targets.
type DeleteScope string

const (
	ScopeSpecificIDs   DeleteScope = "specific_ids"
	ScopeLastN         DeleteScope = "last_n"
	ScopeFirstN        DeleteScope = "first_n"
	ScopeAll           DeleteScope = "all"
	ScopeAllExceptLast DeleteScope = "all_except_last_n"
	ScopeAllExceptIDs  DeleteScope = "all_except_ids"
	ScopeCriteria      DeleteScope = "criteria"
)

// TransactionPayload is an untrusted transaction as it arrives from the
// extraction adapter or the UI. All fields are raw strings; the manager
// parses and validates every one of them before anything is written.
type TransactionPayload struct {
	Date             string `json:"date"`
	Type             string `json:"type"`
	Description      string `json:"description"`
	Amount           string `json:"amount"`
	OriginalCurrency string `json:"original_currency,omitempty"`
}

// MatchCriteria addresses a transaction by approximate date and description
// when the caller does not know its id.
type MatchCriteria struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

// UpdateCommand changes a single field of one transaction, addressed either
// by id or by fuzzy criteria (exactly one must be set).
type UpdateCommand struct {
	ID       *int64         `json:"id,omitempty"`
	Criteria *MatchCriteria `json:"criteria,omitempty"`
	Field    string         `json:"field"`
	Value    string         `json:"value"`
}

// DeleteCommand removes transactions according to its scope. IDs applies to
// the specific_ids and all_except_ids scopes, N to the last_n, first_n and
// all_except_last_n scopes, Criteria to the criteria scope.
type DeleteCommand struct {
	Scope    DeleteScope    `json:"scope"`
	IDs      []int64        `json:"ids,omitempty"`
	N        int            `json:"n,omitempty"`
	Criteria *MatchCriteria `json:"criteria,omitempty"`
}

// Command is one tagged add/update/delete request. Exactly the slice or
// pointer matching Action is populated.
type Command struct {
	Action       CommandAction        `json:"action"`
	Transactions []TransactionPayload `json:"transactions,omitempty"`
	Update       *UpdateCommand       `json:"update,omitempty"`
	Delete       *DeleteCommand       `json:"delete,omitempty"`
}
