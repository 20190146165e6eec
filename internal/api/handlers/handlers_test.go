package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/dmarkov/finsight/internal/api/ws"
	"github.com/dmarkov/finsight/internal/auth"
	"github.com/dmarkov/finsight/internal/domain"
	"github.com/dmarkov/finsight/internal/manager"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory stand-in for internal/store covering the slices
// the handlers, the manager and the auth service each consume.
type fakeStore struct {
	txs      map[int64]domain.Transaction
	order    []int64
	settings map[string]string
	users    map[string]*domain.User
	filters  map[int64]domain.SavedFilter
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		txs:      make(map[int64]domain.Transaction),
		settings: make(map[string]string),
		users:    make(map[string]*domain.User),
		filters:  make(map[int64]domain.SavedFilter),
	}
}

func owned(t domain.Transaction, ownerID *int64) bool {
	if ownerID == nil {
		return true
	}
	return t.OwnerID != nil && *t.OwnerID == *ownerID
}

func (f *fakeStore) AddTransaction(ctx context.Context, t domain.Transaction) (int64, error) {
	f.nextID++
	t.ID = f.nextID
	t.CreatedAt = time.Now()
	f.txs[t.ID] = t
	f.order = append(f.order, t.ID)
	return t.ID, nil
}

func (f *fakeStore) GetTransactions(ctx context.Context, ownerID *int64) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for _, t := range f.txs {
		txs = append(txs, t)
	}
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].ID > txs[j].ID
	})
	return txs, nil
}

func (f *fakeStore) TransactionsInDateRange(ctx context.Context, ownerID *int64, from, to time.Time) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for _, t := range f.txs {
		if !t.Date.Before(from) && !t.Date.After(to) {
			txs = append(txs, t)
		}
	}
	return txs, nil
}

func (f *fakeStore) FilterTransactions(ctx context.Context, column domain.FilterColumn, value string, ownerID *int64) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for _, t := range f.txs {
		if column == domain.FilterByDescription && strings.Contains(t.Description, value) {
			txs = append(txs, t)
		}
	}
	return txs, nil
}

func (f *fakeStore) GetBalance(ctx context.Context, ownerID *int64) (decimal.Decimal, error) {
	balance := decimal.Zero
	for _, t := range f.txs {
		balance = balance.Add(t.SignedAmount())
	}
	return balance, nil
}

func (f *fakeStore) UpdateTransaction(ctx context.Context, id int64, field string, value any, ownerID *int64) (bool, error) {
	t, ok := f.txs[id]
	if !ok || !owned(t, ownerID) {
		return false, nil
	}
	if field == "description" {
		t.Description = value.(string)
	}
	f.txs[id] = t
	return true, nil
}

func (f *fakeStore) DeleteTransaction(ctx context.Context, id int64, ownerID *int64) (bool, error) {
	t, ok := f.txs[id]
	if !ok || !owned(t, ownerID) {
		return false, nil
	}
	delete(f.txs, id)
	return true, nil
}

func (f *fakeStore) LatestTransactionIDs(ctx context.Context, ownerID *int64, limit int) ([]int64, error) {
	var ids []int64
	for i := len(f.order) - 1; i >= 0; i-- {
		if _, ok := f.txs[f.order[i]]; ok {
			ids = append(ids, f.order[i])
		}
	}
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	v, ok := f.settings[key]
	return v, ok, nil
}

func (f *fakeStore) UpdateSetting(ctx context.Context, key, value string) error {
	f.settings[key] = value
	return nil
}

func (f *fakeStore) SaveFilter(ctx context.Context, filter domain.SavedFilter) (int64, error) {
	f.nextID++
	filter.ID = f.nextID
	f.filters[filter.ID] = filter
	return filter.ID, nil
}

func (f *fakeStore) GetSavedFilters(ctx context.Context, ownerID *int64) ([]domain.SavedFilter, error) {
	return nil, nil
}

func (f *fakeStore) GetVisibleFilters(ctx context.Context, userID int64) ([]domain.SharedFilter, error) {
	return nil, nil
}

func (f *fakeStore) DeleteSavedFilter(ctx context.Context, id, ownerID int64) error {
	filter, ok := f.filters[id]
	if !ok {
		return &domain.NotFoundError{Entity: "filter", ID: id}
	}
	if filter.OwnerID == nil || *filter.OwnerID != ownerID {
		return &domain.PermissionError{Reason: "only the filter's owner may delete it"}
	}
	delete(f.filters, id)
	return nil
}

func (f *fakeStore) ShareFilter(ctx context.Context, filterID, ownerID, partnerID int64) error {
	return nil
}

func (f *fakeStore) RespondToFilterShare(ctx context.Context, filterID, userID int64, status domain.ShareStatus) error {
	return nil
}

func (f *fakeStore) PendingFilterInvites(ctx context.Context, userID int64) ([]domain.SharedFilter, error) {
	return nil, nil
}

func (f *fakeStore) SendPartnershipRequest(ctx context.Context, userID int64, partnerUsername string) (*domain.Partnership, error) {
	return &domain.Partnership{ID: 1, UserID: userID, Status: domain.StatusPending}, nil
}

func (f *fakeStore) UpdatePartnershipStatus(ctx context.Context, id, userID int64, status domain.ShareStatus) error {
	return nil
}

func (f *fakeStore) GetPartnerships(ctx context.Context, userID int64) ([]domain.PartnershipView, error) {
	return nil, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	if _, ok := f.users[username]; ok {
		return nil, &domain.ValidationError{Field: "username", Reason: "already taken"}
	}
	f.nextID++
	u := &domain.User{ID: f.nextID, Username: username, PasswordHash: passwordHash}
	f.users[username] = u
	return u, nil
}

func (f *fakeStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "user"}
	}
	return u, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, &domain.NotFoundError{Entity: "user", ID: id}
}

func (f *fakeStore) UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error {
	for _, u := range f.users {
		if u.ID == userID {
			u.PasswordHash = passwordHash
			return nil
		}
	}
	return &domain.NotFoundError{Entity: "user", ID: userID}
}

// fakeExtractor returns canned extraction results.
type fakeExtractor struct {
	cmd     *domain.Command
	payload *domain.TransactionPayload
	err     error
}

func (f *fakeExtractor) ParseText(ctx context.Context, text, today string, exchangeRate float64) (*domain.Command, error) {
	return f.cmd, f.err
}

func (f *fakeExtractor) ParseReceipt(ctx context.Context, imageData []byte, mimeType string) (*domain.TransactionPayload, error) {
	return f.payload, f.err
}

func newTestAPI(t *testing.T) (http.Handler, *fakeStore, *fakeExtractor, string) {
	t.Helper()

	st := newFakeStore()
	extractor := &fakeExtractor{}
	log := zerolog.Nop()
	authSvc := auth.New(st, []byte("test-secret"), log)
	api := New(st, manager.New(st, log), extractor, authSvc, ws.NewHub(log), log)

	user, err := authSvc.Register(context.Background(), "alice", "long enough password")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token, err := authSvc.IssueToken(user.ID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return api.Routes(), st, extractor, token
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = strings.NewReader(string(b))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// seedTransactions inserts rows owned by alice, the user newTestAPI logs in.
func seedTransactions(t *testing.T, st *fakeStore, dates ...string) []int64 {
	t.Helper()
	alice := int64(1)
	ids := make([]int64, 0, len(dates))
	for i, date := range dates {
		d, err := time.Parse(domain.DateFormat, date)
		if err != nil {
			t.Fatalf("bad date %q", date)
		}
		id, _ := st.AddTransaction(context.Background(), domain.Transaction{
			Date:        d,
			Type:        domain.TypeExpense,
			Description: fmt.Sprintf("seed %d", i),
			Amount:      decimal.New(int64(i+1), 0),
			OwnerID:     &alice,
		})
		ids = append(ids, id)
	}
	return ids
}

// registerUser creates a second account over the API and returns its token.
func registerUser(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": username + "s long password"}

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "", creds)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s = %d, body %s", username, rec.Code, rec.Body)
	}
	rec = doJSON(t, h, http.MethodPost, "/api/auth/login", "", creds)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s = %d, body %s", username, rec.Code, rec.Body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login %s response %s", username, rec.Body)
	}
	return resp.Token
}

func TestAuthRequired(t *testing.T) {
	h, _, _, _ := newTestAPI(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/transactions"},
		{http.MethodPost, "/api/chat/text"},
		{http.MethodGet, "/api/summary"},
		{http.MethodPut, "/api/settings/exchange_rate"},
	}
	for _, tt := range tests {
		rec := doJSON(t, h, tt.method, tt.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s = %d, want 401", tt.method, tt.path, rec.Code)
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/api/transactions", "bogus-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bogus token = %d, want 401", rec.Code)
	}
}

func TestRegisterAndLoginFlow(t *testing.T) {
	h, _, _, _ := newTestAPI(t)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "bob", "password": "bobs long password",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register = %d, body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "bob", "password": "bobs long password",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d, body %s", rec.Code, rec.Body)
	}
	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &loginResp); err != nil || loginResp.Token == "" {
		t.Fatalf("login response %s", rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/transactions", loginResp.Token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", rec.Code)
	}
}

func TestLoginBadPassword(t *testing.T) {
	h, _, _, _ := newTestAPI(t)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("login = %d, want 403", rec.Code)
	}
}

func TestAddAndListTransactions(t *testing.T) {
	h, _, _, token := newTestAPI(t)

	rec := doJSON(t, h, http.MethodPost, "/api/transactions", token, map[string]string{
		"date": "2024-05-01", "type": "expense", "description": "coffee", "amount": "4.5",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add = %d, body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/transactions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	var resp struct {
		Count        int               `json:"count"`
		Transactions []transactionJSON `json:"transactions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 || len(resp.Transactions) != 1 {
		t.Fatalf("count = %d", resp.Count)
	}
	if resp.Transactions[0].Amount != "4.50" {
		t.Errorf("amount = %q, want 4.50 (two decimal places)", resp.Transactions[0].Amount)
	}
}

func TestAddTransactionValidation(t *testing.T) {
	h, st, _, token := newTestAPI(t)

	rec := doJSON(t, h, http.MethodPost, "/api/transactions", token, map[string]string{
		"date": "2024-05-01", "type": "loan", "description": "car", "amount": "100",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("add = %d, want 400", rec.Code)
	}
	if len(st.txs) != 0 {
		t.Errorf("store has %d rows, want 0", len(st.txs))
	}
}

func TestUpdateTransactionNotFound(t *testing.T) {
	h, _, _, token := newTestAPI(t)

	rec := doJSON(t, h, http.MethodPut, "/api/transactions/99", token, map[string]string{
		"field": "description", "value": "renamed",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("update = %d, want 404", rec.Code)
	}
}

func TestMutateOtherUsersTransaction(t *testing.T) {
	h, st, _, _ := newTestAPI(t)
	ids := seedTransactions(t, st, "2024-05-01")
	bobToken := registerUser(t, h, "bob")

	path := fmt.Sprintf("/api/transactions/%d", ids[0])

	rec := doJSON(t, h, http.MethodPut, path, bobToken, map[string]string{
		"field": "description", "value": "hijacked",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("update = %d, want 404", rec.Code)
	}
	if st.txs[ids[0]].Description != "seed 0" {
		t.Errorf("description changed across owners: %q", st.txs[ids[0]].Description)
	}

	rec = doJSON(t, h, http.MethodDelete, path, bobToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete = %d, want 404", rec.Code)
	}
	if _, ok := st.txs[ids[0]]; !ok {
		t.Error("row deleted across owners")
	}
}

func TestDeleteFilterOwnerOnly(t *testing.T) {
	h, st, _, aliceToken := newTestAPI(t)
	bobToken := registerUser(t, h, "bob")

	rec := doJSON(t, h, http.MethodPost, "/api/filters", aliceToken, map[string]string{
		"name": "groceries", "filter_column": "description", "filter_text": "aldi",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("save filter = %d, body %s", rec.Code, rec.Body)
	}
	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	path := fmt.Sprintf("/api/filters/%d", created.ID)

	rec = doJSON(t, h, http.MethodDelete, path, bobToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("delete by non-owner = %d, want 403", rec.Code)
	}
	if _, ok := st.filters[created.ID]; !ok {
		t.Fatal("filter deleted by non-owner")
	}

	rec = doJSON(t, h, http.MethodDelete, path, aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("delete by owner = %d, want 200", rec.Code)
	}
	rec = doJSON(t, h, http.MethodDelete, path, aliceToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete again = %d, want 404", rec.Code)
	}
}

func TestBatchDeleteMixedResults(t *testing.T) {
	h, st, _, token := newTestAPI(t)
	ids := seedTransactions(t, st, "2024-05-01", "2024-05-02")

	rec := doJSON(t, h, http.MethodPost, "/api/transactions/batch-delete", token, map[string]any{
		"ids": []int64{ids[0], 999},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("batch delete = %d, body %s", rec.Code, rec.Body)
	}
	var resp struct {
		Results []manager.DeleteResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Results) != 2 || !resp.Results[0].Success || resp.Results[1].Success {
		t.Errorf("results = %+v", resp.Results)
	}
	if len(st.txs) != 1 {
		t.Errorf("store has %d rows, want 1", len(st.txs))
	}
}

func TestDeleteRows(t *testing.T) {
	h, st, _, token := newTestAPI(t)
	ids := seedTransactions(t, st, "2024-05-01", "2024-05-03", "2024-05-02")

	// Display order is newest first: row 1 is 2024-05-03, row 2 is 2024-05-02.
	rec := doJSON(t, h, http.MethodPost, "/api/transactions/delete-rows", token, map[string]any{
		"rows": []int{1, 2},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("delete rows = %d, body %s", rec.Code, rec.Body)
	}
	if len(st.txs) != 1 {
		t.Fatalf("store has %d rows, want 1", len(st.txs))
	}
	if _, ok := st.txs[ids[0]]; !ok {
		t.Error("oldest transaction should survive")
	}
}

func TestDeleteRowsOutOfRange(t *testing.T) {
	h, st, _, token := newTestAPI(t)
	seedTransactions(t, st, "2024-05-01")

	rec := doJSON(t, h, http.MethodPost, "/api/transactions/delete-rows", token, map[string]any{
		"rows": []int{2},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("delete rows = %d, want 400", rec.Code)
	}
	if len(st.txs) != 1 {
		t.Errorf("store has %d rows, want 1", len(st.txs))
	}
}

func TestChatText(t *testing.T) {
	h, st, extractor, token := newTestAPI(t)
	extractor.cmd = &domain.Command{
		Action: domain.ActionAdd,
		Transactions: []domain.TransactionPayload{
			{Date: "2024-05-01", Type: "expense", Description: "coffee", Amount: "4.5"},
		},
	}

	rec := doJSON(t, h, http.MethodPost, "/api/chat/text", token, map[string]string{
		"text": "coffee 4.50 today",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat = %d, body %s", rec.Code, rec.Body)
	}
	if len(st.txs) != 1 {
		t.Errorf("store has %d rows, want 1", len(st.txs))
	}
}

func TestChatTextExtractionFailure(t *testing.T) {
	h, _, extractor, token := newTestAPI(t)
	extractor.err = fmt.Errorf("model unreachable")

	rec := doJSON(t, h, http.MethodPost, "/api/chat/text", token, map[string]string{
		"text": "???",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("chat = %d, want 422", rec.Code)
	}
}

func TestFilterTransactionsBadColumn(t *testing.T) {
	h, _, _, token := newTestAPI(t)

	rec := doJSON(t, h, http.MethodGet, "/api/transactions/filter?column=owner&value=x", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("filter = %d, want 400", rec.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	h, _, _, token := newTestAPI(t)

	rec := doJSON(t, h, http.MethodGet, "/api/settings/exchange_rate", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get unset = %d, want 404", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPut, "/api/settings/exchange_rate", token, map[string]string{"value": "0.011"})
	if rec.Code != http.StatusOK {
		t.Fatalf("put = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/settings/exchange_rate", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["value"] != "0.011" {
		t.Errorf("value = %q", resp["value"])
	}
}

func TestExportTransactionsCSV(t *testing.T) {
	h, st, _, token := newTestAPI(t)
	seedTransactions(t, st, "2024-05-01")

	rec := doJSON(t, h, http.MethodGet, "/api/transactions/export", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv" {
		t.Errorf("content type = %q", got)
	}
	if !strings.HasPrefix(rec.Body.String(), "date,type,description,amount\n") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
