// Package handlers is the HTTP boundary of the dashboard. Handlers decode
// requests, hand them to the manager or store, and render results; every
// domain decision lives below this package.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dmarkov/finsight/internal/api/middleware"
	"github.com/dmarkov/finsight/internal/api/ws"
	"github.com/dmarkov/finsight/internal/auth"
	"github.com/dmarkov/finsight/internal/domain"
	"github.com/dmarkov/finsight/internal/manager"
	"github.com/rs/zerolog"
)

// Store is the slice of the persistent store the handlers use directly,
// bypassing the manager: settings, saved filters, sharing and partnerships
// carry no free-form payloads that need its validation.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	UpdateSetting(ctx context.Context, key, value string) error
	SaveFilter(ctx context.Context, f domain.SavedFilter) (int64, error)
	GetSavedFilters(ctx context.Context, ownerID *int64) ([]domain.SavedFilter, error)
	GetVisibleFilters(ctx context.Context, userID int64) ([]domain.SharedFilter, error)
	DeleteSavedFilter(ctx context.Context, id, ownerID int64) error
	ShareFilter(ctx context.Context, filterID, ownerID, partnerID int64) error
	RespondToFilterShare(ctx context.Context, filterID, userID int64, status domain.ShareStatus) error
	PendingFilterInvites(ctx context.Context, userID int64) ([]domain.SharedFilter, error)
	SendPartnershipRequest(ctx context.Context, userID int64, partnerUsername string) (*domain.Partnership, error)
	UpdatePartnershipStatus(ctx context.Context, id, userID int64, status domain.ShareStatus) error
	GetPartnerships(ctx context.Context, userID int64) ([]domain.PartnershipView, error)
}

// Extractor converts unstructured input into commands; implemented by
// internal/extract, mocked in tests.
type Extractor interface {
	ParseText(ctx context.Context, text, today string, exchangeRate float64) (*domain.Command, error)
	ParseReceipt(ctx context.Context, imageData []byte, mimeType string) (*domain.TransactionPayload, error)
}

// API bundles the application services behind the HTTP surface.
type API struct {
	store     Store
	manager   *manager.Manager
	extractor Extractor
	auth      *auth.Service
	hub       *ws.Hub
	log       zerolog.Logger
}

// New creates the API handler set.
func New(store Store, mgr *manager.Manager, extractor Extractor, authSvc *auth.Service, hub *ws.Hub, log zerolog.Logger) *API {
	return &API{store: store, manager: mgr, extractor: extractor, auth: authSvc, hub: hub, log: log}
}

// Routes registers every endpoint on a fresh mux.
func (a *API) Routes() http.Handler {
	authed := middleware.Auth(a.auth)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", a.Register)
	mux.HandleFunc("POST /api/auth/login", a.Login)
	mux.Handle("POST /api/auth/password", authed(http.HandlerFunc(a.ChangePassword)))

	mux.Handle("GET /api/transactions", authed(http.HandlerFunc(a.ListTransactions)))
	mux.Handle("POST /api/transactions", authed(http.HandlerFunc(a.AddTransaction)))
	mux.Handle("PUT /api/transactions/{id}", authed(http.HandlerFunc(a.UpdateTransaction)))
	mux.Handle("DELETE /api/transactions/{id}", authed(http.HandlerFunc(a.DeleteTransaction)))
	mux.Handle("POST /api/transactions/batch-delete", authed(http.HandlerFunc(a.BatchDelete)))
	mux.Handle("POST /api/transactions/delete-rows", authed(http.HandlerFunc(a.DeleteRows)))
	mux.Handle("GET /api/transactions/filter", authed(http.HandlerFunc(a.FilterTransactions)))
	mux.Handle("GET /api/transactions/export", authed(http.HandlerFunc(a.ExportTransactions)))
	mux.Handle("GET /api/summary", authed(http.HandlerFunc(a.Summary)))
	mux.Handle("GET /api/summary/export", authed(http.HandlerFunc(a.ExportSummary)))

	mux.Handle("POST /api/chat/text", authed(http.HandlerFunc(a.ChatText)))
	mux.Handle("POST /api/chat/receipt", authed(http.HandlerFunc(a.ChatReceipt)))

	mux.Handle("GET /api/settings/{key}", authed(http.HandlerFunc(a.GetSetting)))
	mux.Handle("PUT /api/settings/{key}", authed(http.HandlerFunc(a.PutSetting)))

	mux.Handle("GET /api/filters", authed(http.HandlerFunc(a.ListFilters)))
	mux.Handle("POST /api/filters", authed(http.HandlerFunc(a.SaveFilter)))
	mux.Handle("DELETE /api/filters/{id}", authed(http.HandlerFunc(a.DeleteFilter)))
	mux.Handle("POST /api/filters/{id}/share", authed(http.HandlerFunc(a.ShareFilter)))
	mux.Handle("POST /api/filters/{id}/respond", authed(http.HandlerFunc(a.RespondToShare)))
	mux.Handle("GET /api/filters/invites", authed(http.HandlerFunc(a.ListInvites)))

	mux.Handle("GET /api/partners", authed(http.HandlerFunc(a.ListPartners)))
	mux.Handle("POST /api/partners", authed(http.HandlerFunc(a.RequestPartner)))
	mux.Handle("POST /api/partners/{id}/respond", authed(http.HandlerFunc(a.RespondToPartner)))

	mux.Handle("GET /ws", a.hub)

	return mux
}

// userID returns the authenticated user id for owner scoping.
func userID(r *http.Request) (int64, *int64) {
	id, ok := middleware.UserID(r.Context())
	if !ok {
		return 0, nil
	}
	return id, &id
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}
