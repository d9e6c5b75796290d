package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hoodiewala/storefront/internal/catalog"
	"github.com/hoodiewala/storefront/internal/contact"
	"github.com/hoodiewala/storefront/internal/domain"
	"github.com/hoodiewala/storefront/internal/session"
	apperrors "github.com/hoodiewala/storefront/pkg/errors"
	"github.com/hoodiewala/storefront/pkg/httputil"
	"github.com/hoodiewala/storefront/pkg/logger"
	"github.com/hoodiewala/storefront/pkg/middleware"
	"github.com/hoodiewala/storefront/pkg/validator"
)

// SessionHandler serves the JSON rendition of a page activation.
type SessionHandler struct {
	sessions *session.Manager
	logger   *slog.Logger
	maxWait  time.Duration
}

// NewSessionHandler creates a new session API handler. maxWait caps the
// ?wait= long-poll on GET.
func NewSessionHandler(sessions *session.Manager, logger *slog.Logger, maxWait time.Duration) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
		maxWait:  maxWait,
	}
}

// --- Request DTOs ---

// UpdateContactRequest is the JSON request body for editing one form field.
type UpdateContactRequest struct {
	Field string `json:"field" validate:"required,oneof=name email phone message"`
	Value string `json:"value"`
}

// --- Response DTOs ---

// CatalogResponse is the catalog part of a session.
type CatalogResponse struct {
	State    catalog.State        `json:"state"`
	Error    string               `json:"error,omitempty"`
	Products []domain.ProductCard `json:"products"`
}

// SessionResponse is the JSON form of a page activation.
type SessionResponse struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Catalog   CatalogResponse `json:"catalog"`
	Contact   contact.View    `json:"contact"`
}

func toSessionResponse(snap session.Snapshot) SessionResponse {
	cards := []domain.ProductCard{}
	if snap.Catalog.State == catalog.StateLoaded {
		cards = snap.Catalog.Cards()
	}
	return SessionResponse{
		ID:        snap.ID,
		CreatedAt: snap.CreatedAt,
		Catalog: CatalogResponse{
			State:    snap.Catalog.State,
			Error:    snap.Catalog.Error,
			Products: cards,
		},
		Contact: snap.Contact,
	}
}

// --- Handlers ---

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Activate(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.Header().Set(middleware.SessionHeader, sess.ID)
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: toSessionResponse(sess.Snapshot())})
}

// Get handles GET /api/v1/sessions/{id}. An optional ?wait=<duration> blocks
// until the catalog settles or the wait elapses.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}

	if raw := r.URL.Query().Get("wait"); raw != "" {
		wait, err := time.ParseDuration(raw)
		if err != nil || wait < 0 {
			httputil.WriteError(w, r, apperrors.InvalidInput("wait must be a non-negative duration such as 2s"), h.logger)
			return
		}
		if wait > h.maxWait {
			wait = h.maxWait
		}
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		sess.Catalog.Wait(ctx)
		cancel()
	}

	h.save(r.Context(), sess)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toSessionResponse(sess.Snapshot())})
}

// Delete handles DELETE /api/v1/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.sessions.End(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateContact handles PATCH /api/v1/sessions/{id}/contact
func (h *SessionHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}

	var req UpdateContactRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	field, err := domain.ParseField(req.Field)
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
		return
	}
	if err := sess.Contact.UpdateField(field, req.Value); err != nil {
		httputil.WriteError(w, r, h.formError(sess.ID, err), h.logger)
		return
	}

	h.save(r.Context(), sess)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toSessionResponse(sess.Snapshot())})
}

// SubmitContact handles POST /api/v1/sessions/{id}/contact/submit
func (h *SessionHandler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}

	err := sess.Contact.Submit(r.Context())
	h.save(r.Context(), sess)
	if err != nil {
		httputil.WriteError(w, r, h.formError(sess.ID, err), h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toSessionResponse(sess.Snapshot())})
}

// DismissAlert handles DELETE /api/v1/sessions/{id}/contact/alert
func (h *SessionHandler) DismissAlert(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}

	sess.Contact.DismissAlert()
	h.save(r.Context(), sess)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toSessionResponse(sess.Snapshot())})
}

// --- Helpers ---

// load resolves the {id} URL parameter to a session, writing the error
// response itself when it cannot.
func (h *SessionHandler) load(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return nil, false
	}

	sess, err := h.sessions.Get(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return nil, false
	}
	return sess, true
}

// formError maps contact form errors onto the API's error envelope.
// Validation errors pass through unchanged.
func (h *SessionHandler) formError(id string, err error) error {
	switch {
	case errors.Is(err, contact.ErrSubmitInFlight):
		return apperrors.Conflict("a contact submission is already in flight")
	case errors.Is(err, contact.ErrSubmitFailed):
		return apperrors.BadGateway(contact.AlertMessage, err)
	case errors.Is(err, contact.ErrClosed):
		return apperrors.NotFound("session", id)
	default:
		return err
	}
}

func (h *SessionHandler) save(ctx context.Context, sess *session.Session) {
	if err := h.sessions.Save(ctx, sess); err != nil {
		logger.FromContext(ctx).WarnContext(ctx, "failed to save session",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
	}
}
