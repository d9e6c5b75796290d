package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hoodiewala/storefront/internal/contact"
	"github.com/hoodiewala/storefront/internal/domain"
	"github.com/hoodiewala/storefront/internal/session"
	apperrors "github.com/hoodiewala/storefront/pkg/errors"
	"github.com/hoodiewala/storefront/pkg/health"
	"github.com/hoodiewala/storefront/pkg/httputil"
	"github.com/hoodiewala/storefront/pkg/logger"
	"github.com/hoodiewala/storefront/pkg/validator"
)

// maxFormBytes bounds the contact form body.
const maxFormBytes = 64 << 10

// pollParam marks the loading page's refresh of its own activation.
const pollParam = "poll"

// PageHandler serves the server-rendered storefront page.
type PageHandler struct {
	sessions      *session.Manager
	health        *health.Handler
	logger        *slog.Logger
	catalogWait   time.Duration
	sessionTTL    time.Duration
	secureCookies bool
	now           func() time.Time
}

// NewPageHandler creates a new page handler.
func NewPageHandler(sessions *session.Manager, healthHandler *health.Handler, logger *slog.Logger, cfg RouterConfig) *PageHandler {
	return &PageHandler{
		sessions:      sessions,
		health:        healthHandler,
		logger:        logger,
		catalogWait:   cfg.CatalogWait,
		sessionTTL:    cfg.SessionTTL,
		secureCookies: cfg.SecureCookies,
		now:           time.Now,
	}
}

// Index handles GET /. Every visit is a new page activation, except the
// loading page's own refresh (?poll=1), which keeps watching the activation
// it started.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := sessionIDFromCookie(r)

	var sess *session.Session
	if r.URL.Query().Has(pollParam) && id != "" {
		found, err := h.sessions.Get(ctx, id)
		switch {
		case err == nil:
			sess = found
		case !errors.Is(err, apperrors.ErrNotFound):
			h.renderError(w, r, err)
			return
		}
	} else if id != "" {
		h.endPrevious(ctx, id)
	}

	if sess == nil {
		var err error
		sess, err = h.sessions.Activate(ctx)
		if err != nil {
			h.renderError(w, r, err)
			return
		}
	}
	setSessionCookie(w, sess.ID, h.sessionTTL, h.secureCookies)

	waitCtx, cancel := context.WithTimeout(ctx, h.catalogWait)
	cv := sess.Catalog.Wait(waitCtx)
	cancel()

	h.save(ctx, sess)
	renderHTML(w, r, h.logger, http.StatusOK, "page.html", newPageData(cv, sess.Contact.View(), h.now()))
}

// endPrevious tears down the activation a reload replaces.
func (h *PageHandler) endPrevious(ctx context.Context, id string) {
	if err := h.sessions.End(ctx, id); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		logger.FromContext(ctx).WarnContext(ctx, "failed to end previous session",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// current returns the cookie's session, activating a new one when the cookie
// is missing or its session has ended.
func (h *PageHandler) current(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	ctx := r.Context()
	if id := sessionIDFromCookie(r); id != "" {
		sess, err := h.sessions.Get(ctx, id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}
	sess, err := h.sessions.Activate(ctx)
	if err != nil {
		return nil, err
	}
	setSessionCookie(w, sess.ID, h.sessionTTL, h.secureCookies)
	return sess, nil
}

// Contact handles POST /contact: every posted field replaces the form's
// value, then the message is submitted once.
func (h *PageHandler) Contact(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	sess, err := h.current(w, r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	for _, f := range domain.Fields() {
		if err := sess.Contact.UpdateField(f, r.PostFormValue(string(f))); err != nil {
			h.renderError(w, r, err)
			return
		}
	}

	status := http.StatusOK
	fieldErrors := map[string]string{}

	err = sess.Contact.Submit(r.Context())
	var valErr *validator.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &valErr):
		status = http.StatusUnprocessableEntity
		fieldErrors = valErr.Fields()
	case errors.Is(err, contact.ErrSubmitInFlight), errors.Is(err, contact.ErrClosed):
		status = http.StatusConflict
	case errors.Is(err, contact.ErrSubmitFailed):
		status = http.StatusBadGateway
	default:
		h.renderError(w, r, err)
		return
	}

	h.save(r.Context(), sess)

	data := newPageData(sess.Catalog.View(), sess.Contact.View(), h.now())
	data.FieldErrors = fieldErrors
	renderHTML(w, r, h.logger, status, "page.html", data)
}

// DismissAlert handles POST /contact/dismiss, the acknowledgement of the
// failure alert. The message is kept.
func (h *PageHandler) DismissAlert(w http.ResponseWriter, r *http.Request) {
	sess, err := h.current(w, r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	sess.Contact.DismissAlert()
	h.save(r.Context(), sess)

	renderHTML(w, r, h.logger, http.StatusOK, "page.html",
		newPageData(sess.Catalog.View(), sess.Contact.View(), h.now()))
}

// Status handles GET /status, a readable report of the dependencies.
func (h *PageHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := h.health.Check(r.Context())
	status := http.StatusOK
	if resp.Status == health.StatusDown {
		status = http.StatusServiceUnavailable
	}
	renderHTML(w, r, h.logger, status, "status.html", newStatusData(resp))
}

// Limited answers a rate-limited request: the JSON envelope under /api/,
// a short page otherwise. Pass it to middleware.WithLimitedHandler.
func Limited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	if strings.HasPrefix(r.URL.Path, "/api/") {
		httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "RATE_LIMITED", Message: "too many requests"},
		})
		return
	}
	renderHTML(w, r, logger.FromContext(r.Context()), http.StatusTooManyRequests, "limited.html", nil)
}

func (h *PageHandler) save(ctx context.Context, sess *session.Session) {
	if err := h.sessions.Save(ctx, sess); err != nil {
		logger.FromContext(ctx).WarnContext(ctx, "failed to save session",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).ErrorContext(r.Context(), "page request failed",
		slog.String("error", err.Error()),
		slog.String("path", r.URL.Path),
	)
	http.Error(w, "Something went wrong. Please reload the page.", http.StatusInternalServerError)
}
