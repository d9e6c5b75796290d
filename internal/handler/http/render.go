package http

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/hoodiewala/storefront/internal/catalog"
	"github.com/hoodiewala/storefront/internal/contact"
	"github.com/hoodiewala/storefront/internal/domain"
	"github.com/hoodiewala/storefront/pkg/health"
)

// heroImageURL is the fixed illustration next to the hero copy.
const heroImageURL = "https://images.unsplash.com/photo-1516826957135-700dedea698c?q=80&w=1600&auto=format&fit=crop"

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// pageData is everything page.html renders.
type pageData struct {
	Year           int
	HeroImageURL   string
	RefreshSeconds int
	Catalog        catalog.View
	Cards          []domain.ProductCard
	Contact        contact.View
	FieldErrors    map[string]string
}

func (d pageData) CatalogLoading() bool { return d.Catalog.State == catalog.StateLoading }
func (d pageData) CatalogFailed() bool  { return d.Catalog.State == catalog.StateFailed }

func newPageData(cv catalog.View, fv contact.View, now time.Time) pageData {
	d := pageData{
		Year:           now.Year(),
		HeroImageURL:   heroImageURL,
		RefreshSeconds: 2,
		Catalog:        cv,
		Contact:        fv,
		FieldErrors:    map[string]string{},
	}
	if cv.State == catalog.StateLoaded {
		d.Cards = cv.Cards()
	}
	return d
}

type statusCheck struct {
	Name     string
	Status   health.Status
	Critical bool
	Latency  time.Duration
	Error    string
}

// statusData is everything status.html renders.
type statusData struct {
	Status    health.Status
	Timestamp time.Time
	Checks    []statusCheck
}

func newStatusData(resp health.Response) statusData {
	d := statusData{Status: resp.Status, Timestamp: resp.Timestamp}
	for name, c := range resp.Checks {
		d.Checks = append(d.Checks, statusCheck{
			Name:     name,
			Status:   c.Status,
			Critical: c.Critical,
			Latency:  c.Latency.Round(time.Millisecond),
			Error:    c.Error,
		})
	}
	sort.Slice(d.Checks, func(i, j int) bool { return d.Checks[i].Name < d.Checks[j].Name })
	return d
}

// renderHTML executes the named template into a buffer first so a template
// error still yields a clean 500.
func renderHTML(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, name string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.ErrorContext(r.Context(), "failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
