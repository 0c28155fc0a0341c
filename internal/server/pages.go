package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/tphummel/fit-drive/internal/cookie"
	"github.com/tphummel/fit-drive/internal/respond"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// PageData is the data every page template receives
type PageData struct {
	Title     string
	Email     string
	Flash     *cookie.Flash
	LoginTTL  string
	Providers []ProviderStatus
}

// ProviderStatus is one row of the authorizations list on the home page
type ProviderStatus struct {
	Name        string
	DisplayName string
	Connected   bool
	UpdatedAt   string
}

// render executes a page into a buffer first so a template failure still
// produces a clean 500.
func render(w http.ResponseWriter, name string, data PageData) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		respond.InternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// popFlash takes the pending flash, if any, for the page being rendered
func popFlash(w http.ResponseWriter, r *http.Request) *cookie.Flash {
	f, ok := cookie.PopFlash(w, r)
	if !ok {
		return nil
	}
	return &f
}
