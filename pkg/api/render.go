package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"bluelog/pkg/auth"
	"bluelog/pkg/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02 Jan 2006, 15:04")
	},
	// Post bodies come from the rich-text editor and are stored as HTML.
	"safeHTML": func(s string) template.HTML {
		return template.HTML(s)
	},
}

// pageNames are the content templates, each rendered inside base.html.
var pageNames = []string{
	"index.html",
	"post.html",
	"category.html",
	"about.html",
	"login.html",
	"error.html",
	"admin_settings.html",
	"admin_posts.html",
	"admin_post_form.html",
	"admin_comments.html",
	"admin_categories.html",
	"admin_category_form.html",
	"admin_links.html",
	"admin_link_form.html",
}

// newTemplateCache parses every page together with the shared layout.
func newTemplateCache() (map[string]*template.Template, error) {
	cache := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(templateFuncs).
			ParseFS(templateFS, "templates/base.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		cache[name] = t
	}

	return cache, nil
}

// page is the data every template receives: the blog identity, the
// sidebar and, for an authenticated admin, the moderation badge.
type page struct {
	Title string

	Admin      models.Admin
	LoggedIn   bool
	Categories []models.Category
	Links      []models.Link
	Unread     int

	Flash   string
	FlashOK bool

	Data any
}

// newPage assembles the shared context for a request. Sidebar failures
// are logged and degrade to an empty sidebar instead of failing the page.
func (api *API) newPage(r *http.Request, title string, data any) page {
	ctx := r.Context()
	p := page{Title: title, Data: data}

	if admin, err := api.db.Admin(ctx); err == nil {
		p.Admin = admin
	}
	var err error
	if p.Categories, err = api.db.Categories(ctx); err != nil {
		log.Errorf("[newPage][%s] failed to load categories: %v", shorten(GetRequestID(ctx)), err)
	}
	if p.Links, err = api.db.Links(ctx); err != nil {
		log.Errorf("[newPage][%s] failed to load links: %v", shorten(GetRequestID(ctx)), err)
	}

	if _, ok := auth.AdminFrom(ctx); ok {
		p.LoggedIn = true
		if n, err := api.db.CountUnreviewed(ctx); err == nil {
			p.Unread = n
		}
	}

	if msg := r.URL.Query().Get("ok"); msg != "" {
		p.Flash = msg
		p.FlashOK = true
	} else if msg := r.URL.Query().Get("warn"); msg != "" {
		p.Flash = msg
	}

	return p
}

// render executes the named page template into a buffer first so a
// template error can still produce a clean 500.
func (api *API) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	t, ok := api.templates[name]
	if !ok {
		log.Errorf("[render] unknown template %q", name)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	buf := new(bytes.Buffer)
	if err := t.ExecuteTemplate(buf, "base", p); err != nil {
		log.Errorf("[render][%s] failed to execute template %q: %v",
			shorten(GetRequestID(r.Context())), name, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

type errorView struct {
	Status  int
	Message string
}

// renderError shows the dedicated error page with the given status.
func (api *API) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	p := api.newPage(r, http.StatusText(status), errorView{Status: status, Message: message})
	api.render(w, r, status, "error.html", p)
}
