package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"bluelog/pkg/auth"
)

type loginView struct {
	Form loginForm
	Next string
}

// safeNext keeps the redirect-back target on this site. Anything not a
// plain relative path falls back to the index.
func safeNext(next string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") && !strings.HasPrefix(next, "/\\") {
		return next
	}
	return "/"
}

func (api *API) loginHandler(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"))

	if _, ok := auth.AdminFrom(r.Context()); ok {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	if r.Method == http.MethodGet {
		p := api.newPage(r, "Login", loginView{Form: loginForm{Errors: map[string]string{}}, Next: next})
		api.render(w, r, http.StatusOK, "login.html", p)
		return
	}

	if err := r.ParseForm(); err != nil {
		api.renderError(w, r, http.StatusBadRequest, "Bad request")
		return
	}

	form := parseLoginForm(r)
	next = safeNext(r.FormValue("next"))
	form.Validate()

	if len(form.Errors) == 0 {
		token, err := auth.Login(r.Context(), api.db, form.Username, form.Password, api.cfg.SessionLifetime())
		switch {
		case err == nil:
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Expires:  time.Now().Add(api.cfg.SessionLifetime()),
			})
			log.Infof("[loginHandler][%s] admin logged in", shorten(GetRequestID(r.Context())))
			http.Redirect(w, r, next, http.StatusSeeOther)
			return
		case errors.Is(err, auth.ErrInvalidLogin):
			form.Errors["login"] = "Invalid username or password"
		default:
			log.Errorf("[loginHandler][%s] Login() returned error: %v", shorten(GetRequestID(r.Context())), err)
			api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
			return
		}
	}

	form.Password = ""
	p := api.newPage(r, "Login", loginView{Form: form, Next: next})
	api.render(w, r, http.StatusOK, "login.html", p)
}

func (api *API) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		if err := auth.Logout(r.Context(), api.db, c.Value); err != nil {
			log.Errorf("[logoutHandler][%s] Logout() returned error: %v", shorten(GetRequestID(r.Context())), err)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
		})
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
