package api

import (
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
)

// Form validation keeps the submitted values so handlers can re-render
// the originating form with inline messages and no partial writes.

type commentForm struct {
	Author    string
	Email     string
	Site      string
	Body      string
	RepliedID int64

	Errors map[string]string
}

func parseCommentForm(r *http.Request) commentForm {
	repliedID, _ := strconv.ParseInt(r.FormValue("replied_id"), 10, 64)
	return commentForm{
		Author:    strings.TrimSpace(r.FormValue("author")),
		Email:     strings.TrimSpace(r.FormValue("email")),
		Site:      strings.TrimSpace(r.FormValue("site")),
		Body:      strings.TrimSpace(r.FormValue("body")),
		RepliedID: repliedID,
		Errors:    map[string]string{},
	}
}

// Validate checks the full anonymous form.
func (f *commentForm) Validate() {
	if f.Author == "" {
		f.Errors["author"] = "Name is required"
	} else if len(f.Author) > 30 {
		f.Errors["author"] = "Name must be at most 30 characters"
	}

	if f.Email == "" {
		f.Errors["email"] = "Email is required"
	} else if len(f.Email) > 254 {
		f.Errors["email"] = "Email must be at most 254 characters"
	} else if _, err := mail.ParseAddress(f.Email); err != nil {
		f.Errors["email"] = "Email is not a valid address"
	}

	if f.Site != "" {
		if len(f.Site) > 255 {
			f.Errors["site"] = "Site must be at most 255 characters"
		} else if !validHTTPURL(f.Site) && f.Site != "/" {
			f.Errors["site"] = "Site must be an http or https URL"
		}
	}

	f.ValidateBody()
}

// ValidateBody checks only the comment text; admin submissions carry
// their identity implicitly.
func (f *commentForm) ValidateBody() {
	if f.Body == "" {
		f.Errors["body"] = "Comment is required"
	} else if len(f.Body) > 3000 {
		f.Errors["body"] = "Comment must be at most 3000 characters"
	}
}

type settingsForm struct {
	Name         string
	BlogTitle    string
	BlogSubtitle string
	About        string

	Errors map[string]string
}

func parseSettingsForm(r *http.Request) settingsForm {
	return settingsForm{
		Name:         strings.TrimSpace(r.FormValue("name")),
		BlogTitle:    strings.TrimSpace(r.FormValue("blog_title")),
		BlogSubtitle: strings.TrimSpace(r.FormValue("blog_subtitle")),
		About:        strings.TrimSpace(r.FormValue("about")),
		Errors:       map[string]string{},
	}
}

func (f *settingsForm) Validate() {
	if f.Name == "" {
		f.Errors["name"] = "Name is required"
	} else if len(f.Name) > 30 {
		f.Errors["name"] = "Name must be at most 30 characters"
	}

	if f.BlogTitle == "" {
		f.Errors["blog_title"] = "Blog title is required"
	} else if len(f.BlogTitle) > 60 {
		f.Errors["blog_title"] = "Blog title must be at most 60 characters"
	}

	if len(f.BlogSubtitle) > 100 {
		f.Errors["blog_subtitle"] = "Blog subtitle must be at most 100 characters"
	}

	if f.About == "" {
		f.Errors["about"] = "About is required"
	}
}

type postForm struct {
	Title      string
	Body       string
	CategoryID int64

	Errors map[string]string
}

func parsePostForm(r *http.Request) postForm {
	categoryID, _ := strconv.ParseInt(r.FormValue("category_id"), 10, 64)
	return postForm{
		Title:      strings.TrimSpace(r.FormValue("title")),
		Body:       strings.TrimSpace(r.FormValue("body")),
		CategoryID: categoryID,
		Errors:     map[string]string{},
	}
}

func (f *postForm) Validate() {
	if f.Title == "" {
		f.Errors["title"] = "Title is required"
	} else if len(f.Title) > 60 {
		f.Errors["title"] = "Title must be at most 60 characters"
	}

	if f.Body == "" {
		f.Errors["body"] = "Body is required"
	}

	if f.CategoryID <= 0 {
		f.Errors["category"] = "Pick a category"
	}
}

type categoryForm struct {
	Name string

	Errors map[string]string
}

func parseCategoryForm(r *http.Request) categoryForm {
	return categoryForm{
		Name:   strings.TrimSpace(r.FormValue("name")),
		Errors: map[string]string{},
	}
}

func (f *categoryForm) Validate() {
	if f.Name == "" {
		f.Errors["name"] = "Name is required"
	} else if len(f.Name) > 30 {
		f.Errors["name"] = "Name must be at most 30 characters"
	}
}

type linkForm struct {
	Name string
	URL  string

	Errors map[string]string
}

func parseLinkForm(r *http.Request) linkForm {
	return linkForm{
		Name:   strings.TrimSpace(r.FormValue("name")),
		URL:    strings.TrimSpace(r.FormValue("url")),
		Errors: map[string]string{},
	}
}

func (f *linkForm) Validate() {
	if f.Name == "" {
		f.Errors["name"] = "Name is required"
	} else if len(f.Name) > 30 {
		f.Errors["name"] = "Name must be at most 30 characters"
	}

	if f.URL == "" {
		f.Errors["url"] = "URL is required"
	} else if len(f.URL) > 255 {
		f.Errors["url"] = "URL must be at most 255 characters"
	} else if !validHTTPURL(f.URL) {
		f.Errors["url"] = "URL must be an http or https URL"
	}
}

type loginForm struct {
	Username string
	Password string

	Errors map[string]string
}

func parseLoginForm(r *http.Request) loginForm {
	return loginForm{
		Username: strings.TrimSpace(r.FormValue("username")),
		Password: r.FormValue("password"),
		Errors:   map[string]string{},
	}
}

func (f *loginForm) Validate() {
	if f.Username == "" {
		f.Errors["username"] = "Username is required"
	}
	if f.Password == "" {
		f.Errors["password"] = "Password is required"
	}
}

func validHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
