package api

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"bluelog/pkg/auth"
	"bluelog/pkg/config"
	"bluelog/pkg/models"
	"bluelog/pkg/storage"
)

// Notifier sends the comment notification mails. *mail.Notifier
// implements it; tests substitute a recording fake.
type Notifier interface {
	NotifyNewComment(post models.Post)
	NotifyReply(parent models.Comment)
}

type API struct {
	r         *mux.Router
	db        storage.Storage
	cfg       *config.Config
	notifier  Notifier
	kw        *kafka.Writer
	templates map[string]*template.Template
}

func New(cfg *config.Config, db storage.Storage, notifier Notifier, kafkaWriter *kafka.Writer) (*API, error) {
	templates, err := newTemplateCache()
	if err != nil {
		return nil, err
	}

	api := API{
		r:         mux.NewRouter(),
		db:        db,
		cfg:       cfg,
		notifier:  notifier,
		kw:        kafkaWriter,
		templates: templates,
	}
	api.endpoints()

	return &api, nil
}

func (api *API) Router() *mux.Router {
	return api.r
}

func (api *API) endpoints() {
	api.r.Use(api.requestIDMiddleware)
	api.r.Use(api.sessionMiddleware)

	if api.kw != nil {
		api.r.Use(api.loggingMiddleware(api.kw))
	}

	api.r.HandleFunc("/", api.indexHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/about", api.aboutHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/post/{id:[0-9]+}", api.showPostHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/post/{id:[0-9]+}/comment", api.newCommentHandler).Methods(http.MethodPost)
	api.r.HandleFunc("/reply/comment/{id:[0-9]+}", api.replyCommentHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/category/{id:[0-9]+}", api.showCategoryHandler).Methods(http.MethodGet)

	api.r.HandleFunc("/auth/login", api.loginHandler).Methods(http.MethodGet, http.MethodPost)
	api.r.HandleFunc("/auth/logout", api.logoutHandler).Methods(http.MethodGet)

	// Uploaded images are embedded in public posts, so retrieval stays
	// outside the auth gate even though it lives under /admin.
	api.r.HandleFunc("/admin/uploads/{filename}", api.getImageHandler).Methods(http.MethodGet)

	admin := api.r.PathPrefix("/admin").Subrouter()
	admin.Use(api.requireAuth)

	admin.HandleFunc("/settings", api.settingsHandler).Methods(http.MethodGet, http.MethodPost)

	admin.HandleFunc("/post/manage", api.managePostsHandler).Methods(http.MethodGet)
	admin.HandleFunc("/post/new", api.newPostHandler).Methods(http.MethodGet, http.MethodPost)
	admin.HandleFunc("/post/{id:[0-9]+}/edit", api.editPostHandler).Methods(http.MethodGet, http.MethodPost)
	admin.HandleFunc("/post/{id:[0-9]+}/delete", api.deletePostHandler).Methods(http.MethodPost)
	admin.HandleFunc("/post/{id:[0-9]+}/set-comment", api.setCommentHandler).Methods(http.MethodPost)

	admin.HandleFunc("/comment/manage", api.manageCommentsHandler).Methods(http.MethodGet)
	admin.HandleFunc("/comment/{id:[0-9]+}/approve", api.approveCommentHandler).Methods(http.MethodPost)
	admin.HandleFunc("/comment/{id:[0-9]+}/delete", api.deleteCommentHandler).Methods(http.MethodPost)

	admin.HandleFunc("/category/manage", api.manageCategoriesHandler).Methods(http.MethodGet)
	admin.HandleFunc("/category/new", api.newCategoryHandler).Methods(http.MethodGet, http.MethodPost)
	admin.HandleFunc("/category/{id:[0-9]+}/edit", api.editCategoryHandler).Methods(http.MethodGet, http.MethodPost)
	admin.HandleFunc("/category/{id:[0-9]+}/delete", api.deleteCategoryHandler).Methods(http.MethodPost)

	admin.HandleFunc("/link/manage", api.manageLinksHandler).Methods(http.MethodGet)
	admin.HandleFunc("/link/new", api.newLinkHandler).Methods(http.MethodGet, http.MethodPost)
	admin.HandleFunc("/link/{id:[0-9]+}/edit", api.editLinkHandler).Methods(http.MethodGet, http.MethodPost)
	admin.HandleFunc("/link/{id:[0-9]+}/delete", api.deleteLinkHandler).Methods(http.MethodPost)

	admin.HandleFunc("/upload", api.uploadImageHandler).Methods(http.MethodPost)
}

// pagination carries the page window into templates.
type pagination struct {
	Current  int
	NumPages int
}

func (p pagination) HasPrev() bool { return p.Current > 1 }
func (p pagination) HasNext() bool { return p.Current < p.NumPages }
func (p pagination) Prev() int     { return p.Current - 1 }
func (p pagination) Next() int     { return p.Current + 1 }

// pageParam reads the 1-based page number from the query string.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	return page
}

// muxID reads the numeric {id} path variable.
func muxID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

type indexView struct {
	Posts      []models.Post
	Pagination pagination
}

func (api *API) indexHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	page := pageParam(r)
	limit := api.cfg.Blog.PostsPerPage

	posts, numPages, err := api.db.Posts(r.Context(), page, limit)
	if errors.Is(err, storage.ErrPageNotFound) {
		// The index clamps to the last page instead of 404ing.
		page = storage.ClampPage(page, numPages)
		posts, numPages, err = api.db.Posts(r.Context(), page, limit)
	}
	if err != nil {
		log.Errorf("[indexHandler][%s] Posts() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	p := api.newPage(r, "", indexView{
		Posts:      posts,
		Pagination: pagination{Current: page, NumPages: numPages},
	})
	api.render(w, r, http.StatusOK, "index.html", p)
}

func (api *API) aboutHandler(w http.ResponseWriter, r *http.Request) {
	p := api.newPage(r, "About", nil)
	api.render(w, r, http.StatusOK, "about.html", p)
}

type postView struct {
	Post       models.Post
	Comments   []models.Comment
	Pagination pagination
	Form       commentForm
	// ReplyTo is set when the visitor followed a reply link.
	ReplyTo models.Comment
}

func (api *API) showPostHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	id := muxID(r)

	post, err := api.db.Post(r.Context(), id)
	if errors.Is(err, storage.ErrPostNotFound) {
		api.renderError(w, r, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		log.Errorf("[showPostHandler][%s] Post() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	view, status, ok := api.buildPostView(w, r, post, commentForm{})
	if !ok {
		return
	}

	api.render(w, r, status, "post.html", api.newPage(r, post.Title, view))
}

// buildPostView loads the comment page and reply pre-fill for the post
// view. It reports false after writing an error response itself.
func (api *API) buildPostView(w http.ResponseWriter, r *http.Request, post models.Post, form commentForm) (postView, int, bool) {
	ctx := r.Context()
	sID := shorten(GetRequestID(ctx))
	admin, loggedIn := auth.AdminFrom(ctx)

	// Unreviewed comments stay out of public sight; the admin sees the
	// full thread.
	onlyReviewed := !loggedIn
	page := pageParam(r)

	comments, numPages, err := api.db.Comments(ctx, post.ID, onlyReviewed, page, api.cfg.Blog.CommentsPerPage)
	if errors.Is(err, storage.ErrPageNotFound) {
		api.renderError(w, r, http.StatusNotFound, "Page not found")
		return postView{}, 0, false
	}
	if err != nil {
		log.Errorf("[showPostHandler][%s] Comments() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return postView{}, 0, false
	}

	view := postView{
		Post:       post,
		Comments:   comments,
		Pagination: pagination{Current: page, NumPages: numPages},
		Form:       form,
	}

	if loggedIn && form.Author == "" {
		view.Form.Author = admin.Name
		view.Form.Email = api.cfg.Mail.AdminEmail
		view.Form.Site = "/"
	}

	if replyID, err := strconv.ParseInt(r.URL.Query().Get("reply"), 10, 64); err == nil && replyID > 0 {
		parent, err := api.db.Comment(ctx, replyID)
		if err != nil || parent.PostID != post.ID {
			api.renderError(w, r, http.StatusNotFound, "Comment not found")
			return postView{}, 0, false
		}
		view.ReplyTo = parent
		view.Form.RepliedID = parent.ID
	}

	return view, http.StatusOK, true
}

func (api *API) newCommentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sID := shorten(GetRequestID(ctx))
	id := muxID(r)

	post, err := api.db.Post(ctx, id)
	if errors.Is(err, storage.ErrPostNotFound) {
		api.renderError(w, r, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		log.Errorf("[newCommentHandler][%s] Post() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if err := r.ParseForm(); err != nil {
		api.renderError(w, r, http.StatusBadRequest, "Bad request")
		return
	}

	admin, loggedIn := auth.AdminFrom(ctx)
	form := parseCommentForm(r)

	comment := models.Comment{
		Author:    form.Author,
		Email:     form.Email,
		Site:      form.Site,
		Body:      form.Body,
		PostID:    post.ID,
		RepliedID: form.RepliedID,
	}

	if loggedIn {
		comment.Author = admin.Name
		comment.Email = api.cfg.Mail.AdminEmail
		comment.Site = "/"
		comment.FromAdmin = true
		comment.Reviewed = true
		form.Author, form.Email, form.Site = comment.Author, comment.Email, comment.Site
	} else if comment.RepliedID != 0 {
		// A reply joins a thread that is already public.
		comment.Reviewed = true
	}

	if !loggedIn {
		form.Validate()
	} else {
		form.ValidateBody()
	}
	if len(form.Errors) > 0 {
		view, status, ok := api.buildPostView(w, r, post, form)
		if !ok {
			return
		}
		api.render(w, r, status, "post.html", api.newPage(r, post.Title, view))
		return
	}

	var parent models.Comment
	if comment.RepliedID != 0 {
		parent, err = api.db.Comment(ctx, comment.RepliedID)
		if err != nil || parent.PostID != post.ID {
			api.renderError(w, r, http.StatusNotFound, "Comment not found")
			return
		}
	}

	if _, err := api.db.CreateComment(ctx, comment); err != nil {
		switch {
		case errors.Is(err, storage.ErrCommentsClosed):
			http.Redirect(w, r, fmt.Sprintf("/post/%d?warn=%s", post.ID, "Comments+are+closed"), http.StatusSeeOther)
		case errors.Is(err, storage.ErrParentCommentNotFound):
			api.renderError(w, r, http.StatusNotFound, "Comment not found")
		default:
			log.Errorf("[newCommentHandler][%s] CreateComment() returned error: %v", sID, err)
			api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	// Notifications never block or fail the submission. Replies to the
	// admin's own comments are skipped, everything else notifies the
	// parent commenter.
	if api.notifier != nil && comment.RepliedID != 0 && !parent.FromAdmin {
		api.notifier.NotifyReply(parent)
	}
	if !loggedIn {
		if api.notifier != nil && comment.RepliedID == 0 {
			api.notifier.NotifyNewComment(post)
		}
		http.Redirect(w, r, fmt.Sprintf("/post/%d?ok=%s", post.ID, "Your+comment+will+be+published+after+review"), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/post/%d?ok=%s", post.ID, "Comment+published"), http.StatusSeeOther)
}

func (api *API) replyCommentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := muxID(r)

	comment, err := api.db.Comment(ctx, id)
	if errors.Is(err, storage.ErrCommentNotFound) {
		api.renderError(w, r, http.StatusNotFound, "Comment not found")
		return
	}
	if err != nil {
		log.Errorf("[replyCommentHandler][%s] Comment() returned error: %v", shorten(GetRequestID(ctx)), err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	target := fmt.Sprintf("/post/%d?reply=%d#comment-form", comment.PostID, comment.ID)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

type categoryView struct {
	Category   models.Category
	Posts      []models.Post
	Pagination pagination
}

func (api *API) showCategoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sID := shorten(GetRequestID(ctx))
	id := muxID(r)

	category, err := api.db.Category(ctx, id)
	if errors.Is(err, storage.ErrCategoryNotFound) {
		api.renderError(w, r, http.StatusNotFound, "Category not found")
		return
	}
	if err != nil {
		log.Errorf("[showCategoryHandler][%s] Category() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	page := pageParam(r)
	posts, numPages, err := api.db.PostsByCategory(ctx, id, page, api.cfg.Blog.PostsPerPage)
	if errors.Is(err, storage.ErrPageNotFound) {
		api.renderError(w, r, http.StatusNotFound, "Page not found")
		return
	}
	if err != nil {
		log.Errorf("[showCategoryHandler][%s] PostsByCategory() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	p := api.newPage(r, category.Name, categoryView{
		Category:   category,
		Posts:      posts,
		Pagination: pagination{Current: page, NumPages: numPages},
	})
	api.render(w, r, http.StatusOK, "category.html", p)
}

// GetRequestID extracts the request ID from the context.
// It returns the request ID as a string if present, otherwise returns an empty string.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// shorten truncates a string to 6 characters if it is longer than 6, appends '...' at the end,
// otherwise it returns the string unchanged.
func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
