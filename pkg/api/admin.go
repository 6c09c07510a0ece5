package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"bluelog/pkg/models"
	"bluelog/pkg/storage"
)

// redirectBack returns to the page a management action was triggered
// from: an explicit next parameter first, then the referrer, then the
// given fallback.
func redirectBack(w http.ResponseWriter, r *http.Request, fallback string) {
	if next := safeNext(r.FormValue("next")); next != "/" {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	if ref, err := url.Parse(r.Referer()); err == nil && ref.Path != "" {
		target := ref.Path
		if ref.RawQuery != "" {
			target += "?" + ref.RawQuery
		}
		http.Redirect(w, r, safeNext(target), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, fallback, http.StatusSeeOther)
}

// ----------------------------------------------------------------------
// Settings
// ----------------------------------------------------------------------

type settingsView struct {
	Form settingsForm
}

func (api *API) settingsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sID := shorten(GetRequestID(ctx))

	admin, err := api.db.Admin(ctx)
	if err != nil {
		log.Errorf("[settingsHandler][%s] Admin() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if r.Method == http.MethodGet {
		form := settingsForm{
			Name:         admin.Name,
			BlogTitle:    admin.BlogTitle,
			BlogSubtitle: admin.BlogSubtitle,
			About:        admin.About,
			Errors:       map[string]string{},
		}
		api.render(w, r, http.StatusOK, "admin_settings.html",
			api.newPage(r, "Settings", settingsView{Form: form}))
		return
	}

	if err := r.ParseForm(); err != nil {
		api.renderError(w, r, http.StatusBadRequest, "Bad request")
		return
	}

	form := parseSettingsForm(r)
	form.Validate()
	if len(form.Errors) > 0 {
		api.render(w, r, http.StatusOK, "admin_settings.html",
			api.newPage(r, "Settings", settingsView{Form: form}))
		return
	}

	admin.Name = form.Name
	admin.BlogTitle = form.BlogTitle
	admin.BlogSubtitle = form.BlogSubtitle
	admin.About = form.About
	if err := api.db.UpdateAdminSettings(ctx, admin); err != nil {
		log.Errorf("[settingsHandler][%s] UpdateAdminSettings() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	http.Redirect(w, r, "/?ok=Settings+updated", http.StatusSeeOther)
}

// ----------------------------------------------------------------------
// Posts
// ----------------------------------------------------------------------

type managePostsView struct {
	Posts      []models.Post
	Pagination pagination
}

func (api *API) managePostsHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	page := pageParam(r)

	posts, numPages, err := api.db.Posts(r.Context(), page, api.cfg.Blog.ManagePostsPerPage)
	if errors.Is(err, storage.ErrPageNotFound) {
		api.renderError(w, r, http.StatusNotFound, "Page not found")
		return
	}
	if err != nil {
		log.Errorf("[managePostsHandler][%s] Posts() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	api.render(w, r, http.StatusOK, "admin_posts.html",
		api.newPage(r, "Manage Posts", managePostsView{
			Posts:      posts,
			Pagination: pagination{Current: page, NumPages: numPages},
		}))
}

type postFormView struct {
	Form       postForm
	Categories []models.Category
	Editing    bool
	PostID     int64
}

func (api *API) renderPostForm(w http.ResponseWriter, r *http.Request, form postForm, editing bool, postID int64) {
	cats, err := api.db.Categories(r.Context())
	if err != nil {
		log.Errorf("[renderPostForm][%s] Categories() returned error: %v", shorten(GetRequestID(r.Context())), err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	title := "New Post"
	if editing {
		title = "Edit Post"
	}
	api.render(w, r, http.StatusOK, "admin_post_form.html",
		api.newPage(r, title, postFormView{Form: form, Categories: cats, Editing: editing, PostID: postID}))
}

func (api *API) newPostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sID := shorten(GetRequestID(ctx))

	if r.Method == http.MethodGet {
		api.renderPostForm(w, r, postForm{Errors: map[string]string{}}, false, 0)
		return
	}

	if err := r.ParseForm(); err != nil {
		api.renderError(w, r, http.StatusBadRequest, "Bad request")
		return
	}

	form := parsePostForm(r)
	form.Validate()
	if len(form.Errors) == 0 {
		if _, err := api.db.Category(ctx, form.CategoryID); errors.Is(err, storage.ErrCategoryNotFound) {
			form.Errors["category"] = "Category does not exist"
		} else if err != nil {
			log.Errorf("[newPostHandler][%s] Category() returned error: %v", sID, err)
			api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
			return
		}
	}
	if len(form.Errors) > 0 {
		api.renderPostForm(w, r, form, false, 0)
		return
	}

	id, err := api.db.CreatePost(ctx, models.Post{
		Title:      form.Title,
		Body:       form.Body,
		CanComment: true,
		CategoryID: form.CategoryID,
	})
	if err != nil {
		log.Errorf("[newPostHandler][%s] CreatePost() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/post/%d?ok=Post+created", id), http.StatusSeeOther)
}

func (api *API) editPostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sID := shorten(GetRequestID(ctx))
	id := muxID(r)

	post, err := api.db.Post(ctx, id)
	if errors.Is(err, storage.ErrPostNotFound) {
		api.renderError(w, r, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		log.Errorf("[editPostHandler][%s] Post() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if r.Method == http.MethodGet {
		form := postForm{
			Title:      post.Title,
			Body:       post.Body,
			CategoryID: post.CategoryID,
			Errors:     map[string]string{},
		}
		api.renderPostForm(w, r, form, true, post.ID)
		return
	}

	if err := r.ParseForm(); err != nil {
		api.renderError(w, r, http.StatusBadRequest, "Bad request")
		return
	}

	form := parsePostForm(r)
	form.Validate()
	if len(form.Errors) == 0 {
		if _, err := api.db.Category(ctx, form.CategoryID); errors.Is(err, storage.ErrCategoryNotFound) {
			form.Errors["category"] = "Category does not exist"
		} else if err != nil {
			log.Errorf("[editPostHandler][%s] Category() returned error: %v", sID, err)
			api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
			return
		}
	}
	if len(form.Errors) > 0 {
		api.renderPostForm(w, r, form, true, post.ID)
		return
	}

	post.Title = form.Title
	post.Body = form.Body
	post.CategoryID = form.CategoryID
	if err := api.db.UpdatePost(ctx, post); err != nil {
		log.Errorf("[editPostHandler][%s] UpdatePost() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/post/%d?ok=Post+updated", post.ID), http.StatusSeeOther)
}

func (api *API) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	id := muxID(r)

	err := api.db.DeletePost(r.Context(), id)
	if errors.Is(err, storage.ErrPostNotFound) {
		api.renderError(w, r, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		log.Errorf("[deletePostHandler][%s] DeletePost() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	redirectBack(w, r, "/admin/post/manage?ok=Post+deleted")
}

func (api *API) setCommentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sID := shorten(GetRequestID(ctx))
	id := muxID(r)

	post, err := api.db.Post(ctx, id)
	if errors.Is(err, storage.ErrPostNotFound) {
		api.renderError(w, r, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		log.Errorf("[setCommentHandler][%s] Post() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if err := api.db.SetCommenting(ctx, id, !post.CanComment); err != nil {
		log.Errorf("[setCommentHandler][%s] SetCommenting() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	redirectBack(w, r, fmt.Sprintf("/post/%d", id))
}

// ----------------------------------------------------------------------
// Comment moderation
// ----------------------------------------------------------------------

type manageCommentsView struct {
	Comments   []models.Comment
	Pagination pagination
	Filter     storage.CommentFilter
}

func (api *API) manageCommentsHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	filter := storage.ParseCommentFilter(r.URL.Query().Get("filter"))
	page := pageParam(r)

	comments, numPages, err := api.db.FilterComments(r.Context(), filter, page, api.cfg.Blog.CommentsPerPage)
	if errors.Is(err, storage.ErrPageNotFound) {
		api.renderError(w, r, http.StatusNotFound, "Page not found")
		return
	}
	if err != nil {
		log.Errorf("[manageCommentsHandler][%s] FilterComments() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	api.render(w, r, http.StatusOK, "admin_comments.html",
		api.newPage(r, "Manage Comments", manageCommentsView{
			Comments:   comments,
			Pagination: pagination{Current: page, NumPages: numPages},
			Filter:     filter,
		}))
}

func (api *API) approveCommentHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	id := muxID(r)

	err := api.db.ApproveComment(r.Context(), id)
	if errors.Is(err, storage.ErrCommentNotFound) {
		api.renderError(w, r, http.StatusNotFound, "Comment not found")
		return
	}
	if err != nil {
		log.Errorf("[approveCommentHandler][%s] ApproveComment() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	redirectBack(w, r, "/admin/comment/manage?ok=Comment+published")
}

func (api *API) deleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	id := muxID(r)

	err := api.db.DeleteComment(r.Context(), id)
	if errors.Is(err, storage.ErrCommentNotFound) {
		api.renderError(w, r, http.StatusNotFound, "Comment not found")
		return
	}
	if err != nil {
		log.Errorf("[deleteCommentHandler][%s] DeleteComment() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	redirectBack(w, r, "/admin/comment/manage?ok=Comment+deleted")
}

// ----------------------------------------------------------------------
// Categories
// ----------------------------------------------------------------------

type manageCategoriesView struct {
	Categories []models.Category
}

func (api *API) manageCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	cats, err := api.db.Categories(r.Context())
	if err != nil {
		log.Errorf("[manageCategoriesHandler][%s] Categories() returned error: %v", shorten(GetRequestID(r.Context())), err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	api.render(w, r, http.StatusOK, "admin_categories.html",
		api.newPage(r, "Manage Categories", manageCategoriesView{Categories: cats}))
}

type categoryFormView struct {
	Form       categoryForm
	Editing    bool
	CategoryID int64
}

func (api *API) newCategoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sID := shorten(GetRequestID(ctx))

	if r.Method == http.MethodGet {
		api.render(w, r, http.StatusOK, "admin_category_form.html",
			api.newPage(r, "New Category", categoryFormView{Form: categoryForm{Errors: map[string]string{}}}))
		return
	}

	if err := r.ParseForm(); err != nil {
		api.renderError(w, r, http.StatusBadRequest, "Bad request")
		return
	}

	form := parseCategoryForm(r)
	form.Validate()
	if len(form.Errors) == 0 {
		_, err := api.db.CreateCategory(ctx, form.Name)
		switch {
		case errors.Is(err, storage.ErrDuplicateCategory):
			form.Errors["name"] = "Category name already in use"
		case err != nil:
			log.Errorf("[newCategoryHandler][%s] CreateCategory() returned error: %v", sID, err)
			api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
			return
		}
	}
	if len(form.Errors) > 0 {
		api.render(w, r, http.StatusOK, "admin_category_form.html",
			api.newPage(r, "New Category", categoryFormView{Form: form}))
		return
	}

	http.Redirect(w, r, "/admin/category/manage?ok=Category+created", http.StatusSeeOther)
}

func (api *API) editCategoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sID := shorten(GetRequestID(ctx))
	id := muxID(r)

	category, err := api.db.Category(ctx, id)
	if errors.Is(err, storage.ErrCategoryNotFound) {
		api.renderError(w, r, http.StatusNotFound, "Category not found")
		return
	}
	if err != nil {
		log.Errorf("[editCategoryHandler][%s] Category() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	// The default category is protected: the request succeeds but
	// nothing changes, only a warning is shown.
	if category.ID == models.DefaultCategoryID {
		http.Redirect(w, r, "/admin/category/manage?warn=You+are+not+allowed+to+edit+the+Default+category", http.StatusSeeOther)
		return
	}

	if r.Method == http.MethodGet {
		form := categoryForm{Name: category.Name, Errors: map[string]string{}}
		api.render(w, r, http.StatusOK, "admin_category_form.html",
			api.newPage(r, "Edit Category", categoryFormView{Form: form, Editing: true, CategoryID: category.ID}))
		return
	}

	if err := r.ParseForm(); err != nil {
		api.renderError(w, r, http.StatusBadRequest, "Bad request")
		return
	}

	form := parseCategoryForm(r)
	form.Validate()
	if len(form.Errors) == 0 {
		err := api.db.UpdateCategory(ctx, id, form.Name)
		switch {
		case errors.Is(err, storage.ErrDuplicateCategory):
			form.Errors["name"] = "Category name already in use"
		case err != nil:
			log.Errorf("[editCategoryHandler][%s] UpdateCategory() returned error: %v", sID, err)
			api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
			return
		}
	}
	if len(form.Errors) > 0 {
		api.render(w, r, http.StatusOK, "admin_category_form.html",
			api.newPage(r, "Edit Category", categoryFormView{Form: form, Editing: true, CategoryID: category.ID}))
		return
	}

	http.Redirect(w, r, "/admin/category/manage?ok=Category+updated", http.StatusSeeOther)
}

func (api *API) deleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	id := muxID(r)

	err := api.db.DeleteCategory(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrProtectedCategory):
		http.Redirect(w, r, "/admin/category/manage?warn=You+are+not+allowed+to+delete+the+Default+category", http.StatusSeeOther)
		return
	case errors.Is(err, storage.ErrCategoryNotFound):
		api.renderError(w, r, http.StatusNotFound, "Category not found")
		return
	case err != nil:
		log.Errorf("[deleteCategoryHandler][%s] DeleteCategory() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	http.Redirect(w, r, "/admin/category/manage?ok=Category+deleted", http.StatusSeeOther)
}

// ----------------------------------------------------------------------
// Links
// ----------------------------------------------------------------------

type manageLinksView struct {
	Links []models.Link
}

func (api *API) manageLinksHandler(w http.ResponseWriter, r *http.Request) {
	links, err := api.db.Links(r.Context())
	if err != nil {
		log.Errorf("[manageLinksHandler][%s] Links() returned error: %v", shorten(GetRequestID(r.Context())), err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	api.render(w, r, http.StatusOK, "admin_links.html",
		api.newPage(r, "Manage Links", manageLinksView{Links: links}))
}

type linkFormView struct {
	Form    linkForm
	Editing bool
	LinkID  int64
}

func (api *API) newLinkHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sID := shorten(GetRequestID(ctx))

	if r.Method == http.MethodGet {
		api.render(w, r, http.StatusOK, "admin_link_form.html",
			api.newPage(r, "New Link", linkFormView{Form: linkForm{Errors: map[string]string{}}}))
		return
	}

	if err := r.ParseForm(); err != nil {
		api.renderError(w, r, http.StatusBadRequest, "Bad request")
		return
	}

	form := parseLinkForm(r)
	form.Validate()
	if len(form.Errors) > 0 {
		api.render(w, r, http.StatusOK, "admin_link_form.html",
			api.newPage(r, "New Link", linkFormView{Form: form}))
		return
	}

	if _, err := api.db.CreateLink(ctx, models.Link{Name: form.Name, URL: form.URL}); err != nil {
		log.Errorf("[newLinkHandler][%s] CreateLink() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	http.Redirect(w, r, "/admin/link/manage?ok=Link+created", http.StatusSeeOther)
}

func (api *API) editLinkHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sID := shorten(GetRequestID(ctx))
	id := muxID(r)

	link, err := api.db.Link(ctx, id)
	if errors.Is(err, storage.ErrLinkNotFound) {
		api.renderError(w, r, http.StatusNotFound, "Link not found")
		return
	}
	if err != nil {
		log.Errorf("[editLinkHandler][%s] Link() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if r.Method == http.MethodGet {
		form := linkForm{Name: link.Name, URL: link.URL, Errors: map[string]string{}}
		api.render(w, r, http.StatusOK, "admin_link_form.html",
			api.newPage(r, "Edit Link", linkFormView{Form: form, Editing: true, LinkID: link.ID}))
		return
	}

	if err := r.ParseForm(); err != nil {
		api.renderError(w, r, http.StatusBadRequest, "Bad request")
		return
	}

	form := parseLinkForm(r)
	form.Validate()
	if len(form.Errors) > 0 {
		api.render(w, r, http.StatusOK, "admin_link_form.html",
			api.newPage(r, "Edit Link", linkFormView{Form: form, Editing: true, LinkID: link.ID}))
		return
	}

	link.Name = form.Name
	link.URL = form.URL
	if err := api.db.UpdateLink(ctx, link); err != nil {
		log.Errorf("[editLinkHandler][%s] UpdateLink() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	http.Redirect(w, r, "/admin/link/manage?ok=Link+updated", http.StatusSeeOther)
}

func (api *API) deleteLinkHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	id := muxID(r)

	err := api.db.DeleteLink(r.Context(), id)
	if errors.Is(err, storage.ErrLinkNotFound) {
		api.renderError(w, r, http.StatusNotFound, "Link not found")
		return
	}
	if err != nil {
		log.Errorf("[deleteLinkHandler][%s] DeleteLink() returned error: %v", sID, err)
		api.renderError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	http.Redirect(w, r, "/admin/link/manage?ok=Link+deleted", http.StatusSeeOther)
}

// ----------------------------------------------------------------------
// Image upload
// ----------------------------------------------------------------------

// maxUploadBytes bounds an upload request body.
const maxUploadBytes = 16 << 20

type uploadError struct {
	Message string `json:"message"`
}

// uploadResponse follows the rich-text editor's upload contract.
type uploadResponse struct {
	Uploaded int          `json:"uploaded"`
	URL      string       `json:"url,omitempty"`
	Filename string       `json:"filename,omitempty"`
	Error    *uploadError `json:"error,omitempty"`
}

func writeUploadError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(uploadResponse{Error: &uploadError{Message: message}})
}

func (api *API) uploadImageHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	f, header, err := r.FormFile("upload")
	if err != nil {
		writeUploadError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer f.Close()

	name := filepath.Base(header.Filename)
	if !api.cfg.AllowedExtension(name) {
		// Rejected before anything touches the disk.
		writeUploadError(w, http.StatusBadRequest, "Image only!")
		return
	}

	if err := os.MkdirAll(api.cfg.Blog.UploadDir, 0o755); err != nil {
		log.Errorf("[uploadImageHandler][%s] failed to create upload dir: %v", sID, err)
		writeUploadError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	// Files are keyed by their original name; a taken name gets a short
	// random suffix instead of overwriting the existing file.
	dest := filepath.Join(api.cfg.Blog.UploadDir, name)
	if _, err := os.Stat(dest); err == nil {
		id, err := uuid.NewV4()
		if err != nil {
			log.Errorf("[uploadImageHandler][%s] failed to generate suffix: %v", sID, err)
			writeUploadError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		ext := filepath.Ext(name)
		name = strings.TrimSuffix(name, ext) + "-" + id.String()[:8] + ext
		dest = filepath.Join(api.cfg.Blog.UploadDir, name)
	}

	out, err := os.Create(dest)
	if err != nil {
		log.Errorf("[uploadImageHandler][%s] failed to create %s: %v", sID, dest, err)
		writeUploadError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, f); err != nil {
		log.Errorf("[uploadImageHandler][%s] failed to store %s: %v", sID, dest, err)
		os.Remove(dest)
		writeUploadError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(uploadResponse{
		Uploaded: 1,
		URL:      "/admin/uploads/" + name,
		Filename: name,
	})
	log.Debugf("[uploadImageHandler][%s] stored %s", sID, dest)
}

func (api *API) getImageHandler(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(mux.Vars(r)["filename"])
	if name == "." || name == "/" {
		api.renderError(w, r, http.StatusNotFound, "File not found")
		return
	}

	path := filepath.Join(api.cfg.Blog.UploadDir, name)
	if _, err := os.Stat(path); err != nil {
		api.renderError(w, r, http.StatusNotFound, "File not found")
		return
	}

	http.ServeFile(w, r, path)
}
