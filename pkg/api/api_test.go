package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"bluelog/pkg/auth"
	"bluelog/pkg/config"
	"bluelog/pkg/models"
	"bluelog/pkg/storage/memdb"
)

const (
	testAdminUsername = "admin"
	testAdminPassword = "test-password"
)

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

// newTestAPI builds an API over a fresh in-memory store seeded with an
// admin account and one commentable post.
func newTestAPI(t *testing.T) (*API, *memdb.Store, int64) {
	t.Helper()

	db := memdb.New()

	hash, err := auth.HashPassword(testAdminPassword)
	if err != nil {
		t.Fatalf("unexpected error while hashing password: %v", err)
	}
	_, err = db.CreateAdmin(context.Background(), models.Admin{
		Username:     testAdminUsername,
		PasswordHash: hash,
		BlogTitle:    "Test Blog",
		BlogSubtitle: "testing",
		Name:         "Tester",
		About:        "about text",
	})
	if err != nil {
		t.Fatalf("unexpected error while creating admin: %v", err)
	}

	postID, err := db.CreatePost(context.Background(), models.Post{
		Title:      "First post",
		Body:       "<p>hello</p>",
		CanComment: true,
		CategoryID: models.DefaultCategoryID,
	})
	if err != nil {
		t.Fatalf("unexpected error while creating post: %v", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("unexpected error while loading config: %v", err)
	}
	cfg.Blog.UploadDir = t.TempDir()

	api, err := New(cfg, db, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error while creating API: %v", err)
	}

	return api, db, postID
}

// loginCookie logs the seeded admin in and returns the session cookie.
func loginCookie(t *testing.T, api *API, db *memdb.Store) *http.Cookie {
	t.Helper()

	token, err := auth.Login(context.Background(), db, testAdminUsername, testAdminPassword, api.cfg.SessionLifetime())
	if err != nil {
		t.Fatalf("unexpected error while logging in: %v", err)
	}

	return &http.Cookie{Name: SessionCookie, Value: token}
}

func TestAPI_indexHandler(t *testing.T) {
	api, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("want status code %v, got status code %v", http.StatusOK, rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, "First post") {
		t.Errorf("want index to list the seeded post, got:\n%s", body)
	}
}

func TestAPI_indexHandler_clampsPageOverflow(t *testing.T) {
	api, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/?page=99", nil)
	rr := httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("want index to clamp an out-of-range page, got status code %v", rr.Code)
	}
}

func TestAPI_indexHandler_clampsPageOnEmptyBlog(t *testing.T) {
	api, db, postID := newTestAPI(t)

	if err := db.DeletePost(context.Background(), postID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/?page=2", nil)
	rr := httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("want index to clamp the page on an empty blog, got status code %v", rr.Code)
	}
}

func TestAPI_showPostHandler_notFound(t *testing.T) {
	api, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/post/999", nil)
	rr := httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("want status code %v, got status code %v", http.StatusNotFound, rr.Code)
	}
}

func TestAPI_showCategoryHandler_pageOverflow(t *testing.T) {
	api, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/category/1?page=99", nil)
	rr := httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("want status code %v for an out-of-range category page, got %v", http.StatusNotFound, rr.Code)
	}
}

func sendForm(t *testing.T, api *API, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)

	return rr
}

func TestAPI_newCommentHandler_anonymousPendingReview(t *testing.T) {
	api, db, postID := newTestAPI(t)

	form := url.Values{
		"author": {"John Doe"},
		"email":  {"john@example.com"},
		"site":   {"https://example.com"},
		"body":   {"nice post"},
	}
	rr := sendForm(t, api, fmt.Sprintf("/post/%d/comment", postID), form, nil)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("want status code %v, got status code %v", http.StatusSeeOther, rr.Code)
	}
	if loc := rr.Header().Get("Location"); !strings.Contains(loc, "review") {
		t.Errorf("want redirect to mention review, got %q", loc)
	}

	comments, _, err := db.Comments(context.Background(), postID, false, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("want 1 comment, got %d", len(comments))
	}
	if comments[0].Reviewed {
		t.Errorf("want anonymous comment to await review")
	}
	if comments[0].FromAdmin {
		t.Errorf("want anonymous comment without the admin flag")
	}
}

func TestAPI_newCommentHandler_adminPublishesDirectly(t *testing.T) {
	api, db, postID := newTestAPI(t)
	cookie := loginCookie(t, api, db)

	form := url.Values{"body": {"thanks for reading"}}
	rr := sendForm(t, api, fmt.Sprintf("/post/%d/comment", postID), form, cookie)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("want status code %v, got status code %v", http.StatusSeeOther, rr.Code)
	}

	comments, _, err := db.Comments(context.Background(), postID, true, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("want 1 reviewed comment, got %d", len(comments))
	}
	if !comments[0].FromAdmin {
		t.Errorf("want admin comment flagged FromAdmin")
	}
	if comments[0].Author != "Tester" {
		t.Errorf("want admin identity on the comment, got author %q", comments[0].Author)
	}
}

func TestAPI_newCommentHandler_closedPost(t *testing.T) {
	api, db, postID := newTestAPI(t)

	if err := db.SetCommenting(context.Background(), postID, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	form := url.Values{
		"author": {"John Doe"},
		"email":  {"john@example.com"},
		"body":   {"too late"},
	}
	rr := sendForm(t, api, fmt.Sprintf("/post/%d/comment", postID), form, nil)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("want status code %v, got status code %v", http.StatusSeeOther, rr.Code)
	}
	if loc := rr.Header().Get("Location"); !strings.Contains(loc, "warn=") {
		t.Errorf("want a warning redirect, got %q", loc)
	}

	comments, _, err := db.Comments(context.Background(), postID, false, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(comments) != 0 {
		t.Errorf("want no comment stored for a closed post, got %d", len(comments))
	}
}

func TestAPI_newCommentHandler_validation(t *testing.T) {
	api, db, postID := newTestAPI(t)

	form := url.Values{
		"author": {"John Doe"},
		"email":  {"not-an-address"},
		"body":   {"hello"},
	}
	rr := sendForm(t, api, fmt.Sprintf("/post/%d/comment", postID), form, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("want the post page re-rendered with errors, got status code %v", rr.Code)
	}

	comments, _, err := db.Comments(context.Background(), postID, false, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(comments) != 0 {
		t.Errorf("want no comment stored on validation failure, got %d", len(comments))
	}
}

func TestAPI_newCommentHandler_replyAutoReviewed(t *testing.T) {
	api, db, postID := newTestAPI(t)

	parentID, err := db.CreateComment(context.Background(), models.Comment{
		Author:   "Jane",
		Email:    "jane@example.com",
		Body:     "first",
		Reviewed: true,
		PostID:   postID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	form := url.Values{
		"author":     {"John Doe"},
		"email":      {"john@example.com"},
		"body":       {"replying"},
		"replied_id": {fmt.Sprint(parentID)},
	}
	rr := sendForm(t, api, fmt.Sprintf("/post/%d/comment", postID), form, nil)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("want status code %v, got status code %v", http.StatusSeeOther, rr.Code)
	}

	comments, _, err := db.Comments(context.Background(), postID, true, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("want the reply published without review, got %d reviewed comments", len(comments))
	}
}

// notifierRecorder captures notifications instead of sending mail.
type notifierRecorder struct {
	newComments []models.Post
	replies     []models.Comment
}

func (n *notifierRecorder) NotifyNewComment(post models.Post) {
	n.newComments = append(n.newComments, post)
}

func (n *notifierRecorder) NotifyReply(parent models.Comment) {
	n.replies = append(n.replies, parent)
}

func TestAPI_newCommentHandler_adminReplyNotifiesParent(t *testing.T) {
	api, db, postID := newTestAPI(t)
	rec := &notifierRecorder{}
	api.notifier = rec
	cookie := loginCookie(t, api, db)

	parentID, err := db.CreateComment(context.Background(), models.Comment{
		Author:   "Jane",
		Email:    "jane@example.com",
		Body:     "first",
		Reviewed: true,
		PostID:   postID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	form := url.Values{
		"body":       {"thanks, good point"},
		"replied_id": {fmt.Sprint(parentID)},
	}
	rr := sendForm(t, api, fmt.Sprintf("/post/%d/comment", postID), form, cookie)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("want status code %v, got status code %v", http.StatusSeeOther, rr.Code)
	}
	if len(rec.replies) != 1 {
		t.Fatalf("want the parent commenter notified of the admin reply, got %d notifications", len(rec.replies))
	}
	if rec.replies[0].Email != "jane@example.com" {
		t.Errorf("want notification for jane@example.com, got %q", rec.replies[0].Email)
	}
}

func TestAPI_newCommentHandler_replyToAdminSkipsNotification(t *testing.T) {
	api, db, postID := newTestAPI(t)
	rec := &notifierRecorder{}
	api.notifier = rec

	parentID, err := db.CreateComment(context.Background(), models.Comment{
		Author:    "Tester",
		Body:      "from the author",
		Reviewed:  true,
		FromAdmin: true,
		PostID:    postID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	form := url.Values{
		"author":     {"John Doe"},
		"email":      {"john@example.com"},
		"body":       {"replying to the author"},
		"replied_id": {fmt.Sprint(parentID)},
	}
	rr := sendForm(t, api, fmt.Sprintf("/post/%d/comment", postID), form, nil)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("want status code %v, got status code %v", http.StatusSeeOther, rr.Code)
	}
	if len(rec.replies) != 0 {
		t.Errorf("want no reply notification for the admin's own comment, got %d", len(rec.replies))
	}
}

func TestAPI_unreviewedHiddenFromPublic(t *testing.T) {
	api, db, postID := newTestAPI(t)

	if _, err := db.CreateComment(context.Background(), models.Comment{
		Author: "Jane",
		Email:  "jane@example.com",
		Body:   "pending comment text",
		PostID: postID,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/post/%d", postID), nil)
	rr := httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("want status code %v, got status code %v", http.StatusOK, rr.Code)
	}
	if strings.Contains(rr.Body.String(), "pending comment text") {
		t.Errorf("want unreviewed comment hidden from public view")
	}

	cookie := loginCookie(t, api, db)
	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/post/%d", postID), nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)

	if !strings.Contains(rr.Body.String(), "pending comment text") {
		t.Errorf("want unreviewed comment visible to the admin")
	}
}

func TestAPI_replyCommentHandler_redirect(t *testing.T) {
	api, db, postID := newTestAPI(t)

	commentID, err := db.CreateComment(context.Background(), models.Comment{
		Author:   "Jane",
		Email:    "jane@example.com",
		Body:     "first",
		Reviewed: true,
		PostID:   postID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/reply/comment/%d", commentID), nil)
	rr := httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("want status code %v, got status code %v", http.StatusSeeOther, rr.Code)
	}
	want := fmt.Sprintf("/post/%d?reply=%d#comment-form", postID, commentID)
	if loc := rr.Header().Get("Location"); loc != want {
		t.Errorf("want redirect to %q, got %q", want, loc)
	}
}

func TestAPI_requireAuth_redirectsToLogin(t *testing.T) {
	api, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/post/manage", nil)
	rr := httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("want status code %v, got status code %v", http.StatusSeeOther, rr.Code)
	}
	loc := rr.Header().Get("Location")
	if !strings.HasPrefix(loc, "/auth/login") {
		t.Errorf("want redirect to the login page, got %q", loc)
	}
	if !strings.Contains(loc, "next=") {
		t.Errorf("want the original URL preserved in next, got %q", loc)
	}
}

func TestAPI_loginHandler(t *testing.T) {
	api, _, _ := newTestAPI(t)

	form := url.Values{
		"username": {testAdminUsername},
		"password": {testAdminPassword},
		"next":     {"/admin/post/manage"},
	}
	rr := sendForm(t, api, "/auth/login", form, nil)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("want status code %v, got status code %v", http.StatusSeeOther, rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/admin/post/manage" {
		t.Errorf("want redirect back to %q, got %q", "/admin/post/manage", loc)
	}

	var sessionCookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookie {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatalf("want a session cookie on successful login")
	}
	if !sessionCookie.HttpOnly {
		t.Errorf("want the session cookie to be HttpOnly")
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/post/manage", nil)
	req.AddCookie(sessionCookie)
	rr = httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("want admin page after login, got status code %v", rr.Code)
	}
}

func TestAPI_loginHandler_wrongPassword(t *testing.T) {
	api, _, _ := newTestAPI(t)

	form := url.Values{
		"username": {testAdminUsername},
		"password": {"wrong"},
	}
	rr := sendForm(t, api, "/auth/login", form, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("want the login page re-rendered, got status code %v", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Invalid username or password") {
		t.Errorf("want the login error shown")
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookie {
			t.Errorf("want no session cookie on failed login")
		}
	}
}

func TestAPI_logoutHandler(t *testing.T) {
	api, db, _ := newTestAPI(t)
	cookie := loginCookie(t, api, db)

	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("want status code %v, got status code %v", http.StatusSeeOther, rr.Code)
	}

	// The old session must no longer open the admin panel.
	req = httptest.NewRequest(http.MethodGet, "/admin/post/manage", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusSeeOther {
		t.Errorf("want redirect to login after logout, got status code %v", rr.Code)
	}
}
