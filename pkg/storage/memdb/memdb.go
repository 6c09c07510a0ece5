// Package memdb is an in-memory Storage used by handler tests and the
// -dev server mode. It mirrors the postgres store's semantics, including
// pagination bounds, cascade deletes and category reassignment.
package memdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bluelog/pkg/models"
	"bluelog/pkg/storage"
)

type Store struct {
	mu sync.Mutex

	admins     map[int64]models.Admin
	categories map[int64]models.Category
	posts      map[int64]models.Post
	comments   map[int64]models.Comment
	links      map[int64]models.Link
	sessions   map[string]models.Session

	nextID int64
}

func New() *Store {
	db := Store{
		admins:     make(map[int64]models.Admin),
		categories: make(map[int64]models.Category),
		posts:      make(map[int64]models.Post),
		comments:   make(map[int64]models.Comment),
		links:      make(map[int64]models.Link),
		sessions:   make(map[string]models.Session),
		nextID:     1,
	}
	db.categories[models.DefaultCategoryID] = models.Category{
		ID:   models.DefaultCategoryID,
		Name: "Default",
	}
	db.nextID = models.DefaultCategoryID + 1

	return &db
}

func (db *Store) Ping(ctx context.Context) error { return nil }

func (db *Store) genID() int64 {
	id := db.nextID
	db.nextID++
	return id
}

// paginate slices an already-sorted listing into the requested page.
func paginate[T any](items []T, page, limit int) ([]T, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}

	numPages := storage.NumPages(len(items), limit)
	if page > 1 && page > numPages {
		return nil, numPages, storage.ErrPageNotFound
	}

	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}, numPages, nil
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}

	return items[start:end], numPages, nil
}

// ----------------------------------------------------------------------
// Admin
// ----------------------------------------------------------------------

func (db *Store) Admin(ctx context.Context) (models.Admin, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var found bool
	var first models.Admin
	for _, a := range db.admins {
		if !found || a.ID < first.ID {
			first = a
			found = true
		}
	}
	if !found {
		return models.Admin{}, storage.ErrAdminNotFound
	}

	return first, nil
}

func (db *Store) AdminByUsername(ctx context.Context, username string) (models.Admin, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, a := range db.admins {
		if a.Username == username {
			return a, nil
		}
	}

	return models.Admin{}, storage.ErrAdminNotFound
}

func (db *Store) CreateAdmin(ctx context.Context, admin models.Admin) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	admin.ID = db.genID()
	db.admins[admin.ID] = admin

	return admin.ID, nil
}

func (db *Store) UpdateAdminSettings(ctx context.Context, admin models.Admin) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, ok := db.admins[admin.ID]
	if !ok {
		return storage.ErrAdminNotFound
	}

	stored.BlogTitle = admin.BlogTitle
	stored.BlogSubtitle = admin.BlogSubtitle
	stored.Name = admin.Name
	stored.About = admin.About
	db.admins[admin.ID] = stored

	return nil
}

// ----------------------------------------------------------------------
// Categories
// ----------------------------------------------------------------------

func (db *Store) Categories(ctx context.Context) ([]models.Category, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	cats := make([]models.Category, 0, len(db.categories))
	for _, c := range db.categories {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })

	return cats, nil
}

func (db *Store) Category(ctx context.Context, id int64) (models.Category, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.categories[id]
	if !ok {
		return models.Category{}, storage.ErrCategoryNotFound
	}

	return c, nil
}

func (db *Store) CreateCategory(ctx context.Context, name string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, c := range db.categories {
		if c.Name == name {
			return 0, storage.ErrDuplicateCategory
		}
	}

	id := db.genID()
	db.categories[id] = models.Category{ID: id, Name: name}

	return id, nil
}

func (db *Store) UpdateCategory(ctx context.Context, id int64, name string) error {
	if id == models.DefaultCategoryID {
		return storage.ErrProtectedCategory
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.categories[id]
	if !ok {
		return storage.ErrCategoryNotFound
	}
	for _, other := range db.categories {
		if other.ID != id && other.Name == name {
			return storage.ErrDuplicateCategory
		}
	}

	c.Name = name
	db.categories[id] = c

	return nil
}

func (db *Store) DeleteCategory(ctx context.Context, id int64) error {
	if id == models.DefaultCategoryID {
		return storage.ErrProtectedCategory
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.categories[id]; !ok {
		return storage.ErrCategoryNotFound
	}

	for pid, p := range db.posts {
		if p.CategoryID == id {
			p.CategoryID = models.DefaultCategoryID
			db.posts[pid] = p
		}
	}
	delete(db.categories, id)

	return nil
}

// ----------------------------------------------------------------------
// Posts
// ----------------------------------------------------------------------

func (db *Store) fillPost(p models.Post) models.Post {
	if c, ok := db.categories[p.CategoryID]; ok {
		p.CategoryName = c.Name
	}
	n := 0
	for _, cm := range db.comments {
		if cm.PostID == p.ID {
			n++
		}
	}
	p.CommentCount = n

	return p
}

func (db *Store) sortedPosts(categoryID int64) []models.Post {
	posts := make([]models.Post, 0, len(db.posts))
	for _, p := range db.posts {
		if categoryID != 0 && p.CategoryID != categoryID {
			continue
		}
		posts = append(posts, db.fillPost(p))
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].Created.Equal(posts[j].Created) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].Created.After(posts[j].Created)
	})

	return posts
}

func (db *Store) Posts(ctx context.Context, page, limit int) ([]models.Post, int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return paginate(db.sortedPosts(0), page, limit)
}

func (db *Store) PostsByCategory(ctx context.Context, categoryID int64, page, limit int) ([]models.Post, int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return paginate(db.sortedPosts(categoryID), page, limit)
}

func (db *Store) Post(ctx context.Context, id int64) (models.Post, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.posts[id]
	if !ok {
		return models.Post{}, storage.ErrPostNotFound
	}

	return db.fillPost(p), nil
}

func (db *Store) CreatePost(ctx context.Context, post models.Post) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.categories[post.CategoryID]; !ok {
		return 0, storage.ErrCategoryNotFound
	}
	if post.Created.IsZero() {
		post.Created = time.Now()
	}

	post.ID = db.genID()
	db.posts[post.ID] = post

	return post.ID, nil
}

func (db *Store) UpdatePost(ctx context.Context, post models.Post) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, ok := db.posts[post.ID]
	if !ok {
		return storage.ErrPostNotFound
	}

	stored.Title = post.Title
	stored.Body = post.Body
	stored.CategoryID = post.CategoryID
	db.posts[post.ID] = stored

	return nil
}

func (db *Store) DeletePost(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.posts[id]; !ok {
		return storage.ErrPostNotFound
	}

	for cid, cm := range db.comments {
		if cm.PostID == id {
			delete(db.comments, cid)
		}
	}
	delete(db.posts, id)

	return nil
}

func (db *Store) SetCommenting(ctx context.Context, id int64, enabled bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.posts[id]
	if !ok {
		return storage.ErrPostNotFound
	}

	p.CanComment = enabled
	db.posts[id] = p

	return nil
}

// ----------------------------------------------------------------------
// Comments
// ----------------------------------------------------------------------

func (db *Store) fillComment(c models.Comment) models.Comment {
	if parent, ok := db.comments[c.RepliedID]; ok {
		c.RepliedAuthor = parent.Author
	}
	if p, ok := db.posts[c.PostID]; ok {
		c.PostTitle = p.Title
	}

	return c
}

func (db *Store) sortedComments(keep func(models.Comment) bool) []models.Comment {
	comments := make([]models.Comment, 0, len(db.comments))
	for _, c := range db.comments {
		if keep(c) {
			comments = append(comments, db.fillComment(c))
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].Created.Equal(comments[j].Created) {
			return comments[i].ID > comments[j].ID
		}
		return comments[i].Created.After(comments[j].Created)
	})

	return comments
}

func (db *Store) Comments(ctx context.Context, postID int64, onlyReviewed bool, page, limit int) ([]models.Comment, int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	comments := db.sortedComments(func(c models.Comment) bool {
		if c.PostID != postID {
			return false
		}
		return !onlyReviewed || c.Reviewed
	})

	return paginate(comments, page, limit)
}

func (db *Store) FilterComments(ctx context.Context, filter storage.CommentFilter, page, limit int) ([]models.Comment, int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	comments := db.sortedComments(func(c models.Comment) bool {
		switch filter {
		case storage.FilterUnread:
			return !c.Reviewed
		case storage.FilterAdmin:
			return c.FromAdmin
		default:
			return true
		}
	})

	return paginate(comments, page, limit)
}

func (db *Store) Comment(ctx context.Context, id int64) (models.Comment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.comments[id]
	if !ok {
		return models.Comment{}, storage.ErrCommentNotFound
	}

	return db.fillComment(c), nil
}

func (db *Store) CreateComment(ctx context.Context, comment models.Comment) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	post, ok := db.posts[comment.PostID]
	if !ok {
		return 0, storage.ErrPostNotFound
	}
	if !post.CanComment {
		return 0, storage.ErrCommentsClosed
	}

	if comment.RepliedID != 0 {
		parent, ok := db.comments[comment.RepliedID]
		if !ok || parent.PostID != comment.PostID {
			return 0, storage.ErrParentCommentNotFound
		}
	}

	if comment.Created.IsZero() {
		comment.Created = time.Now()
	}

	comment.ID = db.genID()
	db.comments[comment.ID] = comment

	return comment.ID, nil
}

func (db *Store) ApproveComment(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.comments[id]
	if !ok {
		return storage.ErrCommentNotFound
	}

	c.Reviewed = true
	db.comments[id] = c

	return nil
}

func (db *Store) DeleteComment(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.comments[id]; !ok {
		return storage.ErrCommentNotFound
	}
	delete(db.comments, id)

	return nil
}

func (db *Store) CountUnreviewed(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	n := 0
	for _, c := range db.comments {
		if !c.Reviewed {
			n++
		}
	}

	return n, nil
}

// ----------------------------------------------------------------------
// Links
// ----------------------------------------------------------------------

func (db *Store) Links(ctx context.Context) ([]models.Link, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	links := make([]models.Link, 0, len(db.links))
	for _, l := range db.links {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool {
		return strings.ToLower(links[i].Name) < strings.ToLower(links[j].Name)
	})

	return links, nil
}

func (db *Store) Link(ctx context.Context, id int64) (models.Link, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	l, ok := db.links[id]
	if !ok {
		return models.Link{}, storage.ErrLinkNotFound
	}

	return l, nil
}

func (db *Store) CreateLink(ctx context.Context, link models.Link) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	link.ID = db.genID()
	db.links[link.ID] = link

	return link.ID, nil
}

func (db *Store) UpdateLink(ctx context.Context, link models.Link) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.links[link.ID]; !ok {
		return storage.ErrLinkNotFound
	}
	db.links[link.ID] = link

	return nil
}

func (db *Store) DeleteLink(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.links[id]; !ok {
		return storage.ErrLinkNotFound
	}
	delete(db.links, id)

	return nil
}

// ----------------------------------------------------------------------
// Sessions
// ----------------------------------------------------------------------

func (db *Store) CreateSession(ctx context.Context, s models.Session) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	db.sessions[s.Token] = s

	return nil
}

func (db *Store) Session(ctx context.Context, token string) (models.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[token]
	if !ok {
		return models.Session{}, storage.ErrSessionNotFound
	}

	return s, nil
}

func (db *Store) DeleteSession(ctx context.Context, token string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.sessions, token)

	return nil
}

func (db *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for token, s := range db.sessions {
		if s.Expires.Before(now) {
			delete(db.sessions, token)
		}
	}

	return nil
}
