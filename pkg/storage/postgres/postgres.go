package postgres

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"bluelog/pkg/models"
	"bluelog/pkg/storage"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, conStr string) (*Store, error) {
	db, err := pgxpool.Connect(ctx, conStr)
	if err != nil {
		return nil, err
	}
	s := Store{
		db: db,
	}

	return &s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// isUniqueViolation reports whether err is a postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) Close() {
	s.db.Close()
}

// InitSchema applies the embedded schema. Statements are idempotent, so
// running it against an existing database is safe.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

// pageWindow turns (page, limit) into an OFFSET and the total page count
// for the given COUNT query. It reports storage.ErrPageNotFound when the
// requested page lies past the last one; page 1 is always addressable.
func (s *Store) pageWindow(ctx context.Context, page, limit int, countSQL string, args ...interface{}) (offset, numPages int, err error) {
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}

	var total int
	if err := s.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return 0, 0, err
	}

	numPages = storage.NumPages(total, limit)
	if page > 1 && page > numPages {
		return 0, numPages, storage.ErrPageNotFound
	}

	return (page - 1) * limit, numPages, nil
}

// ----------------------------------------------------------------------
// Admin
// ----------------------------------------------------------------------

func (s *Store) Admin(ctx context.Context) (admin models.Admin, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT id, username, password_hash, blog_title, blog_subtitle, name, about
		FROM admins
		ORDER BY id
		LIMIT 1
	`).Scan(
		&admin.ID,
		&admin.Username,
		&admin.PasswordHash,
		&admin.BlogTitle,
		&admin.BlogSubtitle,
		&admin.Name,
		&admin.About,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		err = storage.ErrAdminNotFound
	}
	return
}

func (s *Store) AdminByUsername(ctx context.Context, username string) (admin models.Admin, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT id, username, password_hash, blog_title, blog_subtitle, name, about
		FROM admins
		WHERE username = $1
	`, username).Scan(
		&admin.ID,
		&admin.Username,
		&admin.PasswordHash,
		&admin.BlogTitle,
		&admin.BlogSubtitle,
		&admin.Name,
		&admin.About,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		err = storage.ErrAdminNotFound
	}
	return
}

func (s *Store) CreateAdmin(ctx context.Context, admin models.Admin) (id int64, err error) {
	err = s.db.QueryRow(ctx, `
		INSERT INTO admins (username, password_hash, blog_title, blog_subtitle, name, about)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		admin.Username,
		admin.PasswordHash,
		admin.BlogTitle,
		admin.BlogSubtitle,
		admin.Name,
		admin.About,
	).Scan(&id)
	return
}

func (s *Store) UpdateAdminSettings(ctx context.Context, admin models.Admin) error {
	ct, err := s.db.Exec(ctx, `
		UPDATE admins
		SET blog_title = $2, blog_subtitle = $3, name = $4, about = $5
		WHERE id = $1
	`,
		admin.ID,
		admin.BlogTitle,
		admin.BlogSubtitle,
		admin.Name,
		admin.About,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrAdminNotFound
	}
	return nil
}

// ----------------------------------------------------------------------
// Categories
// ----------------------------------------------------------------------

func (s *Store) Categories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}

	return cats, rows.Err()
}

func (s *Store) Category(ctx context.Context, id int64) (cat models.Category, err error) {
	err = s.db.QueryRow(ctx, `SELECT id, name FROM categories WHERE id = $1`, id).
		Scan(&cat.ID, &cat.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		err = storage.ErrCategoryNotFound
	}
	return
}

func (s *Store) CreateCategory(ctx context.Context, name string) (id int64, err error) {
	err = s.db.QueryRow(ctx, `
		INSERT INTO categories (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING id
	`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = storage.ErrDuplicateCategory
	}
	return
}

func (s *Store) UpdateCategory(ctx context.Context, id int64, name string) error {
	if id == models.DefaultCategoryID {
		return storage.ErrProtectedCategory
	}

	// The unique constraint on name is the single source of truth here,
	// a pre-check would race with concurrent renames.
	ct, err := s.db.Exec(ctx, `UPDATE categories SET name = $2 WHERE id = $1`, id, name)
	if isUniqueViolation(err) {
		return storage.ErrDuplicateCategory
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrCategoryNotFound
	}
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	if id == models.DefaultCategoryID {
		return storage.ErrProtectedCategory
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Posts never dangle: they move to the default category.
	if _, err := tx.Exec(ctx,
		`UPDATE posts SET category_id = $1 WHERE category_id = $2`,
		models.DefaultCategoryID, id,
	); err != nil {
		return err
	}

	ct, err := tx.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrCategoryNotFound
	}

	return tx.Commit(ctx)
}

// ----------------------------------------------------------------------
// Posts
// ----------------------------------------------------------------------

const postColumns = `
	p.id, p.title, p.body, p.created, p.can_comment, p.category_id, c.name,
	(SELECT COUNT(1) FROM comments cm WHERE cm.post_id = p.id)
`

func scanPost(row pgx.Row, p *models.Post) error {
	return row.Scan(
		&p.ID,
		&p.Title,
		&p.Body,
		&p.Created,
		&p.CanComment,
		&p.CategoryID,
		&p.CategoryName,
		&p.CommentCount,
	)
}

func (s *Store) Posts(ctx context.Context, page, limit int) ([]models.Post, int, error) {
	offset, numPages, err := s.pageWindow(ctx, page, limit, `SELECT COUNT(id) FROM posts`)
	if err != nil {
		return nil, numPages, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+postColumns+`
		FROM posts p
		JOIN categories c ON c.id = p.category_id
		ORDER BY p.created DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		if err := scanPost(rows, &p); err != nil {
			return nil, 0, err
		}
		p.Created = p.Created.UTC()
		posts = append(posts, p)
	}

	return posts, numPages, rows.Err()
}

func (s *Store) PostsByCategory(ctx context.Context, categoryID int64, page, limit int) ([]models.Post, int, error) {
	offset, numPages, err := s.pageWindow(ctx, page, limit,
		`SELECT COUNT(id) FROM posts WHERE category_id = $1`, categoryID)
	if err != nil {
		return nil, numPages, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+postColumns+`
		FROM posts p
		JOIN categories c ON c.id = p.category_id
		WHERE p.category_id = $1
		ORDER BY p.created DESC
		LIMIT $2 OFFSET $3
	`, categoryID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		if err := scanPost(rows, &p); err != nil {
			return nil, 0, err
		}
		p.Created = p.Created.UTC()
		posts = append(posts, p)
	}

	return posts, numPages, rows.Err()
}

func (s *Store) Post(ctx context.Context, id int64) (post models.Post, err error) {
	err = scanPost(s.db.QueryRow(ctx, `
		SELECT `+postColumns+`
		FROM posts p
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`, id), &post)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Post{}, storage.ErrPostNotFound
	}
	if err != nil {
		return models.Post{}, err
	}

	post.Created = post.Created.UTC()
	return post, nil
}

func (s *Store) CreatePost(ctx context.Context, post models.Post) (id int64, err error) {
	if post.Created.IsZero() {
		post.Created = time.Now()
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO posts (title, body, created, can_comment, category_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`,
		post.Title,
		post.Body,
		post.Created,
		post.CanComment,
		post.CategoryID,
	).Scan(&id)
	return
}

func (s *Store) UpdatePost(ctx context.Context, post models.Post) error {
	ct, err := s.db.Exec(ctx, `
		UPDATE posts
		SET title = $2, body = $3, category_id = $4
		WHERE id = $1
	`,
		post.ID,
		post.Title,
		post.Body,
		post.CategoryID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrPostNotFound
	}
	return nil
}

func (s *Store) DeletePost(ctx context.Context, id int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// The schema cascades too; the explicit delete keeps the ownership
	// rule visible in one place.
	if _, err := tx.Exec(ctx, `DELETE FROM comments WHERE post_id = $1`, id); err != nil {
		return err
	}

	ct, err := tx.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrPostNotFound
	}

	return tx.Commit(ctx)
}

func (s *Store) SetCommenting(ctx context.Context, id int64, enabled bool) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE posts SET can_comment = $2 WHERE id = $1`, id, enabled)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrPostNotFound
	}
	return nil
}

// ----------------------------------------------------------------------
// Comments
// ----------------------------------------------------------------------

const commentColumns = `
	cm.id, cm.author, cm.email, cm.site, cm.body, cm.created,
	cm.from_admin, cm.reviewed, cm.post_id, COALESCE(cm.replied_id, 0),
	COALESCE((SELECT r.author FROM comments r WHERE r.id = cm.replied_id), ''),
	p.title
`

func scanComment(row pgx.Row, c *models.Comment) error {
	return row.Scan(
		&c.ID,
		&c.Author,
		&c.Email,
		&c.Site,
		&c.Body,
		&c.Created,
		&c.FromAdmin,
		&c.Reviewed,
		&c.PostID,
		&c.RepliedID,
		&c.RepliedAuthor,
		&c.PostTitle,
	)
}

func (s *Store) Comments(ctx context.Context, postID int64, onlyReviewed bool, page, limit int) ([]models.Comment, int, error) {
	countSQL := `SELECT COUNT(id) FROM comments WHERE post_id = $1`
	if onlyReviewed {
		countSQL += ` AND reviewed`
	}
	offset, numPages, err := s.pageWindow(ctx, page, limit, countSQL, postID)
	if err != nil {
		return nil, numPages, err
	}

	listSQL := `
		SELECT ` + commentColumns + `
		FROM comments cm
		JOIN posts p ON p.id = cm.post_id
		WHERE cm.post_id = $1`
	if onlyReviewed {
		listSQL += ` AND cm.reviewed`
	}
	listSQL += `
		ORDER BY cm.created DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.Query(ctx, listSQL, postID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := scanComment(rows, &c); err != nil {
			return nil, 0, err
		}
		c.Created = c.Created.UTC()
		comments = append(comments, c)
	}

	return comments, numPages, rows.Err()
}

func (s *Store) FilterComments(ctx context.Context, filter storage.CommentFilter, page, limit int) ([]models.Comment, int, error) {
	// The three filters are mutually exclusive; anything unknown has
	// already been folded into FilterAll by the caller.
	var cond string
	switch filter {
	case storage.FilterUnread:
		cond = ` WHERE NOT cm.reviewed`
	case storage.FilterAdmin:
		cond = ` WHERE cm.from_admin`
	default:
		cond = ``
	}

	offset, numPages, err := s.pageWindow(ctx, page, limit,
		`SELECT COUNT(id) FROM comments cm`+cond)
	if err != nil {
		return nil, numPages, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+commentColumns+`
		FROM comments cm
		JOIN posts p ON p.id = cm.post_id`+cond+`
		ORDER BY cm.created DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := scanComment(rows, &c); err != nil {
			return nil, 0, err
		}
		c.Created = c.Created.UTC()
		comments = append(comments, c)
	}

	return comments, numPages, rows.Err()
}

func (s *Store) Comment(ctx context.Context, id int64) (comment models.Comment, err error) {
	err = scanComment(s.db.QueryRow(ctx, `
		SELECT `+commentColumns+`
		FROM comments cm
		JOIN posts p ON p.id = cm.post_id
		WHERE cm.id = $1
	`, id), &comment)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Comment{}, storage.ErrCommentNotFound
	}
	if err != nil {
		return models.Comment{}, err
	}

	comment.Created = comment.Created.UTC()
	return comment, nil
}

func (s *Store) CreateComment(ctx context.Context, comment models.Comment) (id int64, err error) {
	var canComment bool
	err = s.db.QueryRow(ctx,
		`SELECT can_comment FROM posts WHERE id = $1`, comment.PostID,
	).Scan(&canComment)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, storage.ErrPostNotFound
	}
	if err != nil {
		return 0, err
	}
	if !canComment {
		return 0, storage.ErrCommentsClosed
	}

	if comment.RepliedID != 0 {
		var cnt int
		err = s.db.QueryRow(ctx,
			`SELECT COUNT(1) FROM comments WHERE id = $1 AND post_id = $2`,
			comment.RepliedID, comment.PostID,
		).Scan(&cnt)
		if err != nil {
			return 0, err
		}
		if cnt == 0 {
			return 0, storage.ErrParentCommentNotFound
		}
	}

	if comment.Created.IsZero() {
		comment.Created = time.Now()
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO comments (author, email, site, body, created, from_admin, reviewed, post_id, replied_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, 0))
		RETURNING id
	`,
		comment.Author,
		comment.Email,
		comment.Site,
		comment.Body,
		comment.Created,
		comment.FromAdmin,
		comment.Reviewed,
		comment.PostID,
		comment.RepliedID,
	).Scan(&id)
	return
}

func (s *Store) ApproveComment(ctx context.Context, id int64) error {
	ct, err := s.db.Exec(ctx, `UPDATE comments SET reviewed = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrCommentNotFound
	}
	return nil
}

func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrCommentNotFound
	}
	return nil
}

func (s *Store) CountUnreviewed(ctx context.Context) (n int, err error) {
	err = s.db.QueryRow(ctx, `SELECT COUNT(id) FROM comments WHERE NOT reviewed`).Scan(&n)
	return
}

// ----------------------------------------------------------------------
// Links
// ----------------------------------------------------------------------

func (s *Store) Links(ctx context.Context) ([]models.Link, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, url FROM links ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.ID, &l.Name, &l.URL); err != nil {
			return nil, err
		}
		links = append(links, l)
	}

	return links, rows.Err()
}

func (s *Store) Link(ctx context.Context, id int64) (link models.Link, err error) {
	err = s.db.QueryRow(ctx, `SELECT id, name, url FROM links WHERE id = $1`, id).
		Scan(&link.ID, &link.Name, &link.URL)
	if errors.Is(err, pgx.ErrNoRows) {
		err = storage.ErrLinkNotFound
	}
	return
}

func (s *Store) CreateLink(ctx context.Context, link models.Link) (id int64, err error) {
	err = s.db.QueryRow(ctx,
		`INSERT INTO links (name, url) VALUES ($1, $2) RETURNING id`,
		link.Name, link.URL,
	).Scan(&id)
	return
}

func (s *Store) UpdateLink(ctx context.Context, link models.Link) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE links SET name = $2, url = $3 WHERE id = $1`,
		link.ID, link.Name, link.URL)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrLinkNotFound
	}
	return nil
}

func (s *Store) DeleteLink(ctx context.Context, id int64) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrLinkNotFound
	}
	return nil
}

// ----------------------------------------------------------------------
// Sessions
// ----------------------------------------------------------------------

func (s *Store) CreateSession(ctx context.Context, sess models.Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (token, admin_id, expires, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		sess.Token,
		sess.AdminID,
		sess.Expires,
		sess.CreatedAt,
	)
	return err
}

func (s *Store) Session(ctx context.Context, token string) (sess models.Session, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT token, admin_id, expires, created_at
		FROM sessions
		WHERE token = $1
	`, token).Scan(&sess.Token, &sess.AdminID, &sess.Expires, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		err = storage.ErrSessionNotFound
	}
	return
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) error {
	_, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE expires < $1`, now)
	return err
}
