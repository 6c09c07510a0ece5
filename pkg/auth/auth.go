// Package auth verifies admin credentials and manages store-backed
// sessions addressed by opaque UUID tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"

	"bluelog/pkg/models"
	"bluelog/pkg/storage"
)

var (
	ErrInvalidLogin = errors.New("invalid username or password")
	ErrNoSession    = errors.New("session not found or expired")
)

type ctxKeyAdmin struct{}

// WithAdmin stores the authenticated admin in the request context.
func WithAdmin(ctx context.Context, admin models.Admin) context.Context {
	return context.WithValue(ctx, ctxKeyAdmin{}, admin)
}

// AdminFrom extracts the authenticated admin from the context.
func AdminFrom(ctx context.Context) (models.Admin, bool) {
	admin, ok := ctx.Value(ctxKeyAdmin{}).(models.Admin)
	return admin, ok && admin.ID != 0
}

// HashPassword produces a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Login checks the credentials against the stored admin record and, on
// success, creates a session valid for lifetime. It returns the session
// token.
func Login(ctx context.Context, db storage.Storage, username, password string, lifetime time.Duration) (string, error) {
	admin, err := db.AdminByUsername(ctx, username)
	if errors.Is(err, storage.ErrAdminNotFound) {
		// Burn a comparison anyway so missing and wrong usernames
		// take the same time.
		_ = bcrypt.CompareHashAndPassword(
			[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"),
			[]byte(password))
		return "", ErrInvalidLogin
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidLogin
	}

	token, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	sess := models.Session{
		Token:   token.String(),
		AdminID: admin.ID,
		Expires: time.Now().Add(lifetime),
	}
	if err := db.CreateSession(ctx, sess); err != nil {
		return "", err
	}

	return sess.Token, nil
}

// Logout removes the session regardless of its state.
func Logout(ctx context.Context, db storage.Storage, token string) error {
	return db.DeleteSession(ctx, token)
}

// AdminFromSession resolves the session token to the admin it belongs
// to. Expired sessions are deleted on sight and reported as ErrNoSession.
func AdminFromSession(ctx context.Context, db storage.Storage, token string) (models.Admin, error) {
	sess, err := db.Session(ctx, token)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return models.Admin{}, ErrNoSession
	}
	if err != nil {
		return models.Admin{}, err
	}

	if sess.Expires.Before(time.Now()) {
		_ = db.DeleteSession(ctx, token)
		return models.Admin{}, ErrNoSession
	}

	admin, err := db.Admin(ctx)
	if err != nil {
		return models.Admin{}, err
	}
	if admin.ID != sess.AdminID {
		return models.Admin{}, ErrNoSession
	}

	return admin, nil
}
