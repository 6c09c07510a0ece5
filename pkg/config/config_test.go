package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPAddr != ":8088" {
		t.Errorf("want default addr %q, got %q", ":8088", cfg.HTTPAddr)
	}
	if cfg.Blog.PostsPerPage != 10 {
		t.Errorf("want 10 posts per page, got %d", cfg.Blog.PostsPerPage)
	}
	if cfg.SessionLifetime() != 24*time.Hour {
		t.Errorf("want 24h session lifetime, got %v", cfg.SessionLifetime())
	}
}

func TestLoad_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
httpAddr = ":9000"
logLevel = "debug"

[blog]
postsPerPage = 5

[postgres]
user = "bluelog"
dbName = "bluelog"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPAddr != ":9000" {
		t.Errorf("want addr %q, got %q", ":9000", cfg.HTTPAddr)
	}
	if cfg.Blog.PostsPerPage != 5 {
		t.Errorf("want 5 posts per page, got %d", cfg.Blog.PostsPerPage)
	}
	if cfg.Postgres.User != "bluelog" {
		t.Errorf("want postgres user %q, got %q", "bluelog", cfg.Postgres.User)
	}
	// A setting the file leaves out keeps its default.
	if cfg.Blog.CommentsPerPage != 15 {
		t.Errorf("want 15 comments per page, got %d", cfg.Blog.CommentsPerPage)
	}
}

func TestLoad_envOverride(t *testing.T) {
	t.Setenv("POSTGRES_PASSWORD", "from-env")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Postgres.Password != "from-env" {
		t.Errorf("want password from the environment, got %q", cfg.Postgres.Password)
	}
}

func TestConfig_AllowedExtension(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		want bool
	}{
		{"photo.jpg", true},
		{"photo.JPG", true},
		{"photo.jpeg", true},
		{"animation.gif", true},
		{"payload.exe", false},
		{"noextension", false},
		{"trailing.", false},
		{"archive.tar.png", true},
	}

	for _, tt := range tests {
		if got := cfg.AllowedExtension(tt.name); got != tt.want {
			t.Errorf("AllowedExtension(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestConfig_MailEnabled(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.MailEnabled() {
		t.Errorf("want mail disabled without configuration")
	}

	cfg.Mail.Host = "smtp.example.com"
	cfg.Mail.AdminEmail = "admin@example.com"
	if !cfg.MailEnabled() {
		t.Errorf("want mail enabled with host and admin address set")
	}
}
