// Package config loads the server configuration from a TOML file with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var ErrConfParamMissing = fmt.Errorf("configuration parameter missing")

type Config struct {
	HTTPAddr string `toml:"httpAddr"`
	LogLevel string `toml:"logLevel"`

	Postgres Postgres `toml:"postgres"`
	Blog     Blog     `toml:"blog"`
	Mail     Mail     `toml:"mail"`
	Kafka    Kafka    `toml:"kafka"`
}

type Postgres struct {
	User     string `toml:"user"`
	Password string `toml:"password"`
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	DBName   string `toml:"dbName"`
}

type Blog struct {
	PostsPerPage       int    `toml:"postsPerPage"`
	ManagePostsPerPage int    `toml:"managePostsPerPage"`
	CommentsPerPage    int    `toml:"commentsPerPage"`
	UploadDir          string `toml:"uploadDir"`
	// AllowedExtensions is the image upload allow-list, compared
	// case-insensitively and without the leading dot.
	AllowedExtensions []string `toml:"allowedExtensions"`

	SessionLifetimeHours int `toml:"sessionLifetimeHours"`
}

type Mail struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Sender   string `toml:"sender"`
	// AdminEmail receives new-comment notifications.
	AdminEmail string `toml:"adminEmail"`
}

type Kafka struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// Load decodes the TOML file at path and applies defaults and
// environment overrides. With an empty path only defaults and the
// environment apply, which is enough for -dev runs.
func Load(path string) (*Config, error) {
	cfg := Config{
		HTTPAddr: ":8088",
		LogLevel: "info",
		Blog: Blog{
			PostsPerPage:         10,
			ManagePostsPerPage:   15,
			CommentsPerPage:      15,
			UploadDir:            "uploads",
			AllowedExtensions:    []string{"jpg", "jpeg", "png", "gif"},
			SessionLifetimeHours: 24,
		},
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Secrets come from the environment when present.
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		cfg.Postgres.Port = v
	}
	if v := os.Getenv("MAIL_PASSWORD"); v != "" {
		cfg.Mail.Password = v
	}

	return &cfg, nil
}

func (c *Config) SessionLifetime() time.Duration {
	return time.Duration(c.Blog.SessionLifetimeHours) * time.Hour
}

// AllowedExtension reports whether name carries an extension from the
// upload allow-list. Files without an extension are rejected.
func (c *Config) AllowedExtension(name string) bool {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return false
	}

	ext := strings.ToLower(name[i+1:])
	for _, allowed := range c.Blog.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}

	return false
}

// MailEnabled reports whether outgoing notifications are configured.
func (c *Config) MailEnabled() bool {
	return c.Mail.Host != "" && c.Mail.AdminEmail != ""
}
