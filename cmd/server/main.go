package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"bluelog/pkg/api"
	"bluelog/pkg/auth"
	"bluelog/pkg/config"
	"bluelog/pkg/mail"
	"bluelog/pkg/models"
	"bluelog/pkg/storage"
	"bluelog/pkg/storage/memdb"
	"bluelog/pkg/storage/postgres"
)

// sessionSweepInterval is how often expired sessions are purged.
const sessionSweepInterval = time.Hour

func main() {
	var (
		confPath string
		dev      bool
		initDB   bool
		httpAddr string
		logLevel string
	)

	var (
		sigChan = make(chan os.Signal, 1)
		done    = make(chan struct{})
	)

	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	flag.StringVar(&confPath, "config", "", "Path to the TOML configuration file.")
	flag.BoolVar(&dev, "dev", false, "Run the server in development mode with in-memory DB.")
	flag.BoolVar(&initDB, "initdb", false, "Apply the database schema before serving.")
	flag.StringVar(&httpAddr, "http", "", "HTTP server address in the form 'host:port'.")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.Parse()

	cfg, err := config.Load(confPath)
	if err != nil {
		log.Fatal(err)
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if !strings.Contains(cfg.HTTPAddr, ":") {
		log.Warn("use ':' before port number, e.g. ':8080'")
	}

	switch cfg.LogLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	}

	var sdb storage.Storage

	switch dev {
	case false:
		conf := postgres.Config{
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			DBName:   cfg.Postgres.DBName,
		}
		if !conf.IsValid() {
			log.Fatal(fmt.Errorf("invalid postgres config: %+v", conf))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err := postgres.New(ctx, conf.ConString())
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()

		if err := db.Ping(ctx); err != nil {
			log.Fatal(fmt.Errorf("%w: %v", storage.ErrDBNotResponding, err))
		}
		log.Infof("connected to postgres: %s", conf)

		if initDB {
			if err := db.InitSchema(ctx); err != nil {
				log.Fatalf("failed to apply schema: %v", err)
			}
			log.Info("database schema applied")
		}
		sdb = db

	case true:
		log.Info("Run server with in memory DB")
		sdb = memdb.New()
	}

	if err := bootstrapAdmin(sdb); err != nil {
		log.Fatal(err)
	}

	var notifier *mail.Notifier
	if cfg.MailEnabled() {
		notifier = mail.New(cfg.Mail, baseURL(cfg.HTTPAddr))
		log.Infof("comment notifications go to %s", cfg.Mail.AdminEmail)
	} else {
		log.Info("mail is not configured, comment notifications disabled")
	}

	var kWriter *kafka.Writer
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic != "" {
		kWriter = &kafka.Writer{
			Addr:     kafka.TCP(cfg.Kafka.Brokers...),
			Topic:    cfg.Kafka.Topic,
			Balancer: &kafka.LeastBytes{},
		}
		defer kWriter.Close()
		log.Infof("access logs go to kafka topic %q", cfg.Kafka.Topic)
	}

	blogAPI, err := api.New(cfg, sdb, notifier, kWriter)
	if err != nil {
		log.Fatal(err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		ticker := time.NewTicker(sessionSweepInterval)

		defer func() {
			ticker.Stop()
			log.Info("Session sweeper stopped")
			wg.Done()
		}()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := sdb.DeleteExpiredSessions(ctx, time.Now()); err != nil {
					log.Warnf("failed to delete expired sessions: %v", err)
				}
				cancel()
			}
		}
	}()

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: blogAPI.Router(),
	}

	go func() {
		log.Infof("serving on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
		log.Info("Stopped serving new connections")
	}()

	<-sigChan
	close(done)
	wg.Wait()

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP shutdown error: %v", err)
	}
	log.Info("Server stopped")
}

// bootstrapAdmin creates the blog owner on first run from
// BLUELOG_ADMIN_USERNAME and BLUELOG_ADMIN_PASSWORD. An existing admin
// is never touched.
func bootstrapAdmin(db storage.Storage) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := db.Admin(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrAdminNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	username := os.Getenv("BLUELOG_ADMIN_USERNAME")
	password := os.Getenv("BLUELOG_ADMIN_PASSWORD")
	if username == "" || password == "" {
		return fmt.Errorf("no admin account exists, set BLUELOG_ADMIN_USERNAME and BLUELOG_ADMIN_PASSWORD to create one")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	id, err := db.CreateAdmin(ctx, models.Admin{
		Username:     username,
		PasswordHash: hash,
		BlogTitle:    "Bluelog",
		BlogSubtitle: "Yet another blog",
		Name:         username,
		About:        "Anything about you.",
	})
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	log.Infof("created admin account %q (id %d)", username, id)
	return nil
}

// baseURL derives the absolute URL prefix used in notification mails.
func baseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
