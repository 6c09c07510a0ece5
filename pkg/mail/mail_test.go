package mail

import (
	"net/smtp"
	"os"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"bluelog/pkg/config"
	"bluelog/pkg/models"
)

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

type sentMail struct {
	addr string
	from string
	to   []string
	msg  []byte
}

// newTestNotifier swaps the SMTP call for a channel capture.
func newTestNotifier(conf config.Mail) (*Notifier, chan sentMail) {
	sent := make(chan sentMail, 1)
	n := New(conf, "http://blog.example.com/")
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent <- sentMail{addr: addr, from: from, to: to, msg: msg}
		return nil
	}

	return n, sent
}

func waitMail(t *testing.T, sent chan sentMail) sentMail {
	t.Helper()

	select {
	case m := <-sent:
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("no mail delivered")
		return sentMail{}
	}
}

func TestNotifier_NotifyNewComment(t *testing.T) {
	conf := config.Mail{
		Host:       "smtp.example.com",
		Port:       "587",
		Sender:     "blog@example.com",
		AdminEmail: "admin@example.com",
	}
	n, sent := newTestNotifier(conf)

	n.NotifyNewComment(models.Post{ID: 3, Title: "Hello World"})
	m := waitMail(t, sent)

	if m.addr != "smtp.example.com:587" {
		t.Errorf("want addr %q, got %q", "smtp.example.com:587", m.addr)
	}
	if len(m.to) != 1 || m.to[0] != "admin@example.com" {
		t.Errorf("want mail to the admin, got %v", m.to)
	}
	body := string(m.msg)
	if !strings.Contains(body, "Hello World") {
		t.Errorf("want the post title in the mail, got:\n%s", body)
	}
	if !strings.Contains(body, "http://blog.example.com/admin/comment/manage") {
		t.Errorf("want a moderation queue link, got:\n%s", body)
	}
}

func TestNotifier_NotifyReply(t *testing.T) {
	conf := config.Mail{
		Host:   "smtp.example.com",
		Port:   "587",
		Sender: "blog@example.com",
	}
	n, sent := newTestNotifier(conf)

	parent := models.Comment{ID: 7, Author: "Jane", Email: "jane@example.com", PostID: 3}
	n.NotifyReply(parent)
	m := waitMail(t, sent)

	if len(m.to) != 1 || m.to[0] != "jane@example.com" {
		t.Errorf("want mail to the parent author, got %v", m.to)
	}
	if !strings.Contains(string(m.msg), "http://blog.example.com/post/3") {
		t.Errorf("want a link to the thread, got:\n%s", m.msg)
	}
}

func TestNotifier_skipsWhenUnconfigured(t *testing.T) {
	n, sent := newTestNotifier(config.Mail{})

	n.NotifyNewComment(models.Post{Title: "post"})
	n.NotifyReply(models.Comment{Email: "jane@example.com"})

	select {
	case <-sent:
		t.Errorf("want no mail without SMTP configuration")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotifier_nilReceiver(t *testing.T) {
	// The handlers call the notifier unconditionally; a nil notifier
	// must be a no-op.
	var n *Notifier
	n.NotifyNewComment(models.Post{Title: "post"})
	n.NotifyReply(models.Comment{Email: "jane@example.com"})
}
