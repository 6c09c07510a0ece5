// Package mail sends the blog's notification emails. Deliveries are fire
// and forget: failures are logged and never surface to the request that
// triggered them.
package mail

import (
	"fmt"
	"net/smtp"
	"strings"

	log "github.com/sirupsen/logrus"

	"bluelog/pkg/config"
	"bluelog/pkg/models"
)

// sendFunc matches smtp.SendMail and is swapped out in tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Notifier struct {
	conf config.Mail
	// BaseURL prefixes the post links embedded in notifications.
	baseURL string

	send sendFunc
}

func New(conf config.Mail, baseURL string) *Notifier {
	return &Notifier{
		conf:    conf,
		baseURL: strings.TrimRight(baseURL, "/"),
		send:    smtp.SendMail,
	}
}

func (n *Notifier) enabled() bool {
	return n != nil && n.conf.Host != ""
}

// NotifyNewComment tells the admin that an anonymous comment is waiting
// for review on the given post.
func (n *Notifier) NotifyNewComment(post models.Post) {
	if !n.enabled() || n.conf.AdminEmail == "" {
		return
	}

	subject := fmt.Sprintf("New comment on %q", post.Title)
	body := fmt.Sprintf(
		"A new comment is waiting for review.\n\nPost: %s\nModeration queue: %s/admin/comment/manage?filter=unread\n",
		post.Title, n.baseURL)

	go n.deliver(n.conf.AdminEmail, subject, body)
}

// NotifyReply tells the author of parent that someone replied to their
// comment. Comments without an email address are skipped.
func (n *Notifier) NotifyReply(parent models.Comment) {
	if !n.enabled() || parent.Email == "" {
		return
	}

	subject := "New reply to your comment"
	body := fmt.Sprintf(
		"Hi %s,\n\nsomeone replied to your comment.\n\nView the thread: %s/post/%d\n",
		parent.Author, n.baseURL, parent.PostID)

	go n.deliver(parent.Email, subject, body)
}

func (n *Notifier) deliver(to, subject, body string) {
	msg := strings.Join([]string{
		"From: " + n.conf.Sender,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	var a smtp.Auth
	if n.conf.Username != "" {
		a = smtp.PlainAuth("", n.conf.Username, n.conf.Password, n.conf.Host)
	}

	addr := n.conf.Host + ":" + n.conf.Port
	if err := n.send(addr, a, n.conf.Sender, []string{to}, []byte(msg)); err != nil {
		log.Errorf("[mail] failed to send %q to %s: %v", subject, to, err)
		return
	}
	log.Debugf("[mail] sent %q to %s", subject, to)
}
