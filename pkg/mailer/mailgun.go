package mailer

import (
	"context"
	"fmt"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"
)

// Mailgun wraps Mailgun client configuration.
type Mailgun struct {
	Domain string
	APIKey string
	Sender string
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{Domain: domain, APIKey: apiKey, Sender: sender}
}

// Send sends a plain-text email via Mailgun.
func (m *Mailgun) Send(ctx context.Context, to, subject, text string) error {
	client := mg.NewMailgun(m.Domain, m.APIKey)
	msg := client.NewMessage(m.Sender, subject, text, to)
	c, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, _, err := client.Send(c, msg)
	return err
}

// RenderLoginNotification builds the subject and body for a login
// notification job.
func RenderLoginNotification(job EmailJob) (subject, text string) {
	name := fmt.Sprintf("%v", job.Data["FullName"])
	ip := fmt.Sprintf("%v", job.Data["IP"])
	at := fmt.Sprintf("%v", job.Data["LoginAt"])
	subject = "New login to your VidTube account"
	text = fmt.Sprintf("Hi %s,\n\nYour account was just signed in from %s at %s.\nIf this was not you, change your password immediately.\n", name, ip, at)
	return subject, text
}
