package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	notificationdomain "github.com/smallbiznis/meiwatch/internal/notification/domain"
)

//go:embed templates/*.html
var templates embed.FS

const ChannelName = "email"

// Channel mails persisted notifications to the entity contact.
type Channel struct {
	sender Sender
	tmpl   *template.Template
}

func NewChannel(sender Sender) (*Channel, error) {
	if sender == nil {
		sender = NoOpSender{}
	}
	tmpl, err := template.ParseFS(templates, "templates/notification.html")
	if err != nil {
		return nil, fmt.Errorf("parse email template: %w", err)
	}
	return &Channel{sender: sender, tmpl: tmpl}, nil
}

func (c *Channel) Name() string { return ChannelName }

func (c *Channel) Deliver(ctx context.Context, n notificationdomain.Notification, recipient string) error {
	body, err := c.Render(n)
	if err != nil {
		return err
	}
	return c.sender.Send(ctx, []string{recipient}, "[MEIWatch] "+n.Title, body)
}

func (c *Channel) Render(n notificationdomain.Notification) (string, error) {
	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, map[string]any{
		"Title":    n.Title,
		"Body":     n.Body,
		"Severity": string(n.Severity),
		"Kind":     n.Kind,
	}); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}
