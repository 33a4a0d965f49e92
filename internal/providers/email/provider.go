package email

import "context"

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

type NoOpSender struct{}

func (NoOpSender) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}
