package email

import (
	"github.com/smallbiznis/meiwatch/internal/config"
	notificationdomain "github.com/smallbiznis/meiwatch/internal/notification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
	fx.Provide(
		fx.Annotate(
			provideChannel,
			fx.ResultTags(`group:"notification_channels"`),
		),
	),
)

// NewFromConfig returns the SMTP sender, or a no-op one when SMTP is off.
func NewFromConfig(cfg config.Config, log *zap.Logger) Sender {
	if !cfg.Email.Enabled {
		log.Info("email.disabled")
		return NoOpSender{}
	}
	return NewSMTP(Config{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.SMTPFrom,
	})
}

func provideChannel(sender Sender) (notificationdomain.Channel, error) {
	return NewChannel(sender)
}
