package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/leadcapture/internal/config"
	"github.com/wolfman30/leadcapture/internal/events"
	"github.com/wolfman30/leadcapture/internal/leads"
	"github.com/wolfman30/leadcapture/internal/notify"
	"github.com/wolfman30/leadcapture/pkg/logging"
)

// BuildEmailSender returns the sender named by EMAIL_PROVIDER, falling back to
// the logging stub when the provider is not usable.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			return s
		}
		logger.Warn("SENDGRID_API_KEY missing, lead emails are logged only")
	case "ses":
		if awsCfg != nil {
			return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
				FromEmail: cfg.EmailFromAddress,
				FromName:  cfg.EmailFromName,
			}, logger)
		}
		logger.Warn("AWS config unavailable, lead emails are logged only")
	}
	return notify.NewStubEmailSender(logger)
}

// BuildListeners wires the post-persistence hooks in the order they run.
func BuildListeners(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) []leads.Listener {
	var listeners []leads.Listener
	if cfg.LeadNotifyEmail != "" {
		listeners = append(listeners, notify.NewLeadNotifier(BuildEmailSender(cfg, awsCfg, logger), cfg.LeadNotifyEmail, logger))
	}
	if cfg.LeadEventsQueueURL != "" {
		if awsCfg == nil {
			logger.Warn("LEAD_EVENTS_QUEUE_URL set without AWS config, lead events disabled")
		} else {
			listeners = append(listeners, events.NewSQSPublisher(sqs.NewFromConfig(*awsCfg), cfg.LeadEventsQueueURL, logger))
		}
	}
	return listeners
}
