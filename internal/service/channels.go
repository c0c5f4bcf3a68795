package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/coldchain/coldchain-monitor/internal/config"
	"github.com/coldchain/coldchain-monitor/internal/notify"
)

// Channels builds the notification registry from configuration. Channels
// without credentials are still registered and report "not configured".
func Channels(ctx context.Context) *notify.Registry {
	timeout := config.NotifyTimeout()

	smtpCfg := config.SMTPSettings()
	tg := config.TelegramSettings()
	pd := config.PagerDutySettings()
	tw := config.TwilioSettings()

	sns := notify.NewSNSWithClient(nil, "")
	if arn := config.SNSTopicArn(); arn != "" && config.UseCloudServices() {
		c, err := notify.NewSNS(ctx, config.AWSRegion(), arn)
		if err != nil {
			log.Warn().Err(err).Msg("sns channel disabled")
		} else {
			sns = c
		}
	}

	reg := notify.NewRegistry(
		notify.NewEmail(notify.EmailConfig{
			Host:     smtpCfg.Host,
			Port:     smtpCfg.Port,
			Username: smtpCfg.Username,
			Password: smtpCfg.Password,
			From:     smtpCfg.From,
		}, nil),
		notify.NewTelegram(notify.TelegramConfig{APIURL: tg.APIURL, BotToken: tg.BotToken, ChatID: tg.ChatID, Timeout: timeout}),
		notify.NewWebhook(notify.WebhookConfig{URL: config.WebhookURL(), Timeout: timeout}),
		notify.NewPagerDuty(notify.PagerDutyConfig{EventsURL: pd.EventsURL, RoutingKey: pd.RoutingKey, Timeout: timeout}),
		notify.NewVoice(notify.VoiceConfig{
			APIURL:     tw.APIURL,
			AccountSID: tw.AccountSID,
			AuthToken:  tw.AuthToken,
			FromNumber: tw.FromNumber,
			Timeout:    timeout,
		}),
		sns,
	)
	log.Debug().Strs("channels", reg.Names()).Msg("notification channels registered")
	return reg
}
