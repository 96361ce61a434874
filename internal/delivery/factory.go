package delivery

import (
	"context"
	"fmt"
	"strings"

	"portfolio-chatter/internal/config"
)

// FromConfig builds the configured transport. Missing settings yield an error
// wrapping ErrNotConfigured that names the absent variables.
func FromConfig(ctx context.Context, cfg *config.Config) (Transport, error) {
	switch cfg.Transport() {
	case config.TransportGmail:
		var missing []string
		if strings.TrimSpace(cfg.GmailClientID) == "" {
			missing = append(missing, "GMAIL_CLIENT_ID")
		}
		if strings.TrimSpace(cfg.GmailClientSecret) == "" {
			missing = append(missing, "GMAIL_CLIENT_SECRET")
		}
		if strings.TrimSpace(cfg.GmailRefreshToken) == "" {
			missing = append(missing, "GMAIL_REFRESH_TOKEN")
		}
		if len(missing) > 0 {
			return nil, notConfigured("Gmail", missing)
		}
		return NewGmail(ctx, GmailConfig{
			ClientID:     strings.TrimSpace(cfg.GmailClientID),
			ClientSecret: strings.TrimSpace(cfg.GmailClientSecret),
			RefreshToken: strings.TrimSpace(cfg.GmailRefreshToken),
		})
	case config.TransportTelegram:
		var missing []string
		if strings.TrimSpace(cfg.TelegramBotToken) == "" {
			missing = append(missing, "TELEGRAM_BOT_TOKEN")
		}
		if cfg.TelegramDigestChatID == 0 {
			missing = append(missing, "TELEGRAM_DIGEST_CHAT_ID")
		}
		if len(missing) > 0 {
			return nil, notConfigured("Telegram", missing)
		}
		return NewTelegram(strings.TrimSpace(cfg.TelegramBotToken), cfg.TelegramDigestChatID)
	default:
		s, ok := cfg.SMTPSettings()
		if !ok {
			return nil, notConfigured("SMTP", []string{"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS"})
		}
		return NewSMTP(SMTPConfig{
			Host:    s.Host,
			Port:    s.Port,
			Secure:  s.Secure,
			User:    s.User,
			Pass:    s.Pass,
			Timeout: cfg.SendTimeout(),
		}), nil
	}
}

func notConfigured(name string, keys []string) error {
	return fmt.Errorf("%w: %s (%s missing)", ErrNotConfigured, name, strings.Join(keys, "/"))
}
