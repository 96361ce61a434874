package delivery

import (
	"context"
	"fmt"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// captionLimit is Telegram's maximum document caption length in characters.
const captionLimit = 1024

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type botAPISender struct{ api *tgbotapi.BotAPI }

func (s botAPISender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return s.api.Send(c)
}

// TelegramTransport posts the digest attachment as a document into one chat.
type TelegramTransport struct {
	s      sender
	chatID int64
}

func NewTelegram(botToken string, chatID int64) (*TelegramTransport, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot api: %w", err)
	}
	return &TelegramTransport{s: botAPISender{api: api}, chatID: chatID}, nil
}

func (t *TelegramTransport) NeedsAddresses() bool { return false }

func (t *TelegramTransport) Send(ctx context.Context, msg Message) error {
	caption := truncateRunes(msg.Subject+"\n\n"+msg.Text, captionLimit)
	var chattables []tgbotapi.Chattable
	if len(msg.Attachments) == 0 {
		chattables = append(chattables, tgbotapi.NewMessage(t.chatID, caption))
	}
	for _, a := range msg.Attachments {
		doc := tgbotapi.NewDocument(t.chatID, tgbotapi.FileBytes{Name: a.Filename, Bytes: a.Data})
		doc.Caption = caption
		chattables = append(chattables, doc)
	}

	done := make(chan error, 1)
	go func() {
		for _, c := range chattables {
			if _, err := t.s.Send(c); err != nil {
				done <- fmt.Errorf("telegram send: %w", err)
				return
			}
		}
		done <- nil
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("telegram send: %w", ctx.Err())
	}
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}
