package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kailas-cloud/docfinder/internal/domain/reply"
)

// Bot API limits, in characters.
const (
	maxMessageLength = 4096
	maxCaptionLength = 1024
)

// render turns a reply into the Bot API calls that display it. Options become
// one inline button per row and are attached to the last call.
func render(chatID int64, r reply.Reply) []tgbotapi.Chattable {
	markup := keyboard(r.Options)

	if a := r.Attachment; a != nil && strings.HasPrefix(a.ContentType, "image/") {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: a.Name, Bytes: a.Data})
		var out []tgbotapi.Chattable
		if len([]rune(r.Text)) <= maxCaptionLength {
			photo.Caption = r.Text
		} else {
			out = texts(chatID, r.Text, nil)
		}
		if markup != nil {
			photo.ReplyMarkup = *markup
		}
		return append(out, photo)
	}
	return texts(chatID, r.Text, markup)
}

func texts(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) []tgbotapi.Chattable {
	chunks := split(text, maxMessageLength)
	out := make([]tgbotapi.Chattable, 0, len(chunks))
	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.DisableWebPagePreview = true
		if i == len(chunks)-1 && markup != nil {
			msg.ReplyMarkup = *markup
		}
		out = append(out, msg)
	}
	return out
}

func keyboard(opts []reply.Option) *tgbotapi.InlineKeyboardMarkup {
	if len(opts) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(opts))
	for _, o := range opts {
		var btn tgbotapi.InlineKeyboardButton
		if o.URL != "" {
			btn = tgbotapi.NewInlineKeyboardButtonURL(o.Label, o.URL)
		} else {
			btn = tgbotapi.NewInlineKeyboardButtonData(o.Label, o.Action)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// split cuts text into chunks of at most limit runes, preferring line breaks.
func split(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var out []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
