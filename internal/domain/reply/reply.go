// Package reply describes what a conversation channel renders for one turn.
// It carries no platform markup.
package reply

import (
	"github.com/kailas-cloud/docfinder/internal/domain/action"
)

// DefaultPageSize is the number of entity options shown per page.
const DefaultPageSize = 10

// Option is one selectable choice. URL options open a link instead of sending an action.
type Option struct {
	Label  string `json:"label"`
	Action string `json:"action,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Attachment is an inline file, e.g. a map image.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Reply is the rendering instruction for one message.
type Reply struct {
	Text       string      `json:"text"`
	Options    []Option    `json:"options,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Text returns a reply without options.
func Text(text string) Reply { return Reply{Text: text} }

// WithOptions returns a reply with options.
func WithOptions(text string, opts ...Option) Reply { return Reply{Text: text, Options: opts} }

// Opt builds an action option.
func Opt(label string, a action.Action) Option {
	return Option{Label: label, Action: a.String()}
}

// Link builds a URL option.
func Link(label, url string) Option { return Option{Label: label, URL: url} }

// Navigation labels.
const (
	PrevLabel = "◀️ Назад"
	NextLabel = "Вперёд ▶️"
)

// Paginate returns the options of one page followed by prev/next controls.
// page is zero-based and clamped to the valid range.
func Paginate(items []Option, page, pageSize int, list string) []Option {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if len(items) <= pageSize {
		return append([]Option(nil), items...)
	}
	pages := (len(items) + pageSize - 1) / pageSize
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}

	start := page * pageSize
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	out := append([]Option(nil), items[start:end]...)
	if page > 0 {
		out = append(out, Opt(PrevLabel, action.PageOf(list, page-1)))
	}
	if page < pages-1 {
		out = append(out, Opt(NextLabel, action.PageOf(list, page+1)))
	}
	return out
}
