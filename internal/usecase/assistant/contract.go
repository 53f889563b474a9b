package assistant

import (
	"context"

	"github.com/kailas-cloud/docfinder/internal/domain/history"
)

// Chatter sends one chat completion to the language model.
type Chatter interface {
	Chat(ctx context.Context, purpose, system string, turns []history.Turn, user string) (string, error)
}
