// Package telegram runs the assistant as a Telegram bot over long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/docfinder/internal/domain/reply"
	"github.com/kailas-cloud/docfinder/internal/logger"
	searchuc "github.com/kailas-cloud/docfinder/internal/usecase/search"
)

// Channel tags events coming from Telegram.
const Channel = "telegram"

const (
	defaultPollTimeout = 60 * time.Second
	// laneDepth bounds updates waiting behind a chat's running turn.
	laneDepth = 16
	// laneIdle is how long a chat worker outlives its last update.
	laneIdle   = 5 * time.Minute
	msgFailure = "Произошла ошибка. Попробуйте ещё раз или начните заново: /start"
)

// API is the subset of *tgbotapi.BotAPI the channel uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Conversation runs conversation turns.
type Conversation interface {
	Handle(ctx context.Context, ev searchuc.Event) ([]reply.Reply, error)
}

// Config holds bot settings.
type Config struct {
	Token       string
	PollTimeout time.Duration
	Debug       bool
}

// Bot delivers Telegram updates to the conversation and renders the replies.
type Bot struct {
	api          API
	conversation Conversation
	pollTimeout  time.Duration
	logger       *zap.Logger

	mu    sync.Mutex
	lanes map[int64]*chatLane
}

// New connects to the Bot API and verifies the token.
func New(cfg Config, conversation Conversation, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	api.Debug = cfg.Debug
	log.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	return newBot(api, conversation, cfg.PollTimeout, log), nil
}

func newBot(api API, conversation Conversation, pollTimeout time.Duration, log *zap.Logger) *Bot {
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	return &Bot{
		api:          api,
		conversation: conversation,
		pollTimeout:  pollTimeout,
		logger:       log,
		lanes:        make(map[int64]*chatLane),
	}
}

// Run polls updates until ctx is cancelled. Each chat has its own worker that
// handles the chat's updates in arrival order; a top-level action cancels the
// chat's running turn and drops whatever is still queued behind it.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout.Seconds())
	updates := b.api.GetUpdatesChan(u)

	g := new(errgroup.Group)
	defer func() { _ = g.Wait() }()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.logger.Info("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, g, update)
		}
	}
}

// chatLane serializes one chat's turns.
type chatLane struct {
	queue chan queuedUpdate

	mu     sync.Mutex
	epoch  uint64
	cancel context.CancelFunc
}

type queuedUpdate struct {
	update tgbotapi.Update
	epoch  uint64
}

// supersede invalidates queued updates and cancels the running turn.
func (l *chatLane) supersede() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch++
	if l.cancel != nil {
		l.cancel()
	}
}

// run calls fn unless q was superseded while it waited.
func (l *chatLane) run(ctx context.Context, q queuedUpdate, fn func(context.Context)) bool {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	if q.epoch != l.epoch {
		l.mu.Unlock()
		return false
	}
	l.cancel = cancel
	l.mu.Unlock()

	fn(ctx)

	l.mu.Lock()
	l.cancel = nil
	l.mu.Unlock()
	return true
}

func (b *Bot) dispatch(ctx context.Context, g *errgroup.Group, update tgbotapi.Update) {
	ev, chatID, ok := eventFromUpdate(update)
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	lane, ok := b.lanes[chatID]
	if !ok {
		lane = &chatLane{queue: make(chan queuedUpdate, laneDepth)}
		b.lanes[chatID] = lane
		g.Go(func() error {
			b.drain(ctx, chatID, lane)
			return nil
		})
	}
	if ev.TopLevel() {
		lane.supersede()
	}

	lane.mu.Lock()
	q := queuedUpdate{update: update, epoch: lane.epoch}
	lane.mu.Unlock()
	select {
	case lane.queue <- q:
	default:
		b.logger.Warn("chat queue full, dropping update",
			zap.Int64("chat_id", chatID), zap.Int("update_id", update.UpdateID))
		b.answerCallback(update)
	}
}

// drain handles a chat's updates one at a time and retires the lane once it
// has been idle for laneIdle.
func (b *Bot) drain(ctx context.Context, chatID int64, lane *chatLane) {
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-lane.queue:
			handled := lane.run(ctx, q, func(ctx context.Context) { b.handleUpdate(ctx, q.update) })
			if !handled {
				b.answerCallback(q.update)
			}
		case <-time.After(laneIdle):
			b.mu.Lock()
			if len(lane.queue) == 0 {
				delete(b.lanes, chatID)
				b.mu.Unlock()
				return
			}
			b.mu.Unlock()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	ev, chatID, ok := eventFromUpdate(update)
	if !ok {
		return
	}
	ctx = logger.ContextWithLogger(ctx, b.logger.With(zap.Int("update_id", update.UpdateID)))
	log := logger.FromContext(ctx)

	b.answerCallback(update)

	replies, err := b.conversation.Handle(ctx, ev)
	switch {
	case ctx.Err() != nil:
		// cancelled by a newer top-level action or by shutdown
		return
	case errors.Is(err, searchuc.ErrSuperseded), errors.Is(err, context.Canceled):
		return
	case err != nil:
		log.Error("turn failed", zap.Error(err))
		replies = []reply.Reply{reply.Text(msgFailure)}
	}

	for _, r := range replies {
		for _, c := range render(chatID, r) {
			if _, err := b.api.Send(c); err != nil {
				log.Error("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
				return
			}
		}
	}
}

// answerCallback stops the client's button spinner.
func (b *Bot) answerCallback(update tgbotapi.Update) {
	cb := update.CallbackQuery
	if cb == nil {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("answer callback failed", zap.Int("update_id", update.UpdateID), zap.Error(err))
	}
}

// eventFromUpdate maps a message or a button press onto a conversation event.
func eventFromUpdate(update tgbotapi.Update) (searchuc.Event, int64, bool) {
	switch {
	case update.Message != nil && update.Message.Chat != nil && update.Message.Text != "":
		m := update.Message
		return searchuc.Event{
			Channel:   Channel,
			SessionID: sessionKey(m.Chat.ID),
			UserName:  userName(m.From),
			Text:      m.Text,
		}, m.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		cb := update.CallbackQuery
		return searchuc.Event{
			Channel:   Channel,
			SessionID: sessionKey(cb.Message.Chat.ID),
			UserName:  userName(cb.From),
			Action:    cb.Data,
		}, cb.Message.Chat.ID, true
	}
	return searchuc.Event{}, 0, false
}

func sessionKey(chatID int64) string { return "tg:" + strconv.FormatInt(chatID, 10) }

func userName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.UserName
}
