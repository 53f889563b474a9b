package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docfinder/internal/domain/action"
	"github.com/kailas-cloud/docfinder/internal/domain/reply"
	searchuc "github.com/kailas-cloud/docfinder/internal/usecase/search"
)

// --- Mocks ---

type fakeAPI struct {
	mu        sync.Mutex
	updates   chan tgbotapi.Update
	sent      []tgbotapi.Chattable
	callbacks []string
	sendErr   error
	stopped   bool
}

func newFakeAPI() *fakeAPI { return &fakeAPI{updates: make(chan tgbotapi.Update, 8)} }

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.callbacks = append(f.callbacks, cb.CallbackQueryID)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.updates }

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeAPI) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type mockConversation struct {
	mu       sync.Mutex
	handleFn func(ctx context.Context, ev searchuc.Event) ([]reply.Reply, error)
	events   []searchuc.Event
}

func (m *mockConversation) Handle(ctx context.Context, ev searchuc.Event) ([]reply.Reply, error) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	if m.handleFn != nil {
		return m.handleFn(ctx, ev)
	}
	return []reply.Reply{reply.WithOptions("Выберите специальность",
		reply.Opt("Терапевт", action.WithID(action.Specialty, 1)))}, nil
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: chatID},
			From: &tgbotapi.User{FirstName: "Иван", UserName: "ivan"},
			Text: text,
		},
	}
}

func callbackUpdate(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 2,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb-1",
			From:    &tgbotapi.User{UserName: "ivan"},
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
			Data:    data,
		},
	}
}

// --- Tests ---

func TestEventFromUpdate(t *testing.T) {
	ev, chatID, ok := eventFromUpdate(textUpdate(42, "/start"))
	if !ok || chatID != 42 {
		t.Fatalf("message not accepted: %v %d", ok, chatID)
	}
	if ev.SessionID != "tg:42" || ev.Text != "/start" || ev.UserName != "Иван" || ev.Channel != Channel {
		t.Errorf("unexpected event %+v", ev)
	}

	ev, _, ok = eventFromUpdate(callbackUpdate(42, "specialty:1"))
	if !ok || ev.Action != "specialty:1" || ev.UserName != "ivan" {
		t.Errorf("unexpected callback event %+v", ev)
	}

	if _, _, ok := eventFromUpdate(tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}}); ok {
		t.Error("message without text must be ignored")
	}
	if _, _, ok := eventFromUpdate(tgbotapi.Update{}); ok {
		t.Error("empty update must be ignored")
	}
}

func TestHandleUpdate_SendsReplies(t *testing.T) {
	api := newFakeAPI()
	conv := &mockConversation{}
	b := newBot(api, conv, 0, zap.NewNop())

	b.handleUpdate(context.Background(), callbackUpdate(7, "find_doctor"))

	if len(api.callbacks) != 1 || api.callbacks[0] != "cb-1" {
		t.Errorf("callback not answered: %v", api.callbacks)
	}
	if len(api.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(api.sent))
	}
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("unexpected chattable %T", api.sent[0])
	}
	if msg.ChatID != 7 || msg.Text != "Выберите специальность" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestHandleUpdate_SupersededIsSilent(t *testing.T) {
	api := newFakeAPI()
	conv := &mockConversation{handleFn: func(context.Context, searchuc.Event) ([]reply.Reply, error) {
		return nil, searchuc.ErrSuperseded
	}}
	newBot(api, conv, 0, zap.NewNop()).handleUpdate(context.Background(), textUpdate(7, "центр"))

	if len(api.sent) != 0 {
		t.Errorf("stale turn must not answer, sent %d", len(api.sent))
	}
}

func TestHandleUpdate_FailureMessage(t *testing.T) {
	api := newFakeAPI()
	conv := &mockConversation{handleFn: func(context.Context, searchuc.Event) ([]reply.Reply, error) {
		return nil, errors.New("storage down")
	}}
	newBot(api, conv, 0, zap.NewNop()).handleUpdate(context.Background(), textUpdate(7, "hi"))

	if len(api.sent) != 1 || api.sent[0].(tgbotapi.MessageConfig).Text != msgFailure {
		t.Errorf("expected failure message, got %+v", api.sent)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	api := newFakeAPI()
	conv := &mockConversation{}
	b := newBot(api, conv, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	api.updates <- textUpdate(1, "/start")
	api.updates <- textUpdate(2, "/start")

	deadline := time.Now().Add(2 * time.Second)
	for api.sentCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if api.sentCount() != 2 {
		t.Fatalf("expected 2 messages, got %d", api.sentCount())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	if !api.stopped {
		t.Error("polling was not stopped")
	}
}

func TestRun_PreemptsSlowTurn(t *testing.T) {
	api := newFakeAPI()
	started := make(chan struct{})
	conv := &mockConversation{handleFn: func(ctx context.Context, ev searchuc.Event) ([]reply.Reply, error) {
		if ev.Text == "slow" {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []reply.Reply{reply.Text(strings.ToUpper(ev.Text))}, nil
	}}
	b := newBot(api, conv, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	api.updates <- textUpdate(1, "slow")
	<-started
	api.updates <- textUpdate(1, "/start")

	deadline := time.Now().Add(2 * time.Second)
	for api.sentCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if api.sentCount() != 1 {
		t.Fatalf("/start blocked behind the slow turn")
	}
	cancel()
	<-done
}

func TestRun_KeepsChatOrder(t *testing.T) {
	api := newFakeAPI()
	conv := &mockConversation{handleFn: func(_ context.Context, ev searchuc.Event) ([]reply.Reply, error) {
		if ev.Action == "hospital:10" {
			time.Sleep(50 * time.Millisecond)
		}
		return []reply.Reply{reply.Text(ev.Action + ev.Text)}, nil
	}}
	b := newBot(api, conv, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	api.updates <- callbackUpdate(1, "hospital:10")
	api.updates <- callbackUpdate(1, "doctor:100")
	api.updates <- textUpdate(1, "Отличный врач, всем советую")

	deadline := time.Now().Add(2 * time.Second)
	for api.sentCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	api.mu.Lock()
	defer api.mu.Unlock()
	var got []string
	for _, c := range api.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			got = append(got, m.Text)
		}
	}
	want := []string{"hospital:10", "doctor:100", "Отличный врач, всем советую"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("replies out of order: %q", got)
	}
}

func TestRun_TopLevelDropsQueuedUpdates(t *testing.T) {
	api := newFakeAPI()
	started := make(chan struct{})
	conv := &mockConversation{handleFn: func(ctx context.Context, ev searchuc.Event) ([]reply.Reply, error) {
		if ev.Action == "hospital:10" {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []reply.Reply{reply.Text(ev.Action + ev.Text)}, nil
	}}
	b := newBot(api, conv, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	api.updates <- callbackUpdate(1, "hospital:10")
	<-started
	api.updates <- callbackUpdate(1, "doctor:100")
	api.updates <- callbackUpdate(1, "new_search")

	deadline := time.Now().Add(2 * time.Second)
	for api.sentCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	conv.mu.Lock()
	defer conv.mu.Unlock()
	for _, ev := range conv.events {
		if ev.Action == "doctor:100" {
			t.Error("queued update ran after a top-level action")
		}
	}
	if api.sentCount() != 1 {
		t.Errorf("expected only the new_search reply, got %d messages", api.sentCount())
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.callbacks) != 3 {
		t.Errorf("every button press must be answered, got %d", len(api.callbacks))
	}
}
