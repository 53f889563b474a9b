package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docfinder/internal/domain"
	"github.com/kailas-cloud/docfinder/internal/domain/reply"
	healthuc "github.com/kailas-cloud/docfinder/internal/usecase/health"
	searchuc "github.com/kailas-cloud/docfinder/internal/usecase/search"
)

// --- Mocks ---

type mockConversation struct {
	handleFn func(ctx context.Context, ev searchuc.Event) ([]reply.Reply, error)
	resetFn  func(ctx context.Context, sessionID string) error
	events   []searchuc.Event
}

func (m *mockConversation) Handle(ctx context.Context, ev searchuc.Event) ([]reply.Reply, error) {
	m.events = append(m.events, ev)
	if m.handleFn != nil {
		return m.handleFn(ctx, ev)
	}
	return []reply.Reply{reply.Text("ok")}, nil
}

func (m *mockConversation) Reset(ctx context.Context, sessionID string) error {
	if m.resetFn != nil {
		return m.resetFn(ctx, sessionID)
	}
	return nil
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(context.Context) error { return m.err }

const testSession = "6f1c2c4e-3a5b-4d8e-9f10-1a2b3c4d5e6f"

func newTestRouter(conv Conversation, sessionsErr error) http.Handler {
	health := healthuc.New(&mockPinger{err: sessionsErr}, &mockPinger{}, nil)
	return NewRouter(NewServer(conv, health, zap.NewNop()), nil, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- Tests ---

func TestCreateSession(t *testing.T) {
	conv := &mockConversation{}
	rr := do(t, newTestRouter(conv, nil), http.MethodPost, "/v1/sessions", "")

	if rr.Code != http.StatusCreated {
		t.Fatalf("got %d: %s", rr.Code, rr.Body)
	}
	var resp SessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID == "" || len(resp.Replies) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if rr.Header().Get("Location") != "/v1/sessions/"+resp.SessionID {
		t.Errorf("unexpected location %q", rr.Header().Get("Location"))
	}
	ev := conv.events[0]
	if ev.Action != "start" || ev.Channel != Channel || ev.SessionID != "web:"+resp.SessionID {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestSendMessage(t *testing.T) {
	conv := &mockConversation{}
	rr := do(t, newTestRouter(conv, nil), http.MethodPost,
		"/v1/sessions/"+testSession+"/messages", `{"text":"болит зуб","user_name":"Иван"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body)
	}
	var resp TurnResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Replies) != 1 || resp.Replies[0].Text != "ok" {
		t.Errorf("unexpected replies %+v", resp.Replies)
	}
	ev := conv.events[0]
	if ev.Text != "болит зуб" || ev.UserName != "Иван" || ev.Action != "" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestSendMessage_LongCyrillicReview(t *testing.T) {
	// 2000 characters is the longest accepted review; Cyrillic takes two
	// bytes per character raw and six when \u-escaped.
	text := strings.Repeat("Хороший врач №1 ", 125)
	if n := utf8.RuneCountInString(text); n != 2000 {
		t.Fatalf("fixture has %d characters", n)
	}
	var escaped strings.Builder
	for _, r := range text {
		fmt.Fprintf(&escaped, "\\u%04x", r)
	}

	tests := []struct {
		name string
		body string
	}{
		{"raw utf-8", fmt.Sprintf(`{"text":%q}`, text)},
		{"escaped", `{"text":"` + escaped.String() + `"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conv := &mockConversation{}
			rr := do(t, newTestRouter(conv, nil), http.MethodPost,
				"/v1/sessions/"+testSession+"/messages", tc.body)
			if rr.Code != http.StatusOK {
				t.Fatalf("got %d: %s", rr.Code, rr.Body)
			}
			if len(conv.events) != 1 || conv.events[0].Text != text {
				t.Fatalf("text not delivered intact")
			}
		})
	}
}

func TestSendAction(t *testing.T) {
	conv := &mockConversation{}
	rr := do(t, newTestRouter(conv, nil), http.MethodPost,
		"/v1/sessions/"+testSession+"/actions", `{"action":"specialty:2"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body)
	}
	if conv.events[0].Action != "specialty:2" {
		t.Errorf("unexpected event %+v", conv.events[0])
	}
}

func TestSend_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"not a uuid", "/v1/sessions/42/messages", `{"text":"hi"}`},
		{"broken json", "/v1/sessions/" + testSession + "/messages", `{"text":`},
		{"empty text", "/v1/sessions/" + testSession + "/messages", `{"text":""}`},
		{"long text", "/v1/sessions/" + testSession + "/messages", fmt.Sprintf(`{"text":%q}`, strings.Repeat("a", 5000))},
		{"long cyrillic text", "/v1/sessions/" + testSession + "/messages", fmt.Sprintf(`{"text":%q}`, strings.Repeat("я", 4097))},
		{"empty action", "/v1/sessions/" + testSession + "/actions", `{}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conv := &mockConversation{}
			rr := do(t, newTestRouter(conv, nil), http.MethodPost, tc.path, tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("got %d, want 400", rr.Code)
			}
			if len(conv.events) != 0 {
				t.Error("conversation must not be called")
			}
		})
	}
}

func TestSend_DomainErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"validation", fmt.Errorf("%w: unknown action", domain.ErrValidation), http.StatusBadRequest, codeValidationFailed},
		{"superseded", searchuc.ErrSuperseded, http.StatusConflict, codeSuperseded},
		{"storage", fmt.Errorf("%w: redis down", domain.ErrStorage), http.StatusServiceUnavailable, codeUnavailable},
		{"deadline", fmt.Errorf("wait for session: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, codeTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, codeInternalError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conv := &mockConversation{handleFn: func(context.Context, searchuc.Event) ([]reply.Reply, error) {
				return nil, tc.err
			}}
			rr := do(t, newTestRouter(conv, nil), http.MethodPost,
				"/v1/sessions/"+testSession+"/actions", `{"action":"bogus"}`)
			if rr.Code != tc.wantCode {
				t.Fatalf("got %d, want %d", rr.Code, tc.wantCode)
			}
			resp := decodeError(t, rr)
			if resp.Code != tc.wantBody {
				t.Errorf("got code %q, want %q", resp.Code, tc.wantBody)
			}
			if tc.name == "storage" && strings.Contains(resp.Message, "redis") {
				t.Errorf("backend detail leaked: %q", resp.Message)
			}
		})
	}
}

func TestDeleteSession(t *testing.T) {
	var got string
	conv := &mockConversation{resetFn: func(_ context.Context, id string) error {
		got = id
		return nil
	}}
	rr := do(t, newTestRouter(conv, nil), http.MethodDelete, "/v1/sessions/"+testSession, "")

	if rr.Code != http.StatusNoContent {
		t.Fatalf("got %d", rr.Code)
	}
	if got != "web:"+testSession {
		t.Errorf("reset %q", got)
	}
}

func TestHealthCheck(t *testing.T) {
	rr := do(t, newTestRouter(&mockConversation{}, nil), http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Checks["catalog"] != "ok" || resp.Version == "" {
		t.Errorf("unexpected health %+v", resp)
	}

	rr = do(t, newTestRouter(&mockConversation{}, errors.New("down")), http.MethodGet, "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without session store, got %d", rr.Code)
	}
}

func TestRouter_RequestIDAndNotFound(t *testing.T) {
	rr := do(t, newTestRouter(&mockConversation{}, nil), http.MethodGet, "/v1/unknown", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	conv := &mockConversation{handleFn: func(context.Context, searchuc.Event) ([]reply.Reply, error) {
		panic("boom")
	}}
	rr := do(t, newTestRouter(conv, nil), http.MethodPost,
		"/v1/sessions/"+testSession+"/messages", `{"text":"hi"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("got %d", rr.Code)
	}
	if decodeError(t, rr).Code != codeInternalError {
		t.Error("expected JSON internal error")
	}
}
