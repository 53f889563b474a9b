// Package search drives one conversation turn: it interprets the user's
// event against the stored session, queries the catalog and the oracle,
// and returns what the channel should render.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docfinder/internal/domain"
	"github.com/kailas-cloud/docfinder/internal/domain/action"
	"github.com/kailas-cloud/docfinder/internal/domain/reply"
	"github.com/kailas-cloud/docfinder/internal/domain/session"
	"github.com/kailas-cloud/docfinder/internal/logger"
	"github.com/kailas-cloud/docfinder/internal/metrics"
)

// ErrSuperseded is returned for a turn overtaken by a newer top-level action.
var ErrSuperseded = errors.New("turn superseded")

const (
	defaultFetchLimit   = 100
	defaultReviewsShown = 10
)

// Config holds orchestrator policy.
type Config struct {
	City         string
	CityTokens   []string
	FetchLimit   int
	PageSize     int
	ReviewsShown int
	HistoryTurns int
	// TrustUnvalidatedMatches shows oracle picks that failed the city check
	// instead of falling back to the full list.
	TrustUnvalidatedMatches bool
}

// Event is one user input delivered by a channel.
type Event struct {
	Channel   string
	SessionID string
	UserName  string
	// Text is free text or a command such as /start.
	Text string
	// Action is an encoded option action; it takes precedence over Text.
	Action string
}

// TopLevel reports whether the event abandons the current flow and so
// supersedes a turn in flight. Malformed actions are not top-level.
func (ev Event) TopLevel() bool {
	act, err := eventAction(ev)
	return err == nil && act != nil && act.TopLevel()
}

// Service is the search orchestrator.
type Service struct {
	catalog  Catalog
	oracle   Oracle
	sessions SessionStore
	geocoder Geocoder
	maps     MapRenderer
	cfg      Config
	gate     *gate
}

// New creates the orchestrator. geocoder and maps may be nil.
func New(cat Catalog, oracle Oracle, sessions SessionStore, geocoder Geocoder, maps MapRenderer, cfg Config) *Service {
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = defaultFetchLimit
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = reply.DefaultPageSize
	}
	if cfg.ReviewsShown <= 0 {
		cfg.ReviewsShown = defaultReviewsShown
	}
	return &Service{
		catalog:  cat,
		oracle:   oracle,
		sessions: sessions,
		geocoder: geocoder,
		maps:     maps,
		cfg:      cfg,
		gate:     newGate(),
	}
}

// Handle processes one event. Turns of the same session run one at a time;
// a top-level action cancels and discards the turn in flight.
func (s *Service) Handle(ctx context.Context, ev Event) ([]reply.Reply, error) {
	if ev.SessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrValidation)
	}

	act, err := eventAction(ev)
	if err != nil {
		return nil, err
	}
	event := "text"
	if act != nil {
		event = string(act.Kind)
	}

	start := time.Now()
	ctx = logger.With(ctx, zap.String("session_id", ev.SessionID), zap.String("channel", ev.Channel))
	log := logger.FromContext(ctx)

	t, err := s.gate.enter(ctx, ev.SessionID, act != nil && act.TopLevel())
	if err != nil {
		return nil, fmt.Errorf("wait for session: %w", err)
	}
	defer t.leave()

	replies, before, after, err := s.turn(t, ev, act)

	result := "ok"
	switch {
	case errors.Is(err, ErrSuperseded):
		result = "stale"
	case err != nil:
		result = "error"
	}
	latency := time.Since(start)
	metrics.TurnsTotal.WithLabelValues(ev.Channel, event, result).Inc()
	metrics.TurnDuration.WithLabelValues(ev.Channel, event).Observe(latency.Seconds())

	fields := []zap.Field{
		zap.String("event", event),
		zap.String("state_before", string(before)),
		zap.String("state_after", string(after)),
		zap.String("result", result),
		zap.Int("replies", len(replies)),
		zap.Duration("latency", latency),
	}
	switch {
	case errors.Is(err, ErrSuperseded):
		log.Info("turn superseded", fields...)
		return nil, err
	case err != nil:
		log.Error("turn failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	log.Info("turn", fields...)
	return replies, nil
}

// Reset drops the stored session.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	t, err := s.gate.enter(ctx, sessionID, true)
	if err != nil {
		return fmt.Errorf("wait for session: %w", err)
	}
	defer t.leave()
	return s.sessions.Delete(t.ctx, sessionID)
}

func (s *Service) turn(t *turn, ev Event, act *action.Action) ([]reply.Reply, session.State, session.State, error) {
	sess, err := s.sessions.Load(t.ctx, ev.SessionID)
	if err != nil {
		return nil, "", "", err
	}
	before := sess.State

	replies := s.dispatch(t.ctx, sess, ev, act)

	if !t.current() {
		return nil, before, sess.State, ErrSuperseded
	}
	if err := s.sessions.Save(t.ctx, sess); err != nil {
		return nil, before, sess.State, err
	}
	return replies, before, sess.State, nil
}

// eventAction decodes the event's action, mapping slash commands onto actions.
// A nil action means free text.
func eventAction(ev Event) (*action.Action, error) {
	if ev.Action != "" {
		a, err := action.Parse(ev.Action)
		if err != nil {
			return nil, err
		}
		return &a, nil
	}
	cmd, _, _ := strings.Cut(strings.TrimSpace(ev.Text), " ")
	// Telegram appends the bot name in groups: /start@docfinder_bot
	cmd, _, _ = strings.Cut(cmd, "@")
	var kind action.Kind
	switch cmd {
	case "/start":
		kind = action.Start
	case "/help":
		kind = action.Help
	case "/cancel":
		kind = action.Cancel
	case "/search":
		kind = action.FindDoctor
	case "/ai":
		kind = action.AISearch
	default:
		return nil, nil
	}
	a := action.Of(kind)
	return &a, nil
}

func (s *Service) dispatch(ctx context.Context, sess *session.Session, ev Event, act *action.Action) []reply.Reply {
	if act == nil {
		return s.onText(ctx, sess, ev)
	}

	switch act.Kind {
	case action.Start:
		sess.Reset()
		return []reply.Reply{s.welcome()}
	case action.Help:
		return []reply.Reply{reply.WithOptions(msgHelp, homeOpt())}
	case action.Cancel:
		if sess.State == session.StateIdle {
			return []reply.Reply{reply.Text(msgNothingToCancel)}
		}
		sess.Reset()
		return []reply.Reply{s.menu(msgCancelled)}
	case action.FindDoctor, action.NewSearch:
		sess.Reset()
		return s.showSpecialties(ctx, sess, 0)
	case action.AISearch:
		return s.startAISearch(sess)
	case action.Specialty:
		return s.selectSpecialty(ctx, sess, act.ID)
	case action.Hospital:
		return s.selectHospital(ctx, sess, act.ID, action.BackToHospitals)
	case action.AIHospital:
		return s.selectHospital(ctx, sess, act.ID, action.BackToAIHospitals)
	case action.Doctor:
		return s.showDoctor(ctx, sess, act.ID)
	case action.Reviews:
		return s.showReviews(ctx, sess, act.ID)
	case action.WriteReview:
		return s.startReview(sess, act.ID, act.HospitalID)
	case action.CancelReview:
		return s.cancelReview(sess)
	case action.BackToSpecialties:
		return s.showSpecialties(ctx, sess, 0)
	case action.BackToHospitals:
		return s.showHospitals(ctx, sess, 0)
	case action.BackToAIHospitals:
		return s.restoreAIHospitals(ctx, sess, 0)
	case action.BackToDoctors:
		return s.showDoctors(ctx, sess, 0)
	case action.BackToDoctor:
		return s.showDoctor(ctx, sess, act.ID)
	case action.Page:
		return s.showPage(ctx, sess, act.List, act.Page)
	}
	return []reply.Reply{s.welcome()}
}

func (s *Service) onText(ctx context.Context, sess *session.Session, ev Event) []reply.Reply {
	switch sess.State {
	case session.StateAISearching:
		return s.aiQuery(ctx, sess, ev.Text)
	case session.StateSelectingHospital:
		if sess.Search.AIOrigin {
			return s.refine(ctx, sess, ev.Text)
		}
	case session.StateSelectingDoctor:
		if sess.Search.AIOrigin && s.oracle.Enabled() {
			return s.recommend(ctx, sess, ev.Text)
		}
	case session.StateWritingReview:
		return s.submitReview(ctx, sess, ev)
	case session.StateIdle:
		return []reply.Reply{s.welcome()}
	}
	return []reply.Reply{reply.WithOptions(msgPickFromList, newSearchOpt(), homeOpt())}
}

// redirect recovers from a missing context field by restarting at the
// earliest step whose prerequisites hold.
func (s *Service) redirect(ctx context.Context, sess *session.Session, cause error) []reply.Reply {
	log := logger.FromContext(ctx)
	log.Warn("session inconsistency, redirecting", zap.String("state", string(sess.State)), zap.Error(cause))

	var missing *domain.MissingFieldError
	if errors.As(cause, &missing) && missing.Field == "hospital_id" && sess.Search.SpecialtyID != 0 {
		if sess.Search.AIOrigin {
			return s.restoreAIHospitals(ctx, sess, 0)
		}
		return s.showHospitals(ctx, sess, 0)
	}
	out := []reply.Reply{reply.Text(msgContextLost)}
	return append(out, s.showSpecialties(ctx, sess, 0)...)
}

// loadFailed logs a broken catalog read and offers a restart.
func (s *Service) loadFailed(ctx context.Context, op string, err error) []reply.Reply {
	logger.FromContext(ctx).Error("catalog read failed", zap.String("op", op), zap.Error(err))
	return []reply.Reply{failure(msgLoadError)}
}
