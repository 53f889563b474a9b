// Package assistant builds grounded prompts for the language model and
// returns its raw answers. Interpretation happens in domain/intent.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docfinder/internal/domain"
	"github.com/kailas-cloud/docfinder/internal/domain/catalog"
	"github.com/kailas-cloud/docfinder/internal/domain/history"
	"github.com/kailas-cloud/docfinder/internal/domain/location"
)

// Request purposes, used as a metrics label by the chat transport.
const (
	PurposeClassify  = "classify"
	PurposeFilter    = "filter"
	PurposeRecommend = "recommend"
)

const (
	defaultTimeout            = 30 * time.Second
	defaultMaxPromptHospitals = 50
	defaultRecommendDoctors   = 5
)

// Config holds oracle prompt settings.
type Config struct {
	City               string
	Timeout            time.Duration
	MaxPromptHospitals int
	RecommendDoctors   int
}

// Service is the language model client of the search assistant.
type Service struct {
	chat   Chatter
	cfg    Config
	logger *zap.Logger
}

// New creates a Service. chat may be nil, which disables every call.
func New(chat Chatter, cfg Config, logger *zap.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxPromptHospitals <= 0 {
		cfg.MaxPromptHospitals = defaultMaxPromptHospitals
	}
	if cfg.RecommendDoctors <= 0 {
		cfg.RecommendDoctors = defaultRecommendDoctors
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{chat: chat, cfg: cfg, logger: logger}
}

// Enabled reports whether the oracle is configured.
func (s *Service) Enabled() bool { return s != nil && s.chat != nil }

// ClassifyQuery asks the oracle which catalog specialty the user needs.
// The answer is free text to be matched by intent.ResolveSpecialty.
func (s *Service) ClassifyQuery(
	ctx context.Context, text string, specialties []catalog.Specialty, turns []history.Turn,
) (string, error) {
	system := buildClassifyPrompt(s.cfg.City, specialties)
	return s.call(ctx, PurposeClassify, system, turns, text)
}

// FilterByLocation asks the oracle which hospitals match the user's location.
// Only the first MaxPromptHospitals are enumerated; the returned slice is the
// exact list the answer's indices refer to.
func (s *Service) FilterByLocation(
	ctx context.Context, text string, hospitals []catalog.Hospital,
) (string, []catalog.Hospital, error) {
	sent := hospitals
	if len(sent) > s.cfg.MaxPromptHospitals {
		sent = sent[:s.cfg.MaxPromptHospitals]
	}
	if len(sent) == 0 {
		return "", nil, nil
	}
	system := buildFilterPrompt(s.cfg.City, sent)
	answer, err := s.call(ctx, PurposeFilter, system, nil, filterQuestion(text))
	if err != nil {
		return "", sent, err
	}
	return answer, sent, nil
}

// Recommend asks the oracle to pick among the listed doctors.
func (s *Service) Recommend(
	ctx context.Context, text string, doctors []catalog.Doctor, sig *location.Signal, turns []history.Turn,
) (string, error) {
	if len(doctors) > s.cfg.RecommendDoctors {
		doctors = doctors[:s.cfg.RecommendDoctors]
	}
	system := buildRecommendPrompt(s.cfg.City, doctors, sig)
	return s.call(ctx, PurposeRecommend, system, turns, text)
}

func (s *Service) call(
	ctx context.Context, purpose, system string, turns []history.Turn, user string,
) (string, error) {
	if !s.Enabled() {
		return "", domain.ErrOracleDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	answer, err := s.chat.Chat(ctx, purpose, system, turns, user)
	if err != nil {
		s.logger.Warn("oracle call failed",
			zap.String("purpose", purpose),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		if errors.Is(err, domain.ErrOracleUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %w", domain.ErrOracleUnavailable, purpose, err)
	}
	s.logger.Debug("oracle answered",
		zap.String("purpose", purpose),
		zap.Duration("latency", time.Since(start)),
		zap.Int("answer_len", len(answer)),
	)
	return answer, nil
}
