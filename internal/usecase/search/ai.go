package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docfinder/internal/domain/action"
	"github.com/kailas-cloud/docfinder/internal/domain/catalog"
	"github.com/kailas-cloud/docfinder/internal/domain/history"
	"github.com/kailas-cloud/docfinder/internal/domain/intent"
	"github.com/kailas-cloud/docfinder/internal/domain/location"
	"github.com/kailas-cloud/docfinder/internal/domain/reply"
	"github.com/kailas-cloud/docfinder/internal/domain/session"
	"github.com/kailas-cloud/docfinder/internal/logger"
	"github.com/kailas-cloud/docfinder/internal/metrics"
)

const (
	titleFiltered = "✅ Отфильтровал результаты по вашему запросу!"
	titleRestored = "✅ Отфильтрованные результаты"
)

func (s *Service) startAISearch(sess *session.Session) []reply.Reply {
	if !s.oracle.Enabled() {
		return []reply.Reply{reply.WithOptions(msgAIUnavailable,
			reply.Opt(lblFindDoctor, action.Of(action.FindDoctor)), homeOpt())}
	}
	sess.EnterAISearch(s.cfg.HistoryTurns)
	return []reply.Reply{reply.Text(fmt.Sprintf(msgAIIntro, s.cfg.City))}
}

// aiQuery classifies free text into a specialty and, when the text carries a
// location, narrows the hospital list.
func (s *Service) aiQuery(ctx context.Context, sess *session.Session, text string) []reply.Reply {
	text = strings.TrimSpace(text)
	if text == "" {
		return []reply.Reply{reply.Text(msgEmptyQuery)}
	}
	log := logger.FromContext(ctx)

	specialties, err := s.catalog.ListSpecialties(ctx, s.cfg.FetchLimit)
	if err != nil {
		return s.loadFailed(ctx, "list_specialties", err)
	}
	if len(specialties.Items) == 0 {
		sess.Reset()
		return []reply.Reply{s.menu(msgNoSpecialties)}
	}

	sig := location.Extract(text)
	turns := sess.History(s.cfg.HistoryTurns)

	var answer string
	specialty, ok := catalog.Specialty{}, false
	raw, err := s.oracle.ClassifyQuery(ctx, text, specialties.Items, turns.Turns())
	// one failed oracle call per turn is enough; the location step then
	// matches addresses locally
	oracleDown := err != nil
	if oracleDown {
		// keyword match on the user's own words
		metrics.OracleFallbacksTotal.WithLabelValues("classify").Inc()
		log.Warn("classify fell back to keywords", zap.Error(err))
		specialty, ok = intent.ResolveSpecialty(text, specialties.Items)
		if !ok {
			return []reply.Reply{reply.WithOptions(msgAIError,
				reply.Opt(lblFindDoctor, action.Of(action.FindDoctor)), homeOpt())}
		}
		answer = fmt.Sprintf("Ищу врача по специальности «%s».", specialty.Name)
	} else {
		answer = raw
		specialty, ok = intent.ResolveSpecialty(raw, specialties.Items)
	}

	if ok {
		answer = enrichAnswer(answer, sig)
	}
	turns.Push(history.RoleUser, text)
	turns.Push(history.RoleAssistant, answer)
	out := []reply.Reply{reply.Text(answer)}

	if !ok {
		if sig.HasLocation {
			return append(out, reply.Text(msgNeedSpecialty))
		}
		return append(out, reply.Text(msgOutOfDomain))
	}

	sess.SelectSpecialty(specialty.ID, specialty.Name)
	sess.Search.AIOrigin = true
	sess.Search.Location = nil
	if sig.HasLocation {
		sess.Search.Location = &sig
	}

	all, err := s.catalog.ListHospitals(ctx, specialty.ID, s.cfg.FetchLimit)
	if err != nil {
		return append(out, s.loadFailed(ctx, "list_hospitals", err)...)
	}
	if len(all.Items) == 0 {
		return append(out, reply.WithOptions(fmt.Sprintf(msgNoHospitalsForAI, specialty.Name),
			reply.Opt(lblFindDoctor, action.Of(action.FindDoctor)), homeOpt()))
	}

	shown, filtered := all.Items, false
	if sig.HasLocation {
		var matches []catalog.Hospital
		opinion := true
		if oracleDown {
			matches = s.addressMatches(ctx, text, all.Items)
		} else {
			matches, opinion = s.filterByLocation(ctx, text, all.Items)
		}
		switch {
		case !opinion:
		case len(matches) == 0:
			log.Info("location filter matched nothing, showing full list", zap.Int("hospitals", len(all.Items)))
			out = append(out, reply.Text(msgNoExactMatch))
		case len(matches) < len(all.Items):
			shown, filtered = matches, true
		}
	}

	sess.ApplyHospitalList(catalog.HospitalIDs(shown), filtered, len(all.Items))
	sess.State = session.StateSelectingHospital
	return append(out, s.aiHospitalList(sess, shown, 0, titleFiltered))
}

// addressMatches is the local location filter: address words against the
// query, restricted to the service city.
func (s *Service) addressMatches(ctx context.Context, text string, hospitals []catalog.Hospital) []catalog.Hospital {
	metrics.OracleFallbacksTotal.WithLabelValues("filter").Inc()
	var out []catalog.Hospital
	for _, h := range intent.FilterByAddress(hospitals, text) {
		if intent.InCity(h.Address, s.cfg.CityTokens) {
			out = append(out, h)
		}
	}
	logger.FromContext(ctx).Debug("address filter",
		zap.Int("hospitals", len(hospitals)), zap.Int("matches", len(out)))
	return out
}

// filterByLocation returns the hospitals matching the user's location.
// opinion is false when the oracle named no usable hospital, in which case the
// caller keeps the unfiltered list.
func (s *Service) filterByLocation(
	ctx context.Context, text string, hospitals []catalog.Hospital,
) (matches []catalog.Hospital, opinion bool) {
	log := logger.FromContext(ctx)

	raw, sent, err := s.oracle.FilterByLocation(ctx, text, hospitals)
	if err != nil {
		log.Warn("location filter fell back to address matching", zap.Error(err))
		return s.addressMatches(ctx, text, hospitals), true
	}

	res := intent.ResolveLocationFilter(raw, sent, s.cfg.CityTokens)
	metrics.LocationFilterOutcomesTotal.WithLabelValues(res.Outcome.String()).Inc()

	switch res.Outcome {
	case intent.Validated:
		if dropped := len(res.Candidates) - len(res.Hospitals); dropped > 0 {
			log.Info("dropped out-of-city hospitals", zap.Int("dropped", dropped))
		}
		return res.Hospitals, true
	case intent.Unvalidated:
		log.Warn("oracle picks failed the city check",
			zap.Int("candidates", len(res.Candidates)),
			zap.Bool("trusted", s.cfg.TrustUnvalidatedMatches),
		)
		if s.cfg.TrustUnvalidatedMatches {
			return res.Candidates, true
		}
		return nil, true
	default:
		log.Info("oracle gave no usable hospital index", zap.String("answer", raw))
		return nil, false
	}
}

// refine narrows the current specialty's hospitals by a new location phrase.
// When nothing matches the previously shown list stays in place.
func (s *Service) refine(ctx context.Context, sess *session.Session, text string) []reply.Reply {
	if err := sess.RequireSpecialty(); err != nil {
		return s.redirect(ctx, sess, err)
	}
	text = strings.TrimSpace(text)
	sig := location.Extract(text)
	if !sig.HasLocation {
		return []reply.Reply{reply.Text(msgNeedAddress)}
	}

	all, err := s.catalog.ListHospitals(ctx, sess.Search.SpecialtyID, s.cfg.FetchLimit)
	if err != nil {
		return s.loadFailed(ctx, "list_hospitals", err)
	}

	matches, opinion := s.filterByLocation(ctx, text, all.Items)
	if !opinion {
		matches = all.Items
	}
	if len(matches) == 0 {
		return []reply.Reply{reply.WithOptions(fmt.Sprintf(msgRefineNotFound, sess.Search.SpecialtyName),
			reply.Opt(lblBackToList, action.Of(action.BackToAIHospitals)), newSearchOpt())}
	}

	sess.Search.Location = &sig
	sess.ApplyHospitalList(catalog.HospitalIDs(matches), len(matches) < len(all.Items), len(all.Items))
	sess.History(s.cfg.HistoryTurns).Push(history.RoleUser, text)
	return []reply.Reply{s.aiHospitalList(sess, matches, 0, titleFiltered)}
}

// restoreAIHospitals rebuilds the last shown list from the persisted ids
// without asking the oracle.
func (s *Service) restoreAIHospitals(ctx context.Context, sess *session.Session, page int) []reply.Reply {
	if err := sess.RequireSpecialty(); err != nil {
		return s.redirect(ctx, sess, err)
	}
	all, err := s.catalog.ListHospitals(ctx, sess.Search.SpecialtyID, s.cfg.FetchLimit)
	if err != nil {
		return s.loadFailed(ctx, "list_hospitals", err)
	}

	shown := all.Items
	if len(sess.Search.FilteredHospitalIDs) > 0 {
		shown = catalog.SelectHospitals(all.Items, sess.Search.FilteredHospitalIDs)
	}
	if len(shown) == 0 {
		return []reply.Reply{failure(msgHospitalsNotFound)}
	}

	sess.Search.HospitalID = 0
	sess.Search.DoctorID = 0
	sess.Search.AIOrigin = true
	sess.State = session.StateSelectingHospital
	return []reply.Reply{s.aiHospitalList(sess, shown, page, titleRestored)}
}

func (s *Service) aiHospitalList(sess *session.Session, shown []catalog.Hospital, page int, title string) reply.Reply {
	text := hospitalListText(title, sess.Search.SpecialtyName, len(shown), sess.Search.OriginalCount,
		sess.Search.FilterApplied, sess.Search.Location)
	opts := reply.Paginate(hospitalOptions(shown, action.AIHospital), page, s.cfg.PageSize, action.ListAIHospitals)
	opts = append(opts, newSearchOpt(), homeOpt())
	return reply.WithOptions(text, opts...)
}

// recommend asks the oracle to choose among the listed doctors.
func (s *Service) recommend(ctx context.Context, sess *session.Session, text string) []reply.Reply {
	if err := sess.RequireHospital(); err != nil {
		return s.redirect(ctx, sess, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return []reply.Reply{reply.Text(msgEmptyQuery)}
	}

	doctors, err := s.catalog.ListDoctors(ctx, sess.Search.HospitalID, sess.Search.SpecialtyID, s.cfg.FetchLimit)
	if err != nil {
		return s.loadFailed(ctx, "list_doctors", err)
	}
	if len(doctors.Items) == 0 {
		return []reply.Reply{reply.WithOptions(msgNoDoctors,
			reply.Opt(lblBackToHospitals, s.hospitalsBack(sess)), homeOpt())}
	}

	turns := sess.History(s.cfg.HistoryTurns)
	answer, err := s.oracle.Recommend(ctx, text, doctors.Items, sess.Search.Location, turns.Turns())
	if err != nil {
		metrics.OracleFallbacksTotal.WithLabelValues("recommend").Inc()
		logger.FromContext(ctx).Warn("recommendation unavailable", zap.Error(err))
		answer = msgRecommendFallback
	} else {
		turns.Push(history.RoleUser, text)
		turns.Push(history.RoleAssistant, answer)
	}
	return []reply.Reply{s.doctorList(sess, doctors.Items, 0, answer)}
}
