package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/docfinder/internal/domain/action"
	"github.com/kailas-cloud/docfinder/internal/domain/catalog"
	"github.com/kailas-cloud/docfinder/internal/domain/reply"
	"github.com/kailas-cloud/docfinder/internal/domain/session"
)

func (s *Service) showSpecialties(ctx context.Context, sess *session.Session, page int) []reply.Reply {
	res, err := s.catalog.ListSpecialties(ctx, s.cfg.FetchLimit)
	if err != nil {
		return s.loadFailed(ctx, "list_specialties", err)
	}
	if len(res.Items) == 0 {
		return []reply.Reply{failure(msgNoSpecialties)}
	}

	sess.State = session.StateSelectingSpecialty
	opts := reply.Paginate(specialtyOptions(res.Items), page, s.cfg.PageSize, action.ListSpecialties)
	opts = append(opts, homeOpt())
	return []reply.Reply{reply.WithOptions(msgSearchHeader+msgStep1, opts...)}
}

func (s *Service) selectSpecialty(ctx context.Context, sess *session.Session, id int64) []reply.Reply {
	res, err := s.catalog.ListSpecialties(ctx, s.cfg.FetchLimit)
	if err != nil {
		return s.loadFailed(ctx, "list_specialties", err)
	}
	sp, ok := catalog.FindSpecialty(res.Items, id)
	if !ok {
		return append([]reply.Reply{reply.Text(msgSpecialtyNotFound)}, s.showSpecialties(ctx, sess, 0)...)
	}

	sess.SelectSpecialty(sp.ID, sp.Name)
	sess.Search.AIOrigin = false
	sess.Search.Location = nil
	return s.showHospitals(ctx, sess, 0)
}

// showHospitals lists every hospital with a placement of the selected specialty.
func (s *Service) showHospitals(ctx context.Context, sess *session.Session, page int) []reply.Reply {
	if err := sess.RequireSpecialty(); err != nil {
		return s.redirect(ctx, sess, err)
	}
	res, err := s.catalog.ListHospitals(ctx, sess.Search.SpecialtyID, s.cfg.FetchLimit)
	if err != nil {
		return s.loadFailed(ctx, "list_hospitals", err)
	}
	if len(res.Items) == 0 {
		return []reply.Reply{reply.WithOptions(msgNoHospitals,
			reply.Opt(lblBack, action.Of(action.BackToSpecialties)), homeOpt())}
	}

	sess.ApplyHospitalList(catalog.HospitalIDs(res.Items), false, len(res.Items))
	sess.State = session.StateSelectingHospital

	text := fmt.Sprintf("%sСпециальность: %s\n\n%s", msgSearchHeader, sess.Search.SpecialtyName, msgStep2)
	opts := reply.Paginate(hospitalOptions(res.Items, action.Hospital), page, s.cfg.PageSize, action.ListHospitals)
	opts = append(opts, reply.Opt(lblBack, action.Of(action.BackToSpecialties)), homeOpt())
	return []reply.Reply{reply.WithOptions(text, opts...)}
}

// selectHospital stores the hospital and lists its doctors. back is where
// the doctor list returns to.
func (s *Service) selectHospital(
	ctx context.Context, sess *session.Session, id int64, back action.Kind,
) []reply.Reply {
	if err := sess.RequireSpecialty(); err != nil {
		return s.redirect(ctx, sess, err)
	}
	sess.SelectHospital(id)
	sess.Search.AIOrigin = back == action.BackToAIHospitals
	return s.showDoctors(ctx, sess, 0)
}

func (s *Service) showDoctors(ctx context.Context, sess *session.Session, page int) []reply.Reply {
	if err := sess.RequireHospital(); err != nil {
		return s.redirect(ctx, sess, err)
	}
	doctors, err := s.catalog.ListDoctors(ctx, sess.Search.HospitalID, sess.Search.SpecialtyID, s.cfg.FetchLimit)
	if err != nil {
		return s.loadFailed(ctx, "list_doctors", err)
	}

	back := s.hospitalsBack(sess)
	if len(doctors.Items) == 0 {
		return []reply.Reply{reply.WithOptions(msgNoDoctors, reply.Opt(lblBackToHospitals, back), homeOpt())}
	}

	sess.State = session.StateSelectingDoctor
	return []reply.Reply{s.doctorList(sess, doctors.Items, page, "")}
}

func (s *Service) doctorList(sess *session.Session, doctors []catalog.Doctor, page int, text string) reply.Reply {
	if text == "" {
		text = fmt.Sprintf("%sСпециальность: %s\n\n%s", msgSearchHeader, sess.Search.SpecialtyName, msgStep3)
	}
	opts := reply.Paginate(doctorOptions(doctors), page, s.cfg.PageSize, action.ListDoctors)
	opts = append(opts, reply.Opt(lblBack, s.hospitalsBack(sess)), homeOpt())
	return reply.WithOptions(text, opts...)
}

func (s *Service) hospitalsBack(sess *session.Session) action.Action {
	if sess.Search.AIOrigin {
		return action.Of(action.BackToAIHospitals)
	}
	return action.Of(action.BackToHospitals)
}

// showPage re-renders a list page without changing the selection.
func (s *Service) showPage(ctx context.Context, sess *session.Session, list string, page int) []reply.Reply {
	switch list {
	case action.ListSpecialties:
		return s.showSpecialties(ctx, sess, page)
	case action.ListHospitals:
		return s.showHospitals(ctx, sess, page)
	case action.ListAIHospitals:
		return s.restoreAIHospitals(ctx, sess, page)
	case action.ListDoctors:
		return s.showDoctors(ctx, sess, page)
	}
	return []reply.Reply{s.welcome()}
}
