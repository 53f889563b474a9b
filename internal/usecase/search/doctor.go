package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docfinder/internal/domain"
	"github.com/kailas-cloud/docfinder/internal/domain/action"
	"github.com/kailas-cloud/docfinder/internal/domain/catalog"
	"github.com/kailas-cloud/docfinder/internal/domain/geo"
	"github.com/kailas-cloud/docfinder/internal/domain/reply"
	"github.com/kailas-cloud/docfinder/internal/domain/session"
	"github.com/kailas-cloud/docfinder/internal/logger"
)

// showDoctor renders the doctor card. Geocoding and the map are best effort:
// any failure leaves a text-only card.
func (s *Service) showDoctor(ctx context.Context, sess *session.Session, doctorID int64) []reply.Reply {
	if err := sess.RequireHospital(); err != nil {
		return s.redirect(ctx, sess, err)
	}
	d, err := s.catalog.GetDoctor(ctx, doctorID, sess.Search.HospitalID)
	if errors.Is(err, domain.ErrNotFound) {
		return []reply.Reply{reply.WithOptions(msgDoctorNotFound,
			reply.Opt(lblBackToList, action.Of(action.BackToDoctors)), homeOpt())}
	}
	if err != nil {
		return s.loadFailed(ctx, "get_doctor", err)
	}

	sess.Search.DoctorID = d.ID
	sess.Review = nil
	sess.State = session.StateViewingDoctor

	card := reply.Reply{Text: doctorCardText(d)}
	if p, ok := s.locate(ctx, d).Point(); ok {
		if s.maps != nil {
			card.Options = append(card.Options, reply.Link(lblOnMap, s.maps.MapLink(p)))
			card.Attachment = s.staticMap(ctx, p)
		}
	}
	card.Options = append(card.Options,
		reply.Opt(lblReviews, action.WithID(action.Reviews, d.ID)),
		reply.Opt(lblWriteReview, action.ReviewFor(d.ID, sess.Search.HospitalID)),
		reply.Opt(lblBackToList, action.Of(action.BackToDoctors)),
		newSearchOpt(),
		homeOpt(),
	)
	return []reply.Reply{card}
}

func (s *Service) locate(ctx context.Context, d catalog.Doctor) geo.Result {
	if s.geocoder == nil || !d.HasAddress() {
		return geo.Skipped()
	}
	res := s.geocoder.Geocode(ctx, d.Address)
	if err := res.Err(); err != nil {
		logger.FromContext(ctx).Warn("geocode failed", zap.Int64("doctor_id", d.ID), zap.Error(err))
	}
	return res
}

func (s *Service) staticMap(ctx context.Context, p geo.Point) *reply.Attachment {
	img, err := s.maps.StaticMap(ctx, p)
	if err != nil {
		logger.FromContext(ctx).Warn("static map failed", zap.String("point", p.String()), zap.Error(err))
		return nil
	}
	return &reply.Attachment{Name: "map.png", ContentType: "image/png", Data: img}
}

func (s *Service) showReviews(ctx context.Context, sess *session.Session, doctorID int64) []reply.Reply {
	reviews, err := s.catalog.ListReviews(ctx, doctorID, s.cfg.ReviewsShown)
	if err != nil {
		return s.loadFailed(ctx, "list_reviews", err)
	}
	if len(reviews) > s.cfg.ReviewsShown {
		reviews = reviews[:s.cfg.ReviewsShown]
	}

	sess.Search.DoctorID = doctorID
	sess.State = session.StateViewingReviews

	var opts []reply.Option
	if sess.Search.HospitalID != 0 {
		opts = append(opts, reply.Opt(lblWriteReview, action.ReviewFor(doctorID, sess.Search.HospitalID)))
	}
	opts = append(opts, reply.Opt(lblBackToDoctor, action.WithID(action.BackToDoctor, doctorID)), homeOpt())
	return []reply.Reply{reply.WithOptions(reviewsText(reviews), opts...)}
}

func (s *Service) startReview(sess *session.Session, doctorID, hospitalID int64) []reply.Reply {
	sess.Review = &session.ReviewTarget{DoctorID: doctorID, HospitalID: hospitalID}
	sess.Search.DoctorID = doctorID
	sess.Search.HospitalID = hospitalID
	sess.State = session.StateWritingReview
	text := fmt.Sprintf(msgWriteReview, catalog.ReviewMinLength, catalog.ReviewMaxLength)
	return []reply.Reply{reply.WithOptions(text, reply.Opt(lblCancel, action.Of(action.CancelReview)))}
}

func (s *Service) cancelReview(sess *session.Session) []reply.Reply {
	target := sess.Review
	sess.Review = nil
	if target == nil {
		return []reply.Reply{reply.WithOptions(msgNothingToCancel, homeOpt())}
	}
	sess.State = session.StateViewingDoctor
	return []reply.Reply{reply.WithOptions(msgReviewCancelled,
		reply.Opt(lblBackToDoctor, action.WithID(action.BackToDoctor, target.DoctorID)), homeOpt())}
}

// submitReview validates and stores the review text. Out-of-bounds text
// keeps the user in the writing state.
func (s *Service) submitReview(ctx context.Context, sess *session.Session, ev Event) []reply.Reply {
	target := sess.Review
	if target == nil {
		sess.State = session.StateIdle
		return s.redirect(ctx, sess, domain.NewMissingField("review_target"))
	}
	cancel := reply.Opt(lblCancel, action.Of(action.CancelReview))

	review, err := catalog.NewReview(target.DoctorID, target.HospitalID, ev.UserName, ev.Text)
	if errors.Is(err, domain.ErrValidation) {
		msg := fmt.Sprintf(msgReviewTooShort, catalog.ReviewMinLength)
		if utf8.RuneCountInString(strings.TrimSpace(ev.Text)) > catalog.ReviewMaxLength {
			msg = fmt.Sprintf(msgReviewTooLong, catalog.ReviewMaxLength)
		}
		return []reply.Reply{reply.WithOptions(msg, cancel)}
	}

	sess.Review = nil
	sess.State = session.StateViewingDoctor
	back := reply.Opt(lblBackToDoctor, action.WithID(action.BackToDoctor, target.DoctorID))

	if err != nil {
		logger.FromContext(ctx).Error("review rejected", zap.Error(err))
		return []reply.Reply{reply.WithOptions(msgReviewFailed, back, homeOpt())}
	}
	id, err := s.catalog.CreateReview(ctx, review)
	if err != nil {
		logger.FromContext(ctx).Error("save review failed",
			zap.Int64("doctor_id", target.DoctorID), zap.Error(err))
		return []reply.Reply{reply.WithOptions(msgReviewFailed, back, homeOpt())}
	}

	logger.FromContext(ctx).Info("review saved", zap.Int64("review_id", id), zap.Int64("doctor_id", target.DoctorID))
	return []reply.Reply{reply.WithOptions(msgReviewSaved, back, newSearchOpt(), homeOpt())}
}
