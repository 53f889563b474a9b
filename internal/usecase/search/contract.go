package search

import (
	"context"

	"github.com/kailas-cloud/docfinder/internal/domain/catalog"
	"github.com/kailas-cloud/docfinder/internal/domain/geo"
	"github.com/kailas-cloud/docfinder/internal/domain/history"
	"github.com/kailas-cloud/docfinder/internal/domain/location"
	"github.com/kailas-cloud/docfinder/internal/domain/session"
)

// Catalog reads and writes the doctor directory.
type Catalog interface {
	ListSpecialties(ctx context.Context, limit int) (catalog.Page[catalog.Specialty], error)
	ListHospitals(ctx context.Context, specialtyID int64, limit int) (catalog.Page[catalog.Hospital], error)
	ListDoctors(ctx context.Context, hospitalID, specialtyID int64, limit int) (catalog.Page[catalog.Doctor], error)
	GetDoctor(ctx context.Context, doctorID, hospitalID int64) (catalog.Doctor, error)
	ListReviews(ctx context.Context, doctorID int64, limit int) ([]catalog.Review, error)
	CreateReview(ctx context.Context, review catalog.Review) (int64, error)
}

// Oracle asks the language model and returns its raw answers.
type Oracle interface {
	Enabled() bool
	ClassifyQuery(ctx context.Context, text string, specialties []catalog.Specialty, turns []history.Turn) (string, error)
	FilterByLocation(ctx context.Context, text string, hospitals []catalog.Hospital) (string, []catalog.Hospital, error)
	Recommend(
		ctx context.Context, text string, doctors []catalog.Doctor, sig *location.Signal, turns []history.Turn,
	) (string, error)
}

// SessionStore persists conversation state.
type SessionStore interface {
	Load(ctx context.Context, id string) (*session.Session, error)
	Save(ctx context.Context, s *session.Session) error
	Delete(ctx context.Context, id string) error
}

// Geocoder resolves an address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) geo.Result
}

// MapRenderer renders static map images and map links.
type MapRenderer interface {
	StaticMap(ctx context.Context, p geo.Point) ([]byte, error)
	MapLink(p geo.Point) string
}
