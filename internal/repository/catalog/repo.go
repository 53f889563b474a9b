package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/docfinder/internal/db"
	"github.com/kailas-cloud/docfinder/internal/domain"
	"github.com/kailas-cloud/docfinder/internal/domain/catalog"
)

// querier is the consumer interface for the catalog database (ISP).
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PingContext(ctx context.Context) error
}

// Repo is the catalog query adapter. Every call reads current catalog state.
type Repo struct {
	db querier
}

// New creates a catalog repository.
func New(q querier) *Repo {
	return &Repo{db: q}
}

// Ping checks the catalog database.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return storageErr(db.OpPing, err)
	}
	return nil
}

const listSpecialtiesSQL = `
SELECT id, name, count(*) OVER ()
FROM specialties
ORDER BY name
LIMIT $1`

// ListSpecialties returns specialties ordered by name.
func (r *Repo) ListSpecialties(ctx context.Context, limit int) (catalog.Page[catalog.Specialty], error) {
	rows, err := r.db.QueryContext(ctx, listSpecialtiesSQL, limit)
	if err != nil {
		return catalog.Page[catalog.Specialty]{}, storageErr(db.OpQuery, err)
	}
	defer rows.Close()

	var page catalog.Page[catalog.Specialty]
	for rows.Next() {
		var s catalog.Specialty
		if err := rows.Scan(&s.ID, &s.Name, &page.Total); err != nil {
			return catalog.Page[catalog.Specialty]{}, storageErr(db.OpQuery, err)
		}
		page.Items = append(page.Items, s)
	}
	if err := rows.Err(); err != nil {
		return catalog.Page[catalog.Specialty]{}, storageErr(db.OpQuery, err)
	}
	return page, nil
}

// A hospital may have several addresses; the lowest address id is its primary one.
const hospitalColumns = `
h.id, h.name, coalesce((
    SELECT a.full_address
    FROM hospital_addresses ha
    JOIN addresses a ON a.id = ha.address_id
    WHERE ha.hospital_id = h.id
    ORDER BY a.id
    LIMIT 1
), '')`

const listHospitalsSQL = `
SELECT ` + hospitalColumns + `, count(*) OVER ()
FROM hospitals h
ORDER BY h.name
LIMIT $1`

const listHospitalsBySpecialtySQL = `
SELECT ` + hospitalColumns + `, count(*) OVER ()
FROM hospitals h
WHERE EXISTS (
    SELECT 1 FROM doctor_work_placements dwp
    WHERE dwp.hospital_id = h.id AND dwp.specialty_id = $1
)
ORDER BY h.name
LIMIT $2`

// ListHospitals returns hospitals ordered by name. A positive specialtyID restricts
// the list to hospitals with at least one placement of that specialty.
func (r *Repo) ListHospitals(ctx context.Context, specialtyID int64, limit int) (catalog.Page[catalog.Hospital], error) {
	var (
		rows *sql.Rows
		err  error
	)
	if specialtyID > 0 {
		rows, err = r.db.QueryContext(ctx, listHospitalsBySpecialtySQL, specialtyID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, listHospitalsSQL, limit)
	}
	if err != nil {
		return catalog.Page[catalog.Hospital]{}, storageErr(db.OpQuery, err)
	}
	defer rows.Close()

	var page catalog.Page[catalog.Hospital]
	for rows.Next() {
		var h catalog.Hospital
		if err := rows.Scan(&h.ID, &h.Name, &h.Address, &page.Total); err != nil {
			return catalog.Page[catalog.Hospital]{}, storageErr(db.OpQuery, err)
		}
		page.Items = append(page.Items, h)
	}
	if err := rows.Err(); err != nil {
		return catalog.Page[catalog.Hospital]{}, storageErr(db.OpQuery, err)
	}
	return page, nil
}

const doctorColumns = `
d.id, d.full_name, h.id, h.name, s.name, coalesce((
    SELECT a.full_address
    FROM hospital_addresses ha
    JOIN addresses a ON a.id = ha.address_id
    WHERE ha.hospital_id = h.id
    ORDER BY a.id
    LIMIT 1
), '')`

const listDoctorsSQL = `
SELECT ` + doctorColumns + `, count(*) OVER ()
FROM doctor_work_placements dwp
JOIN doctors d ON d.id = dwp.doctor_id
JOIN hospitals h ON h.id = dwp.hospital_id
JOIN specialties s ON s.id = dwp.specialty_id
WHERE dwp.hospital_id = $1 AND dwp.specialty_id = $2
ORDER BY d.full_name
LIMIT $3`

// ListDoctors returns doctors with a placement at the hospital for the specialty.
func (r *Repo) ListDoctors(
	ctx context.Context, hospitalID, specialtyID int64, limit int,
) (catalog.Page[catalog.Doctor], error) {
	rows, err := r.db.QueryContext(ctx, listDoctorsSQL, hospitalID, specialtyID, limit)
	if err != nil {
		return catalog.Page[catalog.Doctor]{}, storageErr(db.OpQuery, err)
	}
	defer rows.Close()

	var page catalog.Page[catalog.Doctor]
	for rows.Next() {
		var d catalog.Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.HospitalID, &d.HospitalName, &d.SpecialtyName, &d.Address, &page.Total); err != nil {
			return catalog.Page[catalog.Doctor]{}, storageErr(db.OpQuery, err)
		}
		page.Items = append(page.Items, d)
	}
	if err := rows.Err(); err != nil {
		return catalog.Page[catalog.Doctor]{}, storageErr(db.OpQuery, err)
	}
	return page, nil
}

const getDoctorSQL = `
SELECT ` + doctorColumns + `
FROM doctor_work_placements dwp
JOIN doctors d ON d.id = dwp.doctor_id
JOIN hospitals h ON h.id = dwp.hospital_id
JOIN specialties s ON s.id = dwp.specialty_id
WHERE dwp.doctor_id = $1 AND dwp.hospital_id = $2
ORDER BY dwp.id
LIMIT 1`

// GetDoctor returns the doctor at the hospital, or domain.ErrNotFound when no placement matches.
func (r *Repo) GetDoctor(ctx context.Context, doctorID, hospitalID int64) (catalog.Doctor, error) {
	var d catalog.Doctor
	err := r.db.QueryRowContext(ctx, getDoctorSQL, doctorID, hospitalID).
		Scan(&d.ID, &d.Name, &d.HospitalID, &d.HospitalName, &d.SpecialtyName, &d.Address)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Doctor{}, fmt.Errorf("doctor %d at hospital %d: %w", doctorID, hospitalID, domain.ErrNotFound)
	}
	if err != nil {
		return catalog.Doctor{}, storageErr(db.OpQuery, err)
	}
	return d, nil
}

const listReviewsSQL = `
SELECT id, doctor_id, hospital_id, user_name, review_text, created_at
FROM doctor_reviews
WHERE doctor_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

// ListReviews returns the newest reviews of a doctor first.
func (r *Repo) ListReviews(ctx context.Context, doctorID int64, limit int) ([]catalog.Review, error) {
	rows, err := r.db.QueryContext(ctx, listReviewsSQL, doctorID, limit)
	if err != nil {
		return nil, storageErr(db.OpQuery, err)
	}
	defer rows.Close()

	var out []catalog.Review
	for rows.Next() {
		var (
			id, dID, hID   int64
			userName, text string
			createdAt      time.Time
		)
		if err := rows.Scan(&id, &dID, &hID, &userName, &text, &createdAt); err != nil {
			return nil, storageErr(db.OpQuery, err)
		}
		out = append(out, catalog.ReconstructReview(id, dID, hID, userName, text, createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(db.OpQuery, err)
	}
	return out, nil
}

const createReviewSQL = `
INSERT INTO doctor_reviews (doctor_id, hospital_id, user_name, review_text)
VALUES ($1, $2, $3, $4)
RETURNING id`

// CreateReview stores a validated review and returns its id.
func (r *Repo) CreateReview(ctx context.Context, review catalog.Review) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, createReviewSQL,
		review.DoctorID(), review.HospitalID(), review.UserName(), review.Text(),
	).Scan(&id)
	if err != nil {
		return 0, storageErr(db.OpExec, err)
	}
	return id, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %w", domain.ErrStorage, &db.Error{Op: op, Err: err})
}
