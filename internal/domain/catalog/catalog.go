// Package catalog holds the read-only directory entities: specialties,
// hospitals, doctors and their reviews.
package catalog

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kailas-cloud/docfinder/internal/domain"
)

// Review text bounds, in characters.
const (
	ReviewMinLength = 10
	ReviewMaxLength = 2000
)

// AnonymousAuthor is used when the channel does not expose a user name.
const AnonymousAuthor = "Аноним"

// Specialty is a medical specialty.
type Specialty struct {
	ID   int64
	Name string
}

// Hospital is a medical institution. Address may be empty.
type Hospital struct {
	ID      int64
	Name    string
	Address string
}

// HasAddress reports whether the hospital has a known address.
func (h Hospital) HasAddress() bool { return strings.TrimSpace(h.Address) != "" }

// Doctor is a practitioner resolved through a placement (doctor + hospital + specialty).
type Doctor struct {
	ID            int64
	Name          string
	HospitalID    int64
	HospitalName  string
	SpecialtyName string
	Address       string
}

// HasAddress reports whether the placement hospital has a known address.
func (d Doctor) HasAddress() bool { return strings.TrimSpace(d.Address) != "" }

// Review is a patient review of a doctor at a hospital.
type Review struct {
	id         int64
	doctorID   int64
	hospitalID int64
	userName   string
	text       string
	createdAt  time.Time
}

// NewReview validates and creates a Review ready to be stored.
// Text is trimmed and must be 10..2000 characters long.
func NewReview(doctorID, hospitalID int64, userName, text string) (Review, error) {
	if doctorID <= 0 {
		return Review{}, fmt.Errorf("%w: doctor is required", domain.ErrValidation)
	}
	if hospitalID <= 0 {
		return Review{}, fmt.Errorf("%w: hospital is required", domain.ErrValidation)
	}
	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	if n < ReviewMinLength {
		return Review{}, fmt.Errorf("%w: review too short (min %d characters)", domain.ErrValidation, ReviewMinLength)
	}
	if n > ReviewMaxLength {
		return Review{}, fmt.Errorf("%w: review too long (max %d characters)", domain.ErrValidation, ReviewMaxLength)
	}
	userName = strings.TrimSpace(userName)
	if userName == "" {
		userName = AnonymousAuthor
	}
	return Review{doctorID: doctorID, hospitalID: hospitalID, userName: userName, text: text}, nil
}

// ReconstructReview creates a Review without validation (storage hydration).
func ReconstructReview(id, doctorID, hospitalID int64, userName, text string, createdAt time.Time) Review {
	return Review{
		id: id, doctorID: doctorID, hospitalID: hospitalID,
		userName: userName, text: text, createdAt: createdAt,
	}
}

// ID returns the review identifier (zero before it is stored).
func (r *Review) ID() int64 { return r.id }

// DoctorID returns the reviewed doctor.
func (r *Review) DoctorID() int64 { return r.doctorID }

// HospitalID returns the hospital of the reviewed placement.
func (r *Review) HospitalID() int64 { return r.hospitalID }

// UserName returns the author name.
func (r *Review) UserName() string { return r.userName }

// Text returns the review body.
func (r *Review) Text() string { return r.text }

// CreatedAt returns the creation time.
func (r *Review) CreatedAt() time.Time { return r.createdAt }

// FindSpecialty returns the specialty with the given id.
func FindSpecialty(specialties []Specialty, id int64) (Specialty, bool) {
	for _, s := range specialties {
		if s.ID == id {
			return s, true
		}
	}
	return Specialty{}, false
}

// HospitalIDs returns the ids of hospitals in order.
func HospitalIDs(hospitals []Hospital) []int64 {
	ids := make([]int64, len(hospitals))
	for i, h := range hospitals {
		ids[i] = h.ID
	}
	return ids
}

// SelectHospitals returns the hospitals whose ids are listed, in the order of ids.
// Ids missing from hospitals are skipped.
func SelectHospitals(hospitals []Hospital, ids []int64) []Hospital {
	byID := make(map[int64]Hospital, len(hospitals))
	for _, h := range hospitals {
		byID[h.ID] = h
	}
	out := make([]Hospital, 0, len(ids))
	for _, id := range ids {
		if h, ok := byID[id]; ok {
			out = append(out, h)
		}
	}
	return out
}

// Page is a bounded slice of a catalog listing together with the full count.
type Page[T any] struct {
	Items []T
	Total int
}
