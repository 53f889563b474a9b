// Package action encodes the option actions exchanged with conversation channels,
// e.g. "specialty:3", "write_review:7:5" or "page:hospital:2".
package action

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/docfinder/internal/domain"
)

// Kind names an action.
type Kind string

// Action kinds.
const (
	Start             Kind = "start"
	Help              Kind = "help"
	FindDoctor        Kind = "find_doctor"
	AISearch          Kind = "ai_search"
	NewSearch         Kind = "new_search"
	Cancel            Kind = "cancel"
	CancelReview      Kind = "cancel_review"
	Specialty         Kind = "specialty"
	Hospital          Kind = "hospital"
	AIHospital        Kind = "ai_hospital"
	Doctor            Kind = "doctor"
	Reviews           Kind = "reviews"
	WriteReview       Kind = "write_review"
	BackToSpecialties Kind = "back_to_specialties"
	BackToHospitals   Kind = "back_to_hospitals"
	BackToAIHospitals Kind = "back_to_ai_hospitals"
	BackToDoctors     Kind = "back_to_doctors"
	BackToDoctor      Kind = "back_to_doctor"
	Page              Kind = "page"
)

// Paginated list names used by Page actions.
const (
	ListSpecialties = "specialty"
	ListHospitals   = "hospital"
	ListAIHospitals = "ai_hospital"
	ListDoctors     = "doctor"
)

// Action is a decoded option action.
type Action struct {
	Kind Kind
	// ID is the entity id for specialty, hospital, doctor, reviews and back_to_doctor.
	ID int64
	// HospitalID is set for write_review.
	HospitalID int64
	// List and Page are set for page.
	List string
	Page int
}

// TopLevel reports whether the action abandons the current flow.
func (a Action) TopLevel() bool {
	switch a.Kind {
	case Start, NewSearch, Cancel, AISearch, FindDoctor:
		return true
	default:
		return false
	}
}

var withID = map[Kind]bool{
	Specialty: true, Hospital: true, AIHospital: true, Doctor: true,
	Reviews: true, BackToDoctor: true,
}

var plain = map[Kind]bool{
	Start: true, Help: true, FindDoctor: true, AISearch: true, NewSearch: true,
	Cancel: true, CancelReview: true, BackToSpecialties: true, BackToHospitals: true,
	BackToAIHospitals: true, BackToDoctors: true,
}

var lists = map[string]bool{
	ListSpecialties: true, ListHospitals: true, ListAIHospitals: true, ListDoctors: true,
}

// Parse decodes an action string.
func Parse(s string) (Action, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	kind := Kind(parts[0])

	switch {
	case plain[kind] && len(parts) == 1:
		return Action{Kind: kind}, nil
	case withID[kind] && len(parts) == 2:
		id, err := parseID(parts[1])
		if err != nil {
			return Action{}, fmt.Errorf("%w: action %q: %v", domain.ErrValidation, s, err)
		}
		return Action{Kind: kind, ID: id}, nil
	case kind == WriteReview && len(parts) == 3:
		doctorID, err := parseID(parts[1])
		if err != nil {
			return Action{}, fmt.Errorf("%w: action %q: %v", domain.ErrValidation, s, err)
		}
		hospitalID, err := parseID(parts[2])
		if err != nil {
			return Action{}, fmt.Errorf("%w: action %q: %v", domain.ErrValidation, s, err)
		}
		return Action{Kind: kind, ID: doctorID, HospitalID: hospitalID}, nil
	case kind == Page && len(parts) == 3:
		if !lists[parts[1]] {
			return Action{}, fmt.Errorf("%w: action %q: unknown list", domain.ErrValidation, s)
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil || n < 0 {
			return Action{}, fmt.Errorf("%w: action %q: bad page", domain.ErrValidation, s)
		}
		return Action{Kind: kind, List: parts[1], Page: n}, nil
	}
	return Action{}, fmt.Errorf("%w: unknown action %q", domain.ErrValidation, s)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad id: %w", err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("bad id %d", id)
	}
	return id, nil
}

// String encodes the action.
func (a Action) String() string {
	switch {
	case withID[a.Kind]:
		return fmt.Sprintf("%s:%d", a.Kind, a.ID)
	case a.Kind == WriteReview:
		return fmt.Sprintf("%s:%d:%d", a.Kind, a.ID, a.HospitalID)
	case a.Kind == Page:
		return fmt.Sprintf("%s:%s:%d", a.Kind, a.List, a.Page)
	default:
		return string(a.Kind)
	}
}

// Of returns a plain action.
func Of(k Kind) Action { return Action{Kind: k} }

// WithID returns an action carrying an entity id.
func WithID(k Kind, id int64) Action { return Action{Kind: k, ID: id} }

// ReviewFor returns a write_review action for a placement.
func ReviewFor(doctorID, hospitalID int64) Action {
	return Action{Kind: WriteReview, ID: doctorID, HospitalID: hospitalID}
}

// PageOf returns a page action.
func PageOf(list string, page int) Action { return Action{Kind: Page, List: list, Page: page} }
