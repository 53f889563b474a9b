// Package session holds the per-conversation search state owned by the orchestrator.
package session

import (
	"time"

	"github.com/kailas-cloud/docfinder/internal/domain"
	"github.com/kailas-cloud/docfinder/internal/domain/history"
	"github.com/kailas-cloud/docfinder/internal/domain/location"
)

// State is the conversation state.
type State string

// Conversation states.
const (
	StateIdle               State = "idle"
	StateSelectingSpecialty State = "selecting_specialty"
	StateSelectingHospital  State = "selecting_hospital"
	StateSelectingDoctor    State = "selecting_doctor"
	StateViewingDoctor      State = "viewing_doctor"
	StateWritingReview      State = "writing_review"
	StateViewingReviews     State = "viewing_reviews"
	StateAISearching        State = "ai_searching"
)

// SearchContext is the evolving search of one conversation.
type SearchContext struct {
	SpecialtyID   int64            `json:"specialty_id,omitempty"`
	SpecialtyName string           `json:"specialty_name,omitempty"`
	HospitalID    int64            `json:"hospital_id,omitempty"`
	DoctorID      int64            `json:"doctor_id,omitempty"`
	Location      *location.Signal `json:"location_info,omitempty"`
	// FilteredHospitalIDs is the last list shown, in display order.
	FilteredHospitalIDs []int64 `json:"filtered_hospital_ids,omitempty"`
	FilterApplied       bool    `json:"filter_applied"`
	OriginalCount       int     `json:"original_count"`
	// AIOrigin marks a search that started in the assisted flow.
	AIOrigin bool          `json:"ai_origin"`
	Turns    *history.Ring `json:"conversation_turns,omitempty"`
}

// ReviewTarget is the placement a review is being written for.
type ReviewTarget struct {
	DoctorID   int64 `json:"doctor_id"`
	HospitalID int64 `json:"hospital_id"`
}

// Session is the stored state of one conversation.
type Session struct {
	ID        string        `json:"id"`
	State     State         `json:"state"`
	Search    SearchContext `json:"search"`
	Review    *ReviewTarget `json:"review,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// New creates an idle session.
func New(id string) *Session {
	return &Session{ID: id, State: StateIdle}
}

// Reset clears the search context and returns to Idle.
func (s *Session) Reset() {
	s.State = StateIdle
	s.Search = SearchContext{}
	s.Review = nil
}

// EnterAISearch starts a fresh assisted search with an empty history window.
func (s *Session) EnterAISearch(historyCap int) {
	s.Reset()
	s.State = StateAISearching
	s.Search.AIOrigin = true
	s.Search.Turns = history.New(historyCap)
}

// History returns the turn window, creating it lazily.
func (s *Session) History(historyCap int) *history.Ring {
	if s.Search.Turns == nil {
		s.Search.Turns = history.New(historyCap)
	}
	return s.Search.Turns
}

// SelectSpecialty stores the specialty and drops everything that depended on the previous one.
func (s *Session) SelectSpecialty(id int64, name string) {
	s.Search.SpecialtyID = id
	s.Search.SpecialtyName = name
	s.Search.HospitalID = 0
	s.Search.DoctorID = 0
	s.Search.FilteredHospitalIDs = nil
	s.Search.FilterApplied = false
	s.Search.OriginalCount = 0
}

// ApplyHospitalList records the hospital list shown to the user.
func (s *Session) ApplyHospitalList(ids []int64, filtered bool, originalCount int) {
	s.Search.FilteredHospitalIDs = append([]int64(nil), ids...)
	s.Search.FilterApplied = filtered
	s.Search.OriginalCount = originalCount
	s.Search.HospitalID = 0
	s.Search.DoctorID = 0
}

// SelectHospital stores the hospital.
func (s *Session) SelectHospital(id int64) {
	s.Search.HospitalID = id
	s.Search.DoctorID = 0
}

// RequireSpecialty fails when no specialty is selected.
func (s *Session) RequireSpecialty() error {
	if s.Search.SpecialtyID == 0 {
		return domain.NewMissingField("specialty_id")
	}
	return nil
}

// RequireHospital fails when no specialty or hospital is selected.
func (s *Session) RequireHospital() error {
	if err := s.RequireSpecialty(); err != nil {
		return err
	}
	if s.Search.HospitalID == 0 {
		return domain.NewMissingField("hospital_id")
	}
	return nil
}
