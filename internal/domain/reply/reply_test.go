package reply

import (
	"fmt"
	"testing"

	"github.com/kailas-cloud/docfinder/internal/domain/action"
)

func items(n int) []Option {
	out := make([]Option, n)
	for i := range out {
		out[i] = Opt(fmt.Sprintf("item %d", i+1), action.WithID(action.Hospital, int64(i+1)))
	}
	return out
}

func TestPaginate_SinglePage(t *testing.T) {
	got := Paginate(items(10), 0, 10, action.ListHospitals)
	if len(got) != 10 {
		t.Fatalf("expected 10 options without controls, got %d", len(got))
	}
}

func TestPaginate_MiddlePage(t *testing.T) {
	got := Paginate(items(25), 1, 10, action.ListHospitals)
	if len(got) != 12 {
		t.Fatalf("expected 10 items and 2 controls, got %d", len(got))
	}
	if got[0].Label != "item 11" {
		t.Errorf("unexpected first item %q", got[0].Label)
	}
	if got[10].Action != "page:hospital:0" || got[11].Action != "page:hospital:2" {
		t.Errorf("unexpected controls %q %q", got[10].Action, got[11].Action)
	}
}

func TestPaginate_LastPageClamped(t *testing.T) {
	got := Paginate(items(25), 9, 10, action.ListDoctors)
	if len(got) != 6 {
		t.Fatalf("expected 5 items and a prev control, got %d", len(got))
	}
	if got[5].Label != PrevLabel {
		t.Errorf("expected prev control, got %q", got[5].Label)
	}
}
