package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/docfinder/internal/db"
	"github.com/kailas-cloud/docfinder/internal/domain"
	domsession "github.com/kailas-cloud/docfinder/internal/domain/session"
)

func TestLoad_MissingReturnsIdle(t *testing.T) {
	r := New(&mockStore{}, "docfinder:session:", time.Hour)

	s, err := r.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != "s1" || s.State != domsession.StateIdle {
		t.Errorf("unexpected session %+v", s)
	}
}

func TestLoad_StoreError(t *testing.T) {
	ms := &mockStore{getFn: func(context.Context, string) ([]byte, error) {
		return nil, &db.Error{Op: db.OpGet, Err: errors.New("timeout")}
	}}
	r := New(ms, "p:", time.Hour)

	if _, err := r.Load(context.Background(), "s1"); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestLoad_CorruptData(t *testing.T) {
	ms := &mockStore{getFn: func(context.Context, string) ([]byte, error) {
		return []byte("{not json"), nil
	}}
	r := New(ms, "p:", time.Hour)

	if _, err := r.Load(context.Background(), "s1"); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestSave_UsesPrefixAndTTL(t *testing.T) {
	var gotKey string
	var gotTTL time.Duration
	ms := &mockStore{setFn: func(_ context.Context, key string, _ []byte, ttl time.Duration) error {
		gotKey, gotTTL = key, ttl
		return nil
	}}
	r := New(ms, "docfinder:session:", 2*time.Hour)

	if err := r.Save(context.Background(), domsession.New("abc")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "docfinder:session:abc" || gotTTL != 2*time.Hour {
		t.Errorf("unexpected key/ttl %q %s", gotKey, gotTTL)
	}
}

func TestSaveLoad_MemoryRoundTrip(t *testing.T) {
	r := New(NewMemoryStore(10, time.Hour), "p:", time.Hour)
	ctx := context.Background()

	s := domsession.New("s1")
	s.EnterAISearch(4)
	s.SelectSpecialty(2, "Стоматолог")
	s.ApplyHospitalList([]int64{5, 3}, true, 7)
	if err := r.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := r.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.State != domsession.StateAISearching || got.Search.SpecialtyName != "Стоматолог" {
		t.Errorf("unexpected session %+v", got)
	}
	if ids := got.Search.FilteredHospitalIDs; len(ids) != 2 || ids[0] != 5 || ids[1] != 3 {
		t.Errorf("hospital order lost: %v", ids)
	}
	if got.Search.OriginalCount != 7 || !got.Search.FilterApplied {
		t.Errorf("filter state lost: %+v", got.Search)
	}

	if err := r.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	fresh, _ := r.Load(ctx, "s1")
	if fresh.State != domsession.StateIdle {
		t.Errorf("expected fresh session after delete, got %s", fresh.State)
	}
}

func TestMemoryStore_IsolatesCallers(t *testing.T) {
	m := NewMemoryStore(10, time.Hour)
	ctx := context.Background()
	buf := []byte("abc")
	_ = m.SetWithTTL(ctx, "k", buf, 0)
	buf[0] = 'x'

	got, err := m.Get(ctx, "k")
	if err != nil || string(got) != "abc" {
		t.Fatalf("stored value aliased caller buffer: %q %v", got, err)
	}
}

func TestMemoryStore_Expires(t *testing.T) {
	m := NewMemoryStore(10, 20*time.Millisecond)
	ctx := context.Background()
	_ = m.SetWithTTL(ctx, "k", []byte("v"), 0)
	time.Sleep(60 * time.Millisecond)

	if _, err := m.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}
