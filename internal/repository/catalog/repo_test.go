package catalog

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/docfinder/internal/db/postgres"
	"github.com/kailas-cloud/docfinder/internal/domain"
	"github.com/kailas-cloud/docfinder/internal/domain/catalog"
)

// openTestDB connects to DOCFINDER_TEST_DSN, migrates and seeds a fresh catalog.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DOCFINDER_TEST_DSN")
	if dsn == "" {
		t.Skip("DOCFINDER_TEST_DSN not set")
	}
	conn, err := postgres.Open(postgres.Config{DSN: dsn, MaxOpenConns: 2})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	ctx := context.Background()
	if err := postgres.WaitForReady(ctx, conn, 5*time.Second); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if err := postgres.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	seed := `
TRUNCATE doctor_reviews, doctor_work_placements, doctors, hospital_addresses, addresses, hospitals, specialties RESTART IDENTITY CASCADE;
INSERT INTO specialties (id, name) VALUES (1, 'Терапевт'), (2, 'Стоматолог');
INSERT INTO hospitals (id, name) VALUES (1, 'Городская больница №1'), (2, 'Стоматология Улыбка'), (3, 'Без адреса');
INSERT INTO addresses (id, full_address) VALUES (1, 'г. Калуга, ул. Ленина, 1'), (2, 'г. Калуга, ул. Кирова, 5');
INSERT INTO hospital_addresses (hospital_id, address_id) VALUES (1, 1), (2, 2);
INSERT INTO doctors (id, full_name) VALUES (1, 'Иванов Иван'), (2, 'Петрова Анна'), (3, 'Сидоров Пётр');
INSERT INTO doctor_work_placements (doctor_id, hospital_id, specialty_id) VALUES (1, 1, 1), (2, 1, 1), (3, 2, 2), (3, 3, 2);`
	if _, err := conn.ExecContext(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return conn
}

func TestRepo_ListSpecialties(t *testing.T) {
	r := New(openTestDB(t))
	page, err := r.ListSpecialties(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 || page.Items[0].Name != "Стоматолог" {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestRepo_ListHospitalsBySpecialty(t *testing.T) {
	r := New(openTestDB(t))
	ctx := context.Background()

	page, err := r.ListHospitals(ctx, 2, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 hospitals, got %+v", page.Items)
	}
	for _, h := range page.Items {
		if h.ID == 3 && h.HasAddress() {
			t.Errorf("hospital without address got %q", h.Address)
		}
		if h.ID == 2 && !strings.Contains(h.Address, "Кирова") {
			t.Errorf("unexpected address %q", h.Address)
		}
	}

	all, err := r.ListHospitals(ctx, 0, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if all.Total != 3 {
		t.Errorf("expected 3 hospitals unfiltered, got %d", all.Total)
	}
}

func TestRepo_ListDoctors(t *testing.T) {
	r := New(openTestDB(t))
	page, err := r.ListDoctors(context.Background(), 1, 1, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].Name != "Иванов Иван" {
		t.Fatalf("unexpected doctors %+v", page.Items)
	}
	if page.Items[0].SpecialtyName != "Терапевт" || page.Items[0].HospitalName != "Городская больница №1" {
		t.Errorf("unexpected placement %+v", page.Items[0])
	}
}

func TestRepo_GetDoctor(t *testing.T) {
	r := New(openTestDB(t))
	ctx := context.Background()

	d, err := r.GetDoctor(ctx, 3, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Address != "г. Калуга, ул. Кирова, 5" || d.SpecialtyName != "Стоматолог" {
		t.Errorf("unexpected doctor %+v", d)
	}

	if _, err := r.GetDoctor(ctx, 1, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepo_Reviews(t *testing.T) {
	r := New(openTestDB(t))
	ctx := context.Background()

	first, _ := catalog.NewReview(1, 1, "Иван", "Первый отзыв о враче")
	second, _ := catalog.NewReview(1, 1, "", "Второй отзыв о враче")
	for _, rv := range []catalog.Review{first, second} {
		if _, err := r.CreateReview(ctx, rv); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := r.ListReviews(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Text() != "Второй отзыв о враче" {
		t.Fatalf("expected newest first, got %d reviews", len(got))
	}
	if got[0].UserName() != catalog.AnonymousAuthor {
		t.Errorf("unexpected author %q", got[0].UserName())
	}
}

func TestRepo_CreateReviewStorageError(t *testing.T) {
	r := New(openTestDB(t))
	rv, _ := catalog.NewReview(999, 999, "Иван", "Отзыв о несуществующем враче")
	if _, err := r.CreateReview(context.Background(), rv); !errors.Is(err, domain.ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}
