package catalog

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestCollectSnapshot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, name FROM salons`).
		WithArgs("salon-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow("salon-1", "Studio Bella"))

	mock.ExpectQuery(`SELECT id, name, duration_min, price_cents`).
		WithArgs("salon-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "duration_min", "price_cents"}).
			AddRow("svc-1", "Coloração", 120, 25000).
			AddRow("svc-2", "Corte", 45, 8000))

	mock.ExpectQuery(`SELECT id, name\s+FROM professionals`).
		WithArgs("salon-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).
			AddRow("pro-1", "Ana"))

	c := newPostgresCollectorWithQuerier(mock)
	snap, err := c.Collect(context.Background(), "salon-1")
	if err != nil {
		t.Fatalf("Collect errored: %v", err)
	}

	if snap.Salon.Name != "Studio Bella" {
		t.Fatalf("unexpected salon: %+v", snap.Salon)
	}
	if len(snap.Services) != 2 || snap.Services[1].PriceCents != 8000 {
		t.Fatalf("unexpected services: %+v", snap.Services)
	}
	if len(snap.Professionals) != 1 || snap.Professionals[0].Name != "Ana" {
		t.Fatalf("unexpected professionals: %+v", snap.Professionals)
	}

	if svc := snap.ServiceByID("svc-1"); svc == nil || svc.DurationMin != 120 {
		t.Fatalf("ServiceByID lookup failed: %+v", svc)
	}
	if svc := snap.ServiceByID("missing"); svc != nil {
		t.Fatalf("unknown id should return nil, got %+v", svc)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCollectSalonNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, name FROM salons`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}))

	c := newPostgresCollectorWithQuerier(mock)
	if _, err := c.Collect(context.Background(), "ghost"); err != ErrSalonNotFound {
		t.Fatalf("expected ErrSalonNotFound, got %v", err)
	}
}
