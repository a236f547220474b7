package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgxpool.Pool the collector needs; tests substitute
// a mock.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrSalonNotFound indicates the salon id does not exist.
var ErrSalonNotFound = errors.New("catalog: salon not found")

// PostgresCollector reads the catalog snapshot straight from Postgres. The
// data changes rarely; per-turn reads keep the engine stateless.
type PostgresCollector struct {
	pool querier
}

var _ Collector = (*PostgresCollector)(nil)

// NewPostgresCollector builds a collector over the given pool.
func NewPostgresCollector(pool *pgxpool.Pool) *PostgresCollector {
	if pool == nil {
		panic("catalog: pgx pool required")
	}
	return &PostgresCollector{pool: pool}
}

func newPostgresCollectorWithQuerier(q querier) *PostgresCollector {
	if q == nil {
		panic("catalog: querier required")
	}
	return &PostgresCollector{pool: q}
}

// Collect loads salon, services and professionals in three reads.
func (c *PostgresCollector) Collect(ctx context.Context, salonID string) (Snapshot, error) {
	var snap Snapshot

	err := c.pool.QueryRow(ctx,
		`SELECT id, name FROM salons WHERE id = $1`,
		salonID,
	).Scan(&snap.Salon.ID, &snap.Salon.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrSalonNotFound
		}
		return Snapshot{}, fmt.Errorf("catalog: failed to load salon: %w", err)
	}

	rows, err := c.pool.Query(ctx, `
		SELECT id, name, duration_min, price_cents
		FROM services
		WHERE salon_id = $1 AND active
		ORDER BY name
	`, salonID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("catalog: failed to load services: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.DurationMin, &svc.PriceCents); err != nil {
			return Snapshot{}, fmt.Errorf("catalog: failed to scan service: %w", err)
		}
		snap.Services = append(snap.Services, svc)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("catalog: failed reading services: %w", err)
	}

	profRows, err := c.pool.Query(ctx, `
		SELECT id, name
		FROM professionals
		WHERE salon_id = $1 AND active
		ORDER BY name
	`, salonID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("catalog: failed to load professionals: %w", err)
	}
	defer profRows.Close()
	for profRows.Next() {
		var p Professional
		if err := profRows.Scan(&p.ID, &p.Name); err != nil {
			return Snapshot{}, fmt.Errorf("catalog: failed to scan professional: %w", err)
		}
		snap.Professionals = append(snap.Professionals, p)
	}
	if err := profRows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("catalog: failed reading professionals: %w", err)
	}

	return snap, nil
}
