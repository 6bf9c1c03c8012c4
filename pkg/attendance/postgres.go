package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS attendance (
	id          UUID PRIMARY KEY,
	employee_id INTEGER NOT NULL,
	start_time  TIMESTAMPTZ NOT NULL DEFAULT now(),
	end_time    TIMESTAMPTZ
)`

// PostgresStore keeps records in the attendance table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and creates the attendance
// table if it does not exist.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create attendance table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, employeeID int) (Record, error) {
	rec := Record{
		ID:         uuid.New(),
		EmployeeID: employeeID,
		Start:      time.Now().Truncate(time.Second),
	}

	_, err := s.pool.Exec(ctx,
		"INSERT INTO attendance (id, employee_id, start_time) VALUES ($1, $2, $3)",
		rec.ID, rec.EmployeeID, rec.Start)
	if err != nil {
		return Record{}, fmt.Errorf("failed to insert attendance: %w", err)
	}

	return rec, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	var rec Record
	err := s.pool.QueryRow(ctx,
		"SELECT id, employee_id, start_time, end_time FROM attendance WHERE id = $1",
		id).Scan(&rec.ID, &rec.EmployeeID, &rec.Start, &rec.End)

	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	} else if err != nil {
		return Record{}, fmt.Errorf("failed to query attendance: %w", err)
	}

	return rec, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
