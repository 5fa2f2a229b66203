package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "peershield/pkg/domain"
	"peershield/pkg/platform/sentinel"
)

// PostgresStore persists sandbox registrations in Postgres. Limitations and
// the reporting schedule are stored as JSONB since they are read and written
// whole.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const createRegistrationsTable = `
CREATE TABLE IF NOT EXISTS sandbox_registrations (
	id          UUID PRIMARY KEY,
	program     TEXT NOT NULL,
	start_date  TIMESTAMPTZ NOT NULL,
	end_date    TIMESTAMPTZ NOT NULL,
	status      TEXT NOT NULL,
	limitations JSONB NOT NULL,
	reporting   JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
)`

// Migrate creates the registrations table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, createRegistrationsTable)
	return err
}

func (s *PostgresStore) Save(ctx context.Context, reg *Registration) error {
	limitations, reporting, err := marshalRegistration(reg)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO sandbox_registrations (id, program, start_date, end_date, status, limitations, reporting, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		uuid.UUID(reg.ID), string(reg.Program), reg.StartDate, reg.EndDate, string(reg.Status),
		limitations, reporting, reg.CreatedAt, reg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sandbox registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, regID id.RegistrationID) (*Registration, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, program, start_date, end_date, status, limitations, reporting, created_at, updated_at
		FROM sandbox_registrations
		WHERE id = $1`, uuid.UUID(regID),
	)
	reg, err := scanRegistration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return reg, err
}

func (s *PostgresStore) List(ctx context.Context) ([]*Registration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, program, start_date, end_date, status, limitations, reporting, created_at, updated_at
		FROM sandbox_registrations
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list sandbox registrations: %w", err)
	}
	defer rows.Close()

	var regs []*Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, reg *Registration) error {
	limitations, reporting, err := marshalRegistration(reg)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE sandbox_registrations
		SET status = $2, limitations = $3, reporting = $4, updated_at = $5
		WHERE id = $1`,
		uuid.UUID(reg.ID), string(reg.Status), limitations, reporting, reg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update sandbox registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func marshalRegistration(reg *Registration) (limitations, reporting []byte, err error) {
	limitations, err = json.Marshal(reg.Limitations)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal limitations: %w", err)
	}
	reporting, err = json.Marshal(reg.Reporting)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal reporting schedule: %w", err)
	}
	return limitations, reporting, nil
}

func scanRegistration(row pgx.Row) (*Registration, error) {
	var (
		reg         Registration
		rawID       uuid.UUID
		program     string
		status      string
		limitations []byte
		reporting   []byte
	)
	if err := row.Scan(&rawID, &program, &reg.StartDate, &reg.EndDate, &status, &limitations, &reporting, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
		return nil, err
	}
	reg.ID = id.RegistrationID(rawID)
	reg.Program = ProgramID(program)
	reg.Status = Status(status)
	if err := json.Unmarshal(limitations, &reg.Limitations); err != nil {
		return nil, fmt.Errorf("unmarshal limitations: %w", err)
	}
	if err := json.Unmarshal(reporting, &reg.Reporting); err != nil {
		return nil, fmt.Errorf("unmarshal reporting schedule: %w", err)
	}
	return &reg, nil
}
