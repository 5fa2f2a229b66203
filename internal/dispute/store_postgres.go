package dispute

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	id "peershield/pkg/domain"
	"peershield/pkg/platform/sentinel"
	"peershield/pkg/platform/tx"
)

// PostgresStore persists disputes in PostgreSQL. The dispute document is
// stored as JSONB with the fields the store itself needs (parties, version)
// extracted into columns; transitions use optimistic concurrency on the
// version column rather than row locks.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the ambient transaction when the caller opened one, the pool
// otherwise.
func (s *PostgresStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const createDisputesTable = `
CREATE TABLE IF NOT EXISTS disputes (
	id         UUID PRIMARY KEY,
	initiator  UUID NOT NULL,
	respondent UUID NOT NULL,
	status     TEXT NOT NULL,
	version    INTEGER NOT NULL,
	document   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS disputes_initiator_idx ON disputes (initiator);
CREATE INDEX IF NOT EXISTS disputes_respondent_idx ON disputes (respondent)`

// Migrate creates the disputes table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createDisputesTable)
	return err
}

func (s *PostgresStore) Save(ctx context.Context, d *Dispute) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dispute: %w", err)
	}

	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO disputes (id, initiator, respondent, status, version, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		uuid.UUID(d.ID), uuid.UUID(d.Initiator), uuid.UUID(d.Respondent),
		string(d.Status), d.Version, doc, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dispute: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert dispute: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, disputeID id.DisputeID) (*Dispute, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT document, version FROM disputes WHERE id = $1`, uuid.UUID(disputeID))
	return scanDispute(row)
}

func (s *PostgresStore) ListByParty(ctx context.Context, partyID id.PartyID) ([]*Dispute, error) {
	return s.list(ctx, `
		SELECT document, version FROM disputes
		WHERE initiator = $1 OR respondent = $1
		ORDER BY created_at`, uuid.UUID(partyID))
}

func (s *PostgresStore) All(ctx context.Context) ([]*Dispute, error) {
	return s.list(ctx, `SELECT document, version FROM disputes ORDER BY created_at`)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Dispute, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list disputes: %w", err)
	}
	defer rows.Close()

	var out []*Dispute
	for rows.Next() {
		var (
			doc     []byte
			version int
		)
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("scan dispute: %w", err)
		}
		d, err := unmarshalDispute(doc, version)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Execute loads the dispute, runs validate-then-mutate, and commits only if
// the version is unchanged since the read. A lost race surfaces as
// sentinel.ErrConflict for the caller's retry policy.
func (s *PostgresStore) Execute(ctx context.Context, disputeID id.DisputeID, validate func(*Dispute) error, mutate func(*Dispute)) (*Dispute, error) {
	d, err := s.FindByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	readVersion := d.Version
	if err := validate(d); err != nil {
		return nil, err
	}
	mutate(d)
	d.Version++

	doc, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal dispute: %w", err)
	}

	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE disputes
		SET status = $3, version = $4, document = $5, updated_at = $6
		WHERE id = $1 AND version = $2`,
		uuid.UUID(d.ID), readVersion, string(d.Status), d.Version, doc, d.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update dispute: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update dispute: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrConflict
	}
	return d, nil
}

func scanDispute(row *sql.Row) (*Dispute, error) {
	var (
		doc     []byte
		version int
	)
	if err := row.Scan(&doc, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan dispute: %w", err)
	}
	return unmarshalDispute(doc, version)
}

func unmarshalDispute(doc []byte, version int) (*Dispute, error) {
	var d Dispute
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("unmarshal dispute: %w", err)
	}
	d.Version = version
	return &d, nil
}
