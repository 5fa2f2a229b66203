//go:build integration

package dispute_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"peershield/internal/dispute"
	"peershield/internal/jurisdiction"
	id "peershield/pkg/domain"
	"peershield/pkg/platform/sentinel"
	"peershield/pkg/platform/tx"
	"peershield/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	db    *sql.DB
	store *dispute.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	pg := containers.NewPostgresContainer(s.T())

	db, err := sql.Open("postgres", pg.DSN)
	s.Require().NoError(err)
	s.db = db

	s.store = dispute.NewPostgres(db)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.db.ExecContext(context.Background(), "TRUNCATE disputes")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newDispute() *dispute.Dispute {
	d, err := dispute.NewDispute(
		id.DisputeID(uuid.New()), id.PolicyID(uuid.New()), id.ClaimID(uuid.New()),
		id.PartyID(uuid.New()), id.PartyID(uuid.New()),
		800, "USDC",
		[]jurisdiction.Code{jurisdiction.CodeUS},
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	)
	s.Require().NoError(err)
	return d
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	d := s.newDispute()

	s.Require().NoError(s.store.Save(ctx, d))

	found, err := s.store.FindByID(ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(d.ID, found.ID)
	s.Equal(d.Status, found.Status)
	s.Equal(d.Mechanism, found.Mechanism)
	s.Equal(d.Jurisdictions, found.Jurisdictions)
}

func (s *PostgresStoreSuite) TestSaveDuplicate() {
	ctx := context.Background()
	d := s.newDispute()

	s.Require().NoError(s.store.Save(ctx, d))
	s.ErrorIs(s.store.Save(ctx, d), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), id.DisputeID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestExecute() {
	ctx := context.Background()
	d := s.newDispute()
	s.Require().NoError(s.store.Save(ctx, d))

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ref := dispute.EvidenceRef{Hash: "abc", SubmittedBy: d.Initiator, SubmittedAt: now}

	updated, err := s.store.Execute(ctx, d.ID,
		func(d *dispute.Dispute) error { return d.CanAddEvidence(ref.SubmittedBy) },
		func(d *dispute.Dispute) { d.ApplyEvidence(ref, now) },
	)
	s.Require().NoError(err)
	s.Equal(1, updated.Version)
	s.Len(updated.Evidence, 1)

	found, err := s.store.FindByID(ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(1, found.Version)
	s.Len(found.Evidence, 1)
}

func (s *PostgresStoreSuite) TestExecuteValidationFailureLeavesRowUntouched() {
	ctx := context.Background()
	d := s.newDispute()
	s.Require().NoError(s.store.Save(ctx, d))

	stranger := id.PartyID(uuid.New())
	_, err := s.store.Execute(ctx, d.ID,
		func(d *dispute.Dispute) error { return d.CanAddEvidence(stranger) },
		func(d *dispute.Dispute) {},
	)
	s.Require().Error(err)

	found, err := s.store.FindByID(ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(0, found.Version)
	s.Empty(found.Evidence)
}

func (s *PostgresStoreSuite) TestListByParty() {
	ctx := context.Background()
	mine := s.newDispute()
	other := s.newDispute()
	s.Require().NoError(s.store.Save(ctx, mine))
	s.Require().NoError(s.store.Save(ctx, other))

	found, err := s.store.ListByParty(ctx, mine.Initiator)
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(mine.ID, found[0].ID)

	all, err := s.store.All(ctx)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *PostgresStoreSuite) TestAmbientTransactionRollback() {
	ctx := context.Background()
	d := s.newDispute()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	s.Require().NoError(err)
	txCtx := tx.WithTx(ctx, sqlTx)

	s.Require().NoError(s.store.Save(txCtx, d))

	// Visible inside the transaction, gone after rollback.
	_, err = s.store.FindByID(txCtx, d.ID)
	s.Require().NoError(err)

	s.Require().NoError(sqlTx.Rollback())
	_, err = s.store.FindByID(ctx, d.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
