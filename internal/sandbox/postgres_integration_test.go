//go:build integration

package sandbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"peershield/internal/sandbox"
	id "peershield/pkg/domain"
	"peershield/pkg/platform/sentinel"
	"peershield/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pool  *pgxpool.Pool
	store *sandbox.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(s.T())

	pool, err := pgxpool.New(ctx, pg.DSN)
	s.Require().NoError(err)
	s.pool = pool

	s.store = sandbox.NewPostgresStore(pool)
	s.Require().NoError(s.store.Migrate(ctx))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), "TRUNCATE sandbox_registrations")
	s.Require().NoError(err)
}

func newTestRegistration(s *PostgresStoreSuite) *sandbox.Registration {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	reg, err := sandbox.NewRegistration(
		id.RegistrationID(uuid.New()), sandbox.EUDLTPilot,
		now, now.AddDate(0, 6, 0), now,
	)
	s.Require().NoError(err)
	return reg
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	reg := newTestRegistration(s)

	s.Require().NoError(s.store.Save(ctx, reg))

	got, err := s.store.FindByID(ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(reg.ID, got.ID)
	s.Equal(reg.Program, got.Program)
	s.Equal(reg.Limitations, got.Limitations)
	s.Len(got.Reporting, 2)
}

func (s *PostgresStoreSuite) TestSaveDuplicate() {
	ctx := context.Background()
	reg := newTestRegistration(s)

	s.Require().NoError(s.store.Save(ctx, reg))
	s.ErrorIs(s.store.Save(ctx, reg), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestUpdate() {
	ctx := context.Background()
	reg := newTestRegistration(s)
	s.Require().NoError(s.store.Save(ctx, reg))

	reg.ApplyRevocation(reg.UpdatedAt.Add(time.Hour))
	s.Require().NoError(s.store.Update(ctx, reg))

	got, err := s.store.FindByID(ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(sandbox.StatusRevoked, got.Status)
}

func (s *PostgresStoreSuite) TestUpdateMissing() {
	reg := newTestRegistration(s)
	s.ErrorIs(s.store.Update(context.Background(), reg), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), id.RegistrationID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestList() {
	ctx := context.Background()
	first := newTestRegistration(s)
	second := newTestRegistration(s)
	s.Require().NoError(s.store.Save(ctx, first))
	s.Require().NoError(s.store.Save(ctx, second))

	regs, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(regs, 2)
}
