//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"deedbook/internal/registry/models"
	"deedbook/internal/registry/store"
	id "deedbook/pkg/domain"
	dErrors "deedbook/pkg/domain-errors"
	"deedbook/pkg/platform/sentinel"
	"deedbook/pkg/testutil/containers"
)

const testOwner = id.Address("registrar")

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	ctx := context.Background()
	_ = s.postgres.DB.Close()
	_ = s.postgres.Container.Terminate(ctx)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	// Truncate in dependency order, then rewind the id counter.
	err := s.postgres.TruncateTables(ctx,
		"transfer_approvals", "appraisals", "maintenance_log", "property_attributes", "properties")
	s.Require().NoError(err)
	_, err = s.postgres.DB.ExecContext(ctx, `UPDATE registry_counter SET last_id = 0 WHERE id = 1`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	p, err := s.store.CreateProperty(ctx, testOwner, "first plot", now)
	s.Require().NoError(err)
	s.Equal(id.PropertyID(1), p.ID)

	found, err := s.store.FindProperty(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(testOwner, found.Owner)
	s.Equal("first plot", found.Description)
	s.False(found.Transferred)
	s.WithinDuration(now, found.CreatedAt, time.Millisecond)

	_, err = s.store.FindProperty(ctx, 999)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestBatchIsAllOrNothing() {
	ctx := context.Background()

	_, err := s.store.CreateProperties(ctx, testOwner, []string{"ok", ""}, time.Now())
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	last, err := s.store.LastID(ctx)
	s.Require().NoError(err)
	s.Equal(id.PropertyID(0), last)

	created, err := s.store.CreateProperties(ctx, testOwner, []string{"a", "b", "c"}, time.Now())
	s.Require().NoError(err)
	s.Require().Len(created, 3)
	s.Equal(id.PropertyID(1), created[0].ID)
	s.Equal(id.PropertyID(3), created[2].ID)
}

// TestConcurrentRegistrations verifies the counter row lock keeps ids dense
// under parallel writers.
func (s *PostgresStoreSuite) TestConcurrentRegistrations() {
	ctx := context.Background()
	const writers = 20

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.CreateProperty(ctx, testOwner, "plot", time.Now())
			s.NoError(err)
		}()
	}
	wg.Wait()

	last, err := s.store.LastID(ctx)
	s.Require().NoError(err)
	s.Equal(id.PropertyID(writers), last)

	for i := 1; i <= writers; i++ {
		_, err := s.store.FindProperty(ctx, id.PropertyID(i))
		s.NoError(err)
	}
}

func (s *PostgresStoreSuite) TestExecuteProperty() {
	ctx := context.Background()
	p, err := s.store.CreateProperty(ctx, testOwner, "plot", time.Now())
	s.Require().NoError(err)

	s.Run("validate failure leaves the row unchanged", func() {
		wantErr := dErrors.New(dErrors.CodeConflict, "nope")
		_, err := s.store.ExecuteProperty(ctx, p.ID,
			func(*models.Property) error { return wantErr },
			func(rec *models.Property) { rec.ApplyFreeze() },
		)
		s.ErrorIs(err, wantErr)

		found, err := s.store.FindProperty(ctx, p.ID)
		s.Require().NoError(err)
		s.False(found.Transferred)
	})

	s.Run("mutation persists", func() {
		updated, err := s.store.ExecuteProperty(ctx, p.ID,
			func(*models.Property) error { return nil },
			func(rec *models.Property) { rec.ApplyTransfer("alice") },
		)
		s.Require().NoError(err)
		s.Equal(id.Address("alice"), updated.Owner)

		found, err := s.store.FindProperty(ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(id.Address("alice"), found.Owner)
		s.True(found.Transferred)
	})

	s.Run("unknown id reports not found", func() {
		_, err := s.store.ExecuteProperty(ctx, 999,
			func(*models.Property) error { return nil },
			func(*models.Property) {},
		)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestAttributes() {
	ctx := context.Background()
	p, err := s.store.CreateProperty(ctx, testOwner, "plot", time.Now())
	s.Require().NoError(err)

	s.Run("absent until first write", func() {
		attrs, err := s.store.Attributes(ctx, p.ID)
		s.Require().NoError(err)
		s.Nil(attrs.Category)
		s.Nil(attrs.Value)
		s.Nil(attrs.Insurance)
	})

	s.Run("writes persist independently", func() {
		err := s.store.UpdateAttributes(ctx, p.ID, func(a *models.Attributes) {
			category := "residential"
			a.Category = &category
		})
		s.Require().NoError(err)

		err = s.store.UpdateAttributes(ctx, p.ID, func(a *models.Attributes) {
			value := uint64(500_000)
			a.Value = &value
			a.Insurance = &models.Insurance{Insured: true, Provider: "Acme Mutual"}
		})
		s.Require().NoError(err)

		attrs, err := s.store.Attributes(ctx, p.ID)
		s.Require().NoError(err)
		s.Require().NotNil(attrs.Category)
		s.Equal("residential", *attrs.Category)
		s.Require().NotNil(attrs.Value)
		s.Equal(uint64(500_000), *attrs.Value)
		s.Require().NotNil(attrs.Insurance)
		s.Equal("Acme Mutual", attrs.Insurance.Provider)
	})
}

func (s *PostgresStoreSuite) TestLogsAndApprovals() {
	ctx := context.Background()
	p, err := s.store.CreateProperty(ctx, testOwner, "plot", time.Now())
	s.Require().NoError(err)

	s.Run("maintenance log ordered by sequence", func() {
		s.Require().NoError(s.store.UpsertMaintenance(ctx, p.ID,
			models.MaintenanceRecord{Seq: 2, Description: "roof repair", Date: "2026-03-01"}))
		s.Require().NoError(s.store.UpsertMaintenance(ctx, p.ID,
			models.MaintenanceRecord{Seq: 1, Description: "inspection", Date: "2026-01-15"}))

		log, err := s.store.MaintenanceLog(ctx, p.ID)
		s.Require().NoError(err)
		s.Require().Len(log, 2)
		s.Equal(uint64(1), log[0].Seq)
		s.Equal(uint64(2), log[1].Seq)
	})

	s.Run("appraisals ordered by timestamp", func() {
		s.Require().NoError(s.store.UpsertAppraisal(ctx, p.ID, models.Appraisal{Timestamp: 200, Value: 2}))
		s.Require().NoError(s.store.UpsertAppraisal(ctx, p.ID, models.Appraisal{Timestamp: 100, Value: 1}))

		log, err := s.store.Appraisals(ctx, p.ID)
		s.Require().NoError(err)
		s.Require().Len(log, 2)
		s.Equal(uint64(100), log[0].Timestamp)
	})

	s.Run("approvals round trip", func() {
		approved, err := s.store.TransferApproval(ctx, p.ID, "alice")
		s.Require().NoError(err)
		s.False(approved)

		s.Require().NoError(s.store.SetTransferApproval(ctx, p.ID, "alice", true))
		approved, err = s.store.TransferApproval(ctx, p.ID, "alice")
		s.Require().NoError(err)
		s.True(approved)

		s.Require().NoError(s.store.SetTransferApproval(ctx, p.ID, "alice", false))
		approved, err = s.store.TransferApproval(ctx, p.ID, "alice")
		s.Require().NoError(err)
		s.False(approved)
	})
}
