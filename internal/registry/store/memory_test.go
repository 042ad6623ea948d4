package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"deedbook/internal/registry/models"
	id "deedbook/pkg/domain"
	dErrors "deedbook/pkg/domain-errors"
	"deedbook/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Now()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

// TestIdentifierAllocation verifies ids are dense, 1-based and strictly
// increasing.
func (s *MemoryStoreSuite) TestIdentifierAllocation() {
	s.Run("first id is 1", func() {
		p, err := s.store.CreateProperty(s.ctx, "registrar", "plot one", s.now)
		s.Require().NoError(err)
		s.Equal(id.PropertyID(1), p.ID)
	})

	s.Run("ids advance by one", func() {
		p, err := s.store.CreateProperty(s.ctx, "registrar", "plot two", s.now)
		s.Require().NoError(err)
		s.Equal(id.PropertyID(2), p.ID)

		last, err := s.store.LastID(s.ctx)
		s.Require().NoError(err)
		s.Equal(id.PropertyID(2), last)
	})

	s.Run("failed creation does not advance the counter", func() {
		before, err := s.store.LastID(s.ctx)
		s.Require().NoError(err)

		_, err = s.store.CreateProperty(s.ctx, "registrar", "", s.now)
		s.Require().Error(err)

		after, err := s.store.LastID(s.ctx)
		s.Require().NoError(err)
		s.Equal(before, after)
	})
}

// TestBatchCreation verifies the all-or-nothing batch contract.
func (s *MemoryStoreSuite) TestBatchCreation() {
	s.Run("commits consecutive ids for a valid batch", func() {
		created, err := s.store.CreateProperties(s.ctx, "registrar", []string{"a", "b", "c"}, s.now)
		s.Require().NoError(err)
		s.Require().Len(created, 3)
		for i, p := range created {
			s.Equal(id.PropertyID(i+1), p.ID)
		}
	})

	s.Run("commits nothing when one description is invalid", func() {
		before, err := s.store.LastID(s.ctx)
		s.Require().NoError(err)

		_, err = s.store.CreateProperties(s.ctx, "registrar",
			[]string{"d", strings.Repeat("x", models.MaxDescriptionLen+1), "e"}, s.now)
		s.Require().Error(err)

		after, err := s.store.LastID(s.ctx)
		s.Require().NoError(err)
		s.Equal(before, after)

		_, err = s.store.FindProperty(s.ctx, before+1)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestLookups verifies existence semantics.
func (s *MemoryStoreSuite) TestLookups() {
	s.Run("finds a created property", func() {
		p, err := s.store.CreateProperty(s.ctx, "alice", "lakeside cabin", s.now)
		s.Require().NoError(err)

		found, err := s.store.FindProperty(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(id.Address("alice"), found.Owner)
		s.Equal("lakeside cabin", found.Description)
		s.False(found.Transferred)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.FindProperty(s.ctx, 999)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned records are copies", func() {
		p, err := s.store.CreateProperty(s.ctx, "alice", "copy check", s.now)
		s.Require().NoError(err)

		found, err := s.store.FindProperty(s.ctx, p.ID)
		s.Require().NoError(err)
		found.Owner = "mallory"

		again, err := s.store.FindProperty(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(id.Address("alice"), again.Owner)
	})
}

// TestExecuteProperty verifies the atomic validate-then-mutate contract.
func (s *MemoryStoreSuite) TestExecuteProperty() {
	s.Run("applies mutation after successful validation", func() {
		p, err := s.store.CreateProperty(s.ctx, "alice", "transfer target", s.now)
		s.Require().NoError(err)

		updated, err := s.store.ExecuteProperty(s.ctx, p.ID,
			func(rec *models.Property) error { return rec.CanTransfer() },
			func(rec *models.Property) { rec.ApplyTransfer("bob") },
		)
		s.Require().NoError(err)
		s.Equal(id.Address("bob"), updated.Owner)
		s.True(updated.Transferred)
	})

	s.Run("validation failure leaves the record untouched", func() {
		p, err := s.store.CreateProperty(s.ctx, "alice", "guarded", s.now)
		s.Require().NoError(err)

		_, err = s.store.ExecuteProperty(s.ctx, p.ID,
			func(rec *models.Property) error {
				return dErrors.New(dErrors.CodeInvariantViolation, "nope")
			},
			func(rec *models.Property) { rec.ApplyTransfer("bob") },
		)
		s.Require().Error(err)

		found, err := s.store.FindProperty(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(id.Address("alice"), found.Owner)
		s.False(found.Transferred)
	})

	s.Run("unknown id yields ErrNotFound", func() {
		_, err := s.store.ExecuteProperty(s.ctx, 4242,
			func(rec *models.Property) error { return nil },
			func(rec *models.Property) {},
		)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestAttributes verifies the absent-until-set convention.
func (s *MemoryStoreSuite) TestAttributes() {
	s.Run("unset attributes read as all-nil", func() {
		attrs, err := s.store.Attributes(s.ctx, 55)
		s.Require().NoError(err)
		s.Nil(attrs.Category)
		s.Nil(attrs.Listed)
	})

	s.Run("update overwrites a single field", func() {
		p, err := s.store.CreateProperty(s.ctx, "alice", "attr target", s.now)
		s.Require().NoError(err)

		category := "residential"
		s.Require().NoError(s.store.UpdateAttributes(s.ctx, p.ID, func(a *models.Attributes) {
			a.Category = &category
		}))

		attrs, err := s.store.Attributes(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Require().NotNil(attrs.Category)
		s.Equal("residential", *attrs.Category)
		s.Nil(attrs.Location)
	})
}

// TestLogs verifies key ordering of the append-style tables.
func (s *MemoryStoreSuite) TestLogs() {
	s.Run("maintenance entries order by sequence", func() {
		p, err := s.store.CreateProperty(s.ctx, "alice", "log target", s.now)
		s.Require().NoError(err)

		s.Require().NoError(s.store.UpsertMaintenance(s.ctx, p.ID, models.MaintenanceRecord{Seq: 2, Description: "repaint", Date: "2026-02-01"}))
		s.Require().NoError(s.store.UpsertMaintenance(s.ctx, p.ID, models.MaintenanceRecord{Seq: 1, Description: "roof repair", Date: "2026-01-15"}))

		log, err := s.store.MaintenanceLog(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Require().Len(log, 2)
		s.Equal(uint64(1), log[0].Seq)
		s.Equal(uint64(2), log[1].Seq)
	})

	s.Run("appraisals order by timestamp and upsert by key", func() {
		p, err := s.store.CreateProperty(s.ctx, "alice", "appraisal target", s.now)
		s.Require().NoError(err)

		s.Require().NoError(s.store.UpsertAppraisal(s.ctx, p.ID, models.Appraisal{Timestamp: 200, Value: 90}))
		s.Require().NoError(s.store.UpsertAppraisal(s.ctx, p.ID, models.Appraisal{Timestamp: 100, Value: 80}))
		s.Require().NoError(s.store.UpsertAppraisal(s.ctx, p.ID, models.Appraisal{Timestamp: 200, Value: 95}))

		log, err := s.store.Appraisals(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Require().Len(log, 2)
		s.Equal(uint64(100), log[0].Timestamp)
		s.Equal(uint64(95), log[1].Value)
	})

	s.Run("empty logs for unknown ids", func() {
		log, err := s.store.MaintenanceLog(s.ctx, 777)
		s.Require().NoError(err)
		s.Empty(log)
	})
}

// TestApprovals verifies the allow-list table.
func (s *MemoryStoreSuite) TestApprovals() {
	s.Run("defaults to false", func() {
		approved, err := s.store.TransferApproval(s.ctx, 1, "carol")
		s.Require().NoError(err)
		s.False(approved)
	})

	s.Run("records and revokes approvals", func() {
		s.Require().NoError(s.store.SetTransferApproval(s.ctx, 1, "carol", true))
		approved, err := s.store.TransferApproval(s.ctx, 1, "carol")
		s.Require().NoError(err)
		s.True(approved)

		s.Require().NoError(s.store.SetTransferApproval(s.ctx, 1, "carol", false))
		approved, err = s.store.TransferApproval(s.ctx, 1, "carol")
		s.Require().NoError(err)
		s.False(approved)
	})
}
