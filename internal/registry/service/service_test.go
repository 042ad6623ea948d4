package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"deedbook/internal/registry/models"
	"deedbook/internal/registry/store"
	id "deedbook/pkg/domain"
	dErrors "deedbook/pkg/domain-errors"
	audit "deedbook/pkg/platform/audit"
)

const (
	admin = id.Address("registrar")
	alice = id.Address("alice")
	bob   = id.Address("bob")
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *capturingPublisher) Emit(_ context.Context, event audit.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturingPublisher) byAction(action audit.AuditEvent) []audit.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []audit.Event
	for _, e := range c.events {
		if e.Action == string(action) {
			out = append(out, e)
		}
	}
	return out
}

type RegistrySuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.InMemory
	audit    *capturingPublisher
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.audit = &capturingPublisher{}

	registry, err := New(s.store, admin, WithAuditPublisher(s.audit))
	s.Require().NoError(err)
	s.registry = registry
}

func (s *RegistrySuite) register(description string) *models.Property {
	p, err := s.registry.Register(s.ctx, admin, description)
	s.Require().NoError(err)
	return p
}

func (s *RegistrySuite) TestNew_Validation() {
	s.Run("requires store", func() {
		_, err := New(nil, admin)
		s.Error(err)
	})
	s.Run("requires administrator", func() {
		_, err := New(store.NewInMemory(), "")
		s.Error(err)
	})
}

func (s *RegistrySuite) TestRegister() {
	s.Run("assigns consecutive ids from one", func() {
		first := s.register("first plot")
		second := s.register("second plot")

		s.Equal(id.PropertyID(1), first.ID)
		s.Equal(id.PropertyID(2), second.ID)
		s.Equal(admin, first.Owner)
		s.False(first.Transferred)
	})

	s.Run("rejects non-admin caller", func() {
		_, err := s.registry.Register(s.ctx, alice, "plot")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects empty description without consuming an id", func() {
		before, err := s.registry.NextID(s.ctx)
		s.Require().NoError(err)

		_, err = s.registry.Register(s.ctx, admin, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		after, err := s.registry.NextID(s.ctx)
		s.Require().NoError(err)
		s.Equal(before, after)
	})

	s.Run("rejects oversize description", func() {
		long := make([]rune, models.MaxDescriptionLen+1)
		for i := range long {
			long[i] = 'x'
		}
		_, err := s.registry.Register(s.ctx, admin, string(long))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("emits a registration event", func() {
		s.register("audited plot")
		s.NotEmpty(s.audit.byAction(audit.EventPropertyRegistered))
	})
}

func (s *RegistrySuite) TestBulkRegister() {
	s.Run("assigns consecutive ids in input order", func() {
		created, err := s.registry.BulkRegister(s.ctx, admin, []string{"a", "b", "c"})
		s.Require().NoError(err)
		s.Require().Len(created, 3)
		for i, p := range created {
			s.Equal(id.PropertyID(i+1), p.ID)
			s.Equal(admin, p.Owner)
		}
	})

	s.Run("rejects non-admin caller", func() {
		_, err := s.registry.BulkRegister(s.ctx, alice, []string{"a"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects empty batch", func() {
		_, err := s.registry.BulkRegister(s.ctx, admin, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects batch above the cap", func() {
		batch := make([]string, MaxBatchSize+1)
		for i := range batch {
			batch[i] = "plot"
		}
		_, err := s.registry.BulkRegister(s.ctx, admin, batch)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("one invalid description commits nothing", func() {
		before, err := s.registry.LastID(s.ctx)
		s.Require().NoError(err)

		_, err = s.registry.BulkRegister(s.ctx, admin, []string{"ok", "", "also ok"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		after, err := s.registry.LastID(s.ctx)
		s.Require().NoError(err)
		s.Equal(before, after)
	})
}

func (s *RegistrySuite) TestAuthorizeOwner() {
	p := s.register("plot")

	s.Run("true for the current owner", func() {
		ok, err := s.registry.AuthorizeOwner(s.ctx, p.ID, admin)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("false for anyone else", func() {
		ok, err := s.registry.AuthorizeOwner(s.ctx, p.ID, alice)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("false for unregistered ids", func() {
		ok, err := s.registry.AuthorizeOwner(s.ctx, 999, admin)
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *RegistrySuite) TestTransfer() {
	s.Run("hands ownership to the recipient and sets the lock", func() {
		p := s.register("plot")

		updated, err := s.registry.Transfer(s.ctx, admin, p.ID, alice)
		s.Require().NoError(err)
		s.Equal(alice, updated.Owner)
		s.True(updated.Transferred)
	})

	s.Run("second transfer fails and ownership sticks with the first recipient", func() {
		p := s.register("plot")
		_, err := s.registry.Transfer(s.ctx, admin, p.ID, alice)
		s.Require().NoError(err)

		_, err = s.registry.Transfer(s.ctx, alice, p.ID, bob)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		current, err := s.registry.Property(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(alice, current.Owner)
	})

	s.Run("rejects non-owner caller", func() {
		p := s.register("plot")
		_, err := s.registry.Transfer(s.ctx, bob, p.ID, alice)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects unregistered ids", func() {
		_, err := s.registry.Transfer(s.ctx, admin, 999, alice)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects empty recipient", func() {
		p := s.register("plot")
		_, err := s.registry.Transfer(s.ctx, admin, p.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("succeeds without any recorded approval", func() {
		p := s.register("plot")

		approved, err := s.registry.IsTransferApproved(s.ctx, p.ID, alice)
		s.Require().NoError(err)
		s.False(approved)

		_, err = s.registry.Transfer(s.ctx, admin, p.ID, alice)
		s.NoError(err)
	})
}

func (s *RegistrySuite) TestFreeze() {
	s.Run("sets the lock without changing the owner", func() {
		p := s.register("plot")

		frozen, err := s.registry.Freeze(s.ctx, admin, p.ID)
		s.Require().NoError(err)
		s.Equal(admin, frozen.Owner)
		s.True(frozen.Transferred)
	})

	s.Run("blocks later transfers", func() {
		p := s.register("plot")
		_, err := s.registry.Freeze(s.ctx, admin, p.ID)
		s.Require().NoError(err)

		_, err = s.registry.Transfer(s.ctx, admin, p.ID, alice)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("is idempotent for the owner", func() {
		p := s.register("plot")
		_, err := s.registry.Freeze(s.ctx, admin, p.ID)
		s.Require().NoError(err)
		_, err = s.registry.Freeze(s.ctx, admin, p.ID)
		s.NoError(err)
	})

	s.Run("rejects non-owner caller", func() {
		p := s.register("plot")
		_, err := s.registry.Freeze(s.ctx, alice, p.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("treats unregistered ids as non-ownership", func() {
		_, err := s.registry.Freeze(s.ctx, admin, 999)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *RegistrySuite) TestTransferApprovals() {
	p := s.register("plot")

	s.Run("owner records and revokes a decision", func() {
		s.Require().NoError(s.registry.ApproveTransfer(s.ctx, admin, p.ID, alice))

		approved, err := s.registry.IsTransferApproved(s.ctx, p.ID, alice)
		s.Require().NoError(err)
		s.True(approved)

		s.Require().NoError(s.registry.RevokeTransferApproval(s.ctx, admin, p.ID, alice))

		approved, err = s.registry.IsTransferApproved(s.ctx, p.ID, alice)
		s.Require().NoError(err)
		s.False(approved)
	})

	s.Run("rejects non-owner caller", func() {
		err := s.registry.ApproveTransfer(s.ctx, bob, p.ID, alice)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects empty candidate", func() {
		err := s.registry.ApproveTransfer(s.ctx, admin, p.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("defaults to false for unknown candidates", func() {
		approved, err := s.registry.IsTransferApproved(s.ctx, p.ID, bob)
		s.Require().NoError(err)
		s.False(approved)
	})
}

func (s *RegistrySuite) TestAttributeSetters() {
	p := s.register("plot")

	s.Run("owner sets and reads back each field", func() {
		s.Require().NoError(s.registry.SetCategory(s.ctx, admin, p.ID, "residential"))
		s.Require().NoError(s.registry.SetLocation(s.ctx, admin, p.ID, "12 Elm St"))
		s.Require().NoError(s.registry.SetValue(s.ctx, admin, p.ID, 500_000))
		s.Require().NoError(s.registry.SetTax(s.ctx, admin, p.ID, 7_500))
		s.Require().NoError(s.registry.SetInsurance(s.ctx, admin, p.ID, true, "Acme Mutual"))
		s.Require().NoError(s.registry.SetOccupancy(s.ctx, admin, p.ID, true))
		s.Require().NoError(s.registry.SetZoning(s.ctx, admin, p.ID, "R-2"))
		s.Require().NoError(s.registry.SetConstructionYear(s.ctx, admin, p.ID, 1978))
		s.Require().NoError(s.registry.SetListed(s.ctx, admin, p.ID, true))

		attrs, err := s.registry.Attributes(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Require().NotNil(attrs.Category)
		s.Equal("residential", *attrs.Category)
		s.Require().NotNil(attrs.Location)
		s.Equal("12 Elm St", *attrs.Location)
		s.Require().NotNil(attrs.Value)
		s.Equal(uint64(500_000), *attrs.Value)
		s.Require().NotNil(attrs.TaxAmount)
		s.Equal(uint64(7_500), *attrs.TaxAmount)
		s.Require().NotNil(attrs.Insurance)
		s.True(attrs.Insurance.Insured)
		s.Equal("Acme Mutual", attrs.Insurance.Provider)
		s.Require().NotNil(attrs.Occupied)
		s.True(*attrs.Occupied)
		s.Require().NotNil(attrs.Zoning)
		s.Equal("R-2", *attrs.Zoning)
		s.Require().NotNil(attrs.ConstructionYear)
		s.Equal(uint16(1978), *attrs.ConstructionYear)
		s.Require().NotNil(attrs.Listed)
		s.True(*attrs.Listed)
	})

	s.Run("non-owner write leaves the stored value unchanged", func() {
		s.Require().NoError(s.registry.SetCategory(s.ctx, admin, p.ID, "residential"))

		err := s.registry.SetCategory(s.ctx, alice, p.ID, "industrial")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		attrs, err := s.registry.Attributes(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Require().NotNil(attrs.Category)
		s.Equal("residential", *attrs.Category)
	})

	s.Run("rejects empty text", func() {
		err := s.registry.SetZoning(s.ctx, admin, p.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects unregistered ids as non-ownership", func() {
		err := s.registry.SetLocation(s.ctx, admin, 999, "nowhere")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("gate follows the current owner after transfer", func() {
		q := s.register("second plot")
		_, err := s.registry.Transfer(s.ctx, admin, q.ID, alice)
		s.Require().NoError(err)

		err = s.registry.SetOccupancy(s.ctx, admin, q.ID, false)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		s.NoError(s.registry.SetOccupancy(s.ctx, alice, q.ID, false))
	})
}

func (s *RegistrySuite) TestMaintenanceLog() {
	p := s.register("plot")

	s.Run("entries come back ordered by sequence", func() {
		s.Require().NoError(s.registry.AppendMaintenance(s.ctx, admin, p.ID,
			models.MaintenanceRecord{Seq: 2, Description: "roof repair", Date: "2026-03-01"}))
		s.Require().NoError(s.registry.AppendMaintenance(s.ctx, admin, p.ID,
			models.MaintenanceRecord{Seq: 1, Description: "inspection", Date: "2026-01-15"}))

		log, err := s.registry.MaintenanceLog(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Require().Len(log, 2)
		s.Equal(uint64(1), log[0].Seq)
		s.Equal(uint64(2), log[1].Seq)
	})

	s.Run("same sequence overwrites in place", func() {
		s.Require().NoError(s.registry.AppendMaintenance(s.ctx, admin, p.ID,
			models.MaintenanceRecord{Seq: 1, Description: "re-inspection", Date: "2026-02-01"}))

		log, err := s.registry.MaintenanceLog(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal("re-inspection", log[0].Description)
	})

	s.Run("rejects incomplete records", func() {
		err := s.registry.AppendMaintenance(s.ctx, admin, p.ID,
			models.MaintenanceRecord{Seq: 3, Description: "", Date: "2026-04-01"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects non-owner caller", func() {
		err := s.registry.AppendMaintenance(s.ctx, alice, p.ID,
			models.MaintenanceRecord{Seq: 4, Description: "vandalism", Date: "2026-05-01"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *RegistrySuite) TestAppraisals() {
	p := s.register("plot")

	s.Run("entries come back ordered by timestamp", func() {
		s.Require().NoError(s.registry.AppendAppraisal(s.ctx, admin, p.ID,
			models.Appraisal{Timestamp: 200, Value: 520_000}))
		s.Require().NoError(s.registry.AppendAppraisal(s.ctx, admin, p.ID,
			models.Appraisal{Timestamp: 100, Value: 480_000}))

		log, err := s.registry.Appraisals(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Require().Len(log, 2)
		s.Equal(uint64(100), log[0].Timestamp)
		s.Equal(uint64(200), log[1].Timestamp)
	})

	s.Run("rejects non-owner caller", func() {
		err := s.registry.AppendAppraisal(s.ctx, bob, p.ID, models.Appraisal{Timestamp: 300, Value: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *RegistrySuite) TestPredicates() {
	p := s.register("plot")

	s.Run("existence", func() {
		ok, err := s.registry.Exists(s.ctx, p.ID)
		s.Require().NoError(err)
		s.True(ok)

		ok, err = s.registry.Exists(s.ctx, 999)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("transfer state", func() {
		transferred, err := s.registry.IsTransferred(s.ctx, p.ID)
		s.Require().NoError(err)
		s.False(transferred)

		can, err := s.registry.CanTransfer(s.ctx, p.ID)
		s.Require().NoError(err)
		s.True(can)

		_, err = s.registry.Transfer(s.ctx, admin, p.ID, alice)
		s.Require().NoError(err)

		transferred, err = s.registry.IsTransferred(s.ctx, p.ID)
		s.Require().NoError(err)
		s.True(transferred)

		can, err = s.registry.CanTransfer(s.ctx, p.ID)
		s.Require().NoError(err)
		s.False(can)
	})

	s.Run("unregistered ids read as not transferable", func() {
		transferred, err := s.registry.IsTransferred(s.ctx, 999)
		s.Require().NoError(err)
		s.False(transferred)

		can, err := s.registry.CanTransfer(s.ctx, 999)
		s.Require().NoError(err)
		s.False(can)
	})

	s.Run("counters", func() {
		last, err := s.registry.LastID(s.ctx)
		s.Require().NoError(err)
		s.Equal(id.PropertyID(1), last)

		next, err := s.registry.NextID(s.ctx)
		s.Require().NoError(err)
		s.Equal(id.PropertyID(2), next)

		count, err := s.registry.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(1), count)
	})

	s.Run("range validity", func() {
		s.register("second")
		s.register("third")

		cases := []struct {
			name   string
			lo, hi id.PropertyID
			want   bool
		}{
			{"full range", 1, 3, true},
			{"single id", 2, 2, true},
			{"zero low bound", 0, 2, false},
			{"inverted", 3, 1, false},
			{"past last id", 2, 4, false},
		}
		for _, tc := range cases {
			s.Run(tc.name, func() {
				ok, err := s.registry.IsValidRange(s.ctx, tc.lo, tc.hi)
				s.Require().NoError(err)
				s.Equal(tc.want, ok)
			})
		}
	})
}

func (s *RegistrySuite) TestSnapshot() {
	s.Run("aggregates ledger record and side tables", func() {
		p := s.register("plot")
		s.Require().NoError(s.registry.SetCategory(s.ctx, admin, p.ID, "residential"))
		s.Require().NoError(s.registry.AppendMaintenance(s.ctx, admin, p.ID,
			models.MaintenanceRecord{Seq: 1, Description: "inspection", Date: "2026-01-15"}))
		s.Require().NoError(s.registry.AppendAppraisal(s.ctx, admin, p.ID,
			models.Appraisal{Timestamp: 100, Value: 480_000}))

		snap, err := s.registry.Snapshot(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(p.ID, snap.Property.ID)
		s.Require().NotNil(snap.Attributes.Category)
		s.Equal("residential", *snap.Attributes.Category)
		s.Len(snap.Maintenance, 1)
		s.Len(snap.Appraisals, 1)
	})

	s.Run("not found for unregistered ids", func() {
		_, err := s.registry.Snapshot(s.ctx, 999)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
