package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"deedbook/internal/registry/models"
	id "deedbook/pkg/domain"
	"deedbook/pkg/platform/sentinel"
)

type approvalKey struct {
	property  id.PropertyID
	candidate id.Address
}

// InMemory implements Store with plain maps under one RWMutex. The mutex is
// the substrate's single serialization point, so multi-write operations are
// trivially atomic.
type InMemory struct {
	mu          sync.RWMutex
	lastID      id.PropertyID
	properties  map[id.PropertyID]*models.Property
	attributes  map[id.PropertyID]*models.Attributes
	maintenance map[id.PropertyID]map[uint64]models.MaintenanceRecord
	appraisals  map[id.PropertyID]map[uint64]models.Appraisal
	approvals   map[approvalKey]bool
}

// NewInMemory creates an empty in-memory registry store.
func NewInMemory() *InMemory {
	return &InMemory{
		properties:  make(map[id.PropertyID]*models.Property),
		attributes:  make(map[id.PropertyID]*models.Attributes),
		maintenance: make(map[id.PropertyID]map[uint64]models.MaintenanceRecord),
		appraisals:  make(map[id.PropertyID]map[uint64]models.Appraisal),
		approvals:   make(map[approvalKey]bool),
	}
}

func (s *InMemory) LastID(ctx context.Context) (id.PropertyID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastID, nil
}

func (s *InMemory) CreateProperty(ctx context.Context, owner id.Address, description string, now time.Time) (*models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(owner, description, now)
}

func (s *InMemory) CreateProperties(ctx context.Context, owner id.Address, descriptions []string, now time.Time) ([]*models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]*models.Property, 0, len(descriptions))
	for _, description := range descriptions {
		p, err := s.createLocked(owner, description, now)
		if err != nil {
			// Roll back the batch: nothing committed below lastID rewind.
			for _, c := range created {
				delete(s.properties, c.ID)
			}
			if len(created) > 0 {
				s.lastID = created[0].ID - 1
			}
			return nil, err
		}
		created = append(created, p)
	}
	return created, nil
}

// createLocked advances the counter and mints the record. Must be called
// while holding s.mu.
func (s *InMemory) createLocked(owner id.Address, description string, now time.Time) (*models.Property, error) {
	next := s.lastID + 1
	p, err := models.NewProperty(next, owner, description, now)
	if err != nil {
		return nil, err
	}
	s.lastID = next
	s.properties[next] = p
	return cloneProperty(p), nil
}

func (s *InMemory) FindProperty(ctx context.Context, propertyID id.PropertyID) (*models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.properties[propertyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneProperty(p), nil
}

func (s *InMemory) ExecuteProperty(ctx context.Context, propertyID id.PropertyID,
	validate func(*models.Property) error,
	mutate func(*models.Property)) (*models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.properties[propertyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	mutate(p)
	return cloneProperty(p), nil
}

func (s *InMemory) Attributes(ctx context.Context, propertyID id.PropertyID) (*models.Attributes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attrs, ok := s.attributes[propertyID]
	if !ok {
		return &models.Attributes{}, nil
	}
	clone := *attrs
	return &clone, nil
}

func (s *InMemory) UpdateAttributes(ctx context.Context, propertyID id.PropertyID, mutate func(*models.Attributes)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs, ok := s.attributes[propertyID]
	if !ok {
		attrs = &models.Attributes{}
		s.attributes[propertyID] = attrs
	}
	mutate(attrs)
	return nil
}

func (s *InMemory) UpsertMaintenance(ctx context.Context, propertyID id.PropertyID, rec models.MaintenanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.maintenance[propertyID]
	if !ok {
		log = make(map[uint64]models.MaintenanceRecord)
		s.maintenance[propertyID] = log
	}
	log[rec.Seq] = rec
	return nil
}

func (s *InMemory) MaintenanceLog(ctx context.Context, propertyID id.PropertyID) ([]models.MaintenanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.maintenance[propertyID]
	out := make([]models.MaintenanceRecord, 0, len(log))
	for _, rec := range log {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *InMemory) UpsertAppraisal(ctx context.Context, propertyID id.PropertyID, rec models.Appraisal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.appraisals[propertyID]
	if !ok {
		log = make(map[uint64]models.Appraisal)
		s.appraisals[propertyID] = log
	}
	log[rec.Timestamp] = rec
	return nil
}

func (s *InMemory) Appraisals(ctx context.Context, propertyID id.PropertyID) ([]models.Appraisal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.appraisals[propertyID]
	out := make([]models.Appraisal, 0, len(log))
	for _, rec := range log {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (s *InMemory) SetTransferApproval(ctx context.Context, propertyID id.PropertyID, candidate id.Address, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals[approvalKey{propertyID, candidate}] = approved
	return nil
}

func (s *InMemory) TransferApproval(ctx context.Context, propertyID id.PropertyID, candidate id.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.approvals[approvalKey{propertyID, candidate}], nil
}

func cloneProperty(p *models.Property) *models.Property {
	clone := *p
	return &clone
}
