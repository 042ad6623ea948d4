//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"deedbook/internal/registry/models"
	"deedbook/internal/registry/store"
	id "deedbook/pkg/domain"
	"deedbook/pkg/testutil/containers"
)

type CachedStoreSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	inner  *store.InMemory
	cached *store.Cached
}

func TestCachedStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CachedStoreSuite))
}

func (s *CachedStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *CachedStoreSuite) TearDownSuite() {
	ctx := context.Background()
	_ = s.redis.Client.Close()
	_ = s.redis.Container.Terminate(ctx)
}

func (s *CachedStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.inner = store.NewInMemory()
	s.cached = store.NewCached(s.inner, s.redis.Client, time.Minute)
}

func (s *CachedStoreSuite) TestReadThrough() {
	ctx := context.Background()
	p, err := s.cached.CreateProperty(ctx, "registrar", "plot", time.Now())
	s.Require().NoError(err)

	// First read populates the cache.
	found, err := s.cached.FindProperty(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, found.ID)

	keys, err := s.redis.Client.Keys(ctx, "registry:property:*").Result()
	s.Require().NoError(err)
	s.Len(keys, 1)

	// Second read is served from the cache even if the inner record moves on.
	_, err = s.inner.ExecuteProperty(ctx, p.ID,
		func(*models.Property) error { return nil },
		func(rec *models.Property) { rec.ApplyFreeze() },
	)
	s.Require().NoError(err)

	cachedRead, err := s.cached.FindProperty(ctx, p.ID)
	s.Require().NoError(err)
	s.False(cachedRead.Transferred)
}

func (s *CachedStoreSuite) TestMutationInvalidates() {
	ctx := context.Background()
	p, err := s.cached.CreateProperty(ctx, "registrar", "plot", time.Now())
	s.Require().NoError(err)

	_, err = s.cached.FindProperty(ctx, p.ID)
	s.Require().NoError(err)

	_, err = s.cached.ExecuteProperty(ctx, p.ID,
		func(*models.Property) error { return nil },
		func(rec *models.Property) { rec.ApplyTransfer("alice") },
	)
	s.Require().NoError(err)

	found, err := s.cached.FindProperty(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(id.Address("alice"), found.Owner)
	s.True(found.Transferred)
}

func (s *CachedStoreSuite) TestCorruptEntryFallsThrough() {
	ctx := context.Background()
	p, err := s.cached.CreateProperty(ctx, "registrar", "plot", time.Now())
	s.Require().NoError(err)

	key := "registry:property:" + p.ID.String()
	s.Require().NoError(s.redis.Client.Set(ctx, key, "not json", time.Minute).Err())

	found, err := s.cached.FindProperty(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, found.ID)
}
