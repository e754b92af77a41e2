package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/course-rec-api/pkg/errors"
)

type cacheRepoStub struct {
	getErr   error
	getValue string
	getCalls int
	setKey   string
	setTTL   time.Duration
	patterns []string
}

func (s *cacheRepoStub) Get(_ context.Context, _ string, dest interface{}) error {
	s.getCalls++
	if s.getErr != nil {
		return s.getErr
	}
	if p, ok := dest.(*string); ok {
		*p = s.getValue
	}
	return nil
}

func (s *cacheRepoStub) Set(_ context.Context, key string, _ interface{}, ttl time.Duration) error {
	s.setKey = key
	s.setTTL = ttl
	return nil
}

func (s *cacheRepoStub) DeleteByPattern(_ context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	return nil
}

func TestCacheServiceDisabledIsInert(t *testing.T) {
	repo := &cacheRepoStub{getValue: "cached"}
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), false)

	var out string
	hit, err := svc.Get(context.Background(), "courses:catalog", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Zero(t, repo.getCalls)

	require.NoError(t, svc.Set(context.Background(), "courses:catalog", "x", 0))
	assert.Empty(t, repo.setKey)

	require.NoError(t, svc.Invalidate(context.Background(), "courses:*"))
	assert.Empty(t, repo.patterns)
}

func TestCacheServiceGetHit(t *testing.T) {
	repo := &cacheRepoStub{getValue: "cached"}
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	var out string
	hit, err := svc.Get(context.Background(), "courses:catalog", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "cached", out)
}

func TestCacheServiceGetTreatsWrappedMissAsMiss(t *testing.T) {
	repo := &cacheRepoStub{getErr: fmt.Errorf("cache key courses:catalog: %w", appErrors.ErrCacheMiss)}
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	var out string
	hit, err := svc.Get(context.Background(), "courses:catalog", &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceGetSurfacesTransportError(t *testing.T) {
	repo := &cacheRepoStub{getErr: fmt.Errorf("redis get courses:catalog: connection refused")}
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	var out string
	hit, err := svc.Get(context.Background(), "courses:catalog", &out)
	require.Error(t, err)
	assert.False(t, hit)
}

func TestCacheServiceSetAppliesDefaultTTL(t *testing.T) {
	repo := &cacheRepoStub{}
	svc := NewCacheService(repo, nil, 7*time.Minute, zap.NewNop(), true)

	require.NoError(t, svc.Set(context.Background(), "dash:overview", "v", 0))
	assert.Equal(t, "dash:overview", repo.setKey)
	assert.Equal(t, 7*time.Minute, repo.setTTL)

	require.NoError(t, svc.Set(context.Background(), "dash:overview", "v", time.Second))
	assert.Equal(t, time.Second, repo.setTTL)
}
