package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/course-rec-api/pkg/errors"
)

// Without a Redis client the repository degrades to a permanent miss so
// the stack can boot when caching is disabled.
func TestCacheRepositoryNilClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)

	var out string
	err := repo.Get(context.Background(), "courses:catalog", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.Contains(t, err.Error(), "courses:catalog")

	require.NoError(t, repo.Set(context.Background(), "courses:catalog", "v", time.Minute))
	require.NoError(t, repo.DeleteByPattern(context.Background(), "courses:*"))
	require.NoError(t, repo.Close())
}
