package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "admission:summary", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "admission:summary", map[string]int{"a": 1}, time.Minute))
	assert.NoError(t, repo.Delete(ctx, "admission:summary"))
}
