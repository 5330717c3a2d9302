package pickups

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBatchCodeFormat(t *testing.T) {
	ctx := context.Background()
	never := func(ctx context.Context, code string) (bool, error) { return false, nil }

	for i := 0; i < 50; i++ {
		code, err := generateBatchCode(ctx, never)
		require.NoError(t, err)
		assert.Regexp(t, batchCodePattern, code)
	}
}

func TestGenerateBatchCodeRetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	calls := 0
	exists := func(ctx context.Context, code string) (bool, error) {
		calls++
		return calls < 3, nil
	}

	code, err := generateBatchCode(ctx, exists)
	require.NoError(t, err)
	assert.Regexp(t, batchCodePattern, code)
	assert.Equal(t, 3, calls)
}

func TestGenerateBatchCodeGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	calls := 0
	alwaysTaken := func(ctx context.Context, code string) (bool, error) {
		calls++
		return true, nil
	}

	_, err := generateBatchCode(ctx, alwaysTaken)
	require.Error(t, err)
	assert.Equal(t, batchCodeMaxAttempts, calls)
}
