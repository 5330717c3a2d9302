package pickups

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	batchCodeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	batchCodeDigits  = "0123456789"

	// batchCodeMaxAttempts bounds collision retries before giving up.
	batchCodeMaxAttempts = 5
)

var errBatchCodeCollision = fmt.Errorf("batch code collision")

// generateBatchCode produces a code of three uppercase letters followed by
// three digits, retrying on collisions against the exists check.
func generateBatchCode(ctx context.Context, exists func(ctx context.Context, code string) (bool, error)) (string, error) {
	var code string
	backoff := retry.WithMaxRetries(batchCodeMaxAttempts-1, retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		candidate, err := randomBatchCode()
		if err != nil {
			return err
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return err
		}
		if taken {
			return retry.RetryableError(errBatchCodeCollision)
		}
		code = candidate
		return nil
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

func randomBatchCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate batch code: %w", err)
	}
	out := make([]byte, 6)
	for i := 0; i < 3; i++ {
		out[i] = batchCodeLetters[int(buf[i])%len(batchCodeLetters)]
	}
	for i := 3; i < 6; i++ {
		out[i] = batchCodeDigits[int(buf[i])%len(batchCodeDigits)]
	}
	return string(out), nil
}
