package postgresadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SystemClock reads wall-clock time in UTC so stored cutoffs compare
// consistently across API and worker processes.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// UUIDGenerator issues UUIDv7 identifiers, which sort by creation time like
// the sessions they name.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate council id: %w", err)
	}
	return id.String(), nil
}
