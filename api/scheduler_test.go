package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgia/lease-engine/lifecycle"
	"github.com/lodgia/lease-engine/store/memory"
)

func TestSweepScheduler_FiresOnUTCClock(t *testing.T) {
	// GIVEN an engine clock reporting a non-UTC zone. Local time is past
	// both fire hours, but UTC is not: nothing may fire yet.
	store := memory.New()
	engine := lifecycle.New(store, store, store, store)
	engine.Runs = store

	kathmandu := time.FixedZone("NPT", 5*3600+45*60)
	clock := time.Date(2026, time.January, 1, 1, 0, 0, 0, time.UTC).In(kathmandu) // 06:45 local
	engine.Now = func() time.Time { return clock }

	scheduler := NewSweepScheduler(engine)
	scheduler.check()

	runs, err := store.ListSweepRuns(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, runs, "neither fire hour has passed in UTC")

	// WHEN the UTC clock passes both fire hours
	clock = time.Date(2026, time.January, 1, 3, 30, 0, 0, time.UTC).In(kathmandu)
	scheduler.check()

	runs, err = store.ListSweepRuns(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2, "expiration and overdue each fired once")

	// THEN the same day never fires twice
	scheduler.check()
	runs, err = store.ListSweepRuns(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
