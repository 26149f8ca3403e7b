package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustlens/evidence-verifier/internal/config"
)

type countingSnapshotter struct {
	calls int32
}

func (c *countingSnapshotter) SnapshotStats() error {
	atomic.AddInt32(&c.calls, 1)
	return nil
}

func TestService_Start(t *testing.T) {
	snapshotter := &countingSnapshotter{}
	cfg := &config.Config{StatsSchedule: "* * * * * *"}

	service := NewService(cfg, snapshotter)
	require.NoError(t, service.Start())
	defer service.Stop()

	assert.Equal(t, 1, service.Entries())
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&snapshotter.calls) > 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestService_Start_InvalidSchedule(t *testing.T) {
	service := NewService(&config.Config{StatsSchedule: "every hour"}, &countingSnapshotter{})
	assert.Error(t, service.Start())
}

func TestService_Start_Disabled(t *testing.T) {
	service := NewService(&config.Config{}, &countingSnapshotter{})
	require.NoError(t, service.Start())
	assert.Equal(t, 0, service.Entries())
	service.Stop()
}
