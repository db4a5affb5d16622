package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeMaintainer struct {
	sweeps     atomic.Int32
	reconnects atomic.Int32
	connected  atomic.Bool
}

func (f *fakeMaintainer) Sweep() int {
	f.sweeps.Add(1)
	return 1
}

func (f *fakeMaintainer) Connected() bool { return f.connected.Load() }

func (f *fakeMaintainer) Reconnect(context.Context) bool {
	f.reconnects.Add(1)
	f.connected.Store(true)
	return true
}

func TestMaintenanceSchedulerRunsLoops(t *testing.T) {
	m := &fakeMaintainer{}
	s := NewMaintenanceScheduler(m, MaintenanceConfig{
		SweepInterval:     5 * time.Millisecond,
		ReconnectInterval: 5 * time.Millisecond,
	}, testLogger())

	s.Start()
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return m.sweeps.Load() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return m.connected.Load() }, time.Second, 5*time.Millisecond)

	// Once connected, no further reconnects are attempted.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), m.reconnects.Load())
}

func TestMaintenanceSchedulerDisabledLoops(t *testing.T) {
	m := &fakeMaintainer{}
	s := NewMaintenanceScheduler(m, MaintenanceConfig{}, testLogger())

	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	s.Stop()

	assert.Zero(t, m.sweeps.Load())
	assert.Zero(t, m.reconnects.Load())
}
