package services

import (
	"sync"
	"testing"
	"time"

	"github.com/LoadingLlama/relation/domain/config"
	domainservices "github.com/LoadingLlama/relation/domain/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type revealRecorder struct {
	mu     sync.Mutex
	values []int
}

func (r *revealRecorder) record(exposed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, exposed)
}

func (r *revealRecorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.values...)
}

func newTestScheduler(delay, period time.Duration) *RevealScheduler {
	cfg := config.DefaultDomainConfig()
	cfg.RevealInitialDelay = delay
	cfg.RevealPeriod = period
	return NewRevealScheduler(cfg, zap.NewNop())
}

func TestRevealScheduler_StartCountsUpToTotal(t *testing.T) {
	scheduler := newTestScheduler(2*time.Millisecond, 2*time.Millisecond)
	rec := &revealRecorder{}
	scheduler.OnAdvance(rec.record)

	scheduler.Start(5)
	assert.Equal(t, 0, scheduler.Budget())

	require.Eventually(t, func() bool { return scheduler.Exposed() == 5 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !scheduler.Running() }, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 5, scheduler.Exposed())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, rec.snapshot())
	assert.Equal(t, domainservices.RevealAll, scheduler.Budget())
}

func TestRevealScheduler_WaitsInitialDelay(t *testing.T) {
	scheduler := newTestScheduler(time.Hour, time.Millisecond)
	defer scheduler.Cancel()

	scheduler.Start(3)
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 0, scheduler.Exposed())
	assert.True(t, scheduler.Running())
}

func TestRevealScheduler_CancelFreezesCount(t *testing.T) {
	scheduler := newTestScheduler(time.Millisecond, 5*time.Millisecond)
	rec := &revealRecorder{}
	scheduler.OnAdvance(rec.record)

	scheduler.Start(1000)
	require.Eventually(t, func() bool { return scheduler.Exposed() >= 2 }, time.Second, time.Millisecond)

	scheduler.Stop()
	frozen := scheduler.Exposed()
	notified := len(rec.snapshot())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, frozen, scheduler.Exposed())
	assert.Equal(t, frozen, scheduler.Budget())
	assert.Len(t, rec.snapshot(), notified)
	assert.False(t, scheduler.Running())

	// Cancel is idempotent
	scheduler.Cancel()
	assert.Equal(t, frozen, scheduler.Exposed())
}

func TestRevealScheduler_RestartCancelsPrevious(t *testing.T) {
	scheduler := newTestScheduler(time.Millisecond, time.Millisecond)

	scheduler.Start(1000)
	require.Eventually(t, func() bool { return scheduler.Exposed() >= 1 }, time.Second, time.Millisecond)

	scheduler.Start(3)
	require.Eventually(t, func() bool { return !scheduler.Running() }, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, scheduler.Exposed())
}

func TestRevealScheduler_IdleBudget(t *testing.T) {
	scheduler := newTestScheduler(time.Millisecond, time.Millisecond)

	assert.Equal(t, domainservices.RevealAll, scheduler.Budget())
	scheduler.Cancel()
	assert.Equal(t, domainservices.RevealAll, scheduler.Budget())

	scheduler.Start(0)
	assert.False(t, scheduler.Running())
	assert.Equal(t, domainservices.RevealAll, scheduler.Budget())
}

func TestRevealScheduler_CancelFromListener(t *testing.T) {
	scheduler := newTestScheduler(time.Millisecond, time.Millisecond)
	scheduler.OnAdvance(func(exposed int) {
		if exposed == 2 {
			scheduler.Cancel()
		}
	})

	scheduler.Start(10)

	require.Eventually(t, func() bool { return !scheduler.Running() }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 2, scheduler.Exposed())
}

func TestRevealScheduler_StopWaitsForRunningListener(t *testing.T) {
	scheduler := newTestScheduler(time.Millisecond, time.Millisecond)
	entered := make(chan struct{})
	release := make(chan struct{})
	scheduler.OnAdvance(func(exposed int) {
		if exposed == 1 {
			close(entered)
			<-release
		}
	})

	scheduler.Start(10)
	<-entered

	stopped := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a listener was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the listener finished")
	}
	assert.False(t, scheduler.Running())
	assert.Equal(t, 1, scheduler.Exposed())
}

func TestRevealScheduler_CancelDuringResetNotification(t *testing.T) {
	scheduler := newTestScheduler(time.Millisecond, time.Millisecond)
	scheduler.OnAdvance(func(exposed int) {
		if exposed == 0 {
			scheduler.Cancel()
		}
	})

	scheduler.Start(5)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, scheduler.Exposed())
	assert.False(t, scheduler.Running())
}
