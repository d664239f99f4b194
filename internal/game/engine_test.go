package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedParams(clock clockwork.Clock, delay time.Duration) Params {
	return Params{
		Room:    "alpha",
		StartAt: clock.Now().Add(delay).UnixMilli(),
		MaxTime: 8000,
		MaxMult: 4.50,
		Target:  2.13,
		Seed:    "seed-1",
	}
}

func TestEngineCountdownThenRunning(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(clock, nil, nil)

	require.NoError(t, e.Start(startedParams(clock, 3*time.Second)))

	snap := e.Snapshot()
	assert.Equal(t, StateCountdown, snap.State)
	assert.Equal(t, int64(3000), snap.CountdownMs)
	assert.Equal(t, 1.0, snap.Value)

	clock.Advance(1 * time.Second)
	snap = e.Tick()
	assert.Equal(t, StateCountdown, snap.State)
	assert.Equal(t, int64(2000), snap.CountdownMs)

	clock.Advance(2 * time.Second)
	snap = e.Tick()
	assert.Equal(t, StateRunning, snap.State)
	assert.Equal(t, int64(0), snap.CountdownMs)
}

func TestEngineValueTracksWallClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(clock, nil, nil)

	require.NoError(t, e.Start(startedParams(clock, 0)))
	assert.Equal(t, StateRunning, e.Snapshot().State)

	// 半程：價值由絕對時間內插，錯過多少 tick 都不影響
	clock.Advance(4 * time.Second)
	snap := e.Tick()
	assert.Equal(t, StateRunning, snap.State)
	assert.Equal(t, 2.75, snap.Value)
	assert.Equal(t, 0.5, snap.Progress)
}

func TestEngineStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(clock, nil, nil)

	require.NoError(t, e.Start(startedParams(clock, 0)))
	clock.Advance(4 * time.Second)

	res, err := e.Stop()
	require.NoError(t, err)
	assert.Equal(t, 2.75, res.Value)
	assert.False(t, res.Crashed)
	assert.InDelta(t, 0.62, res.Diff, 1e-9)
	assert.Equal(t, 380, res.Score)
	assert.Equal(t, "seed-1", res.RoundID)
	assert.Equal(t, StateStopped, e.Snapshot().State)

	// 同一回合不可停止兩次
	_, err = e.Stop()
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestEngineStopDuringCountdown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(clock, nil, nil)

	require.NoError(t, e.Start(startedParams(clock, 3*time.Second)))
	_, err := e.Stop()
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestEngineExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var mu sync.Mutex
	var finishes []Result
	e := NewEngine(clock, nil, func(r Result) {
		mu.Lock()
		finishes = append(finishes, r)
		mu.Unlock()
	})

	require.NoError(t, e.Start(startedParams(clock, 0)))
	clock.Advance(9 * time.Second)

	snap := e.Tick()
	assert.Equal(t, StateExpired, snap.State)
	assert.Equal(t, 4.50, snap.Value) // 到期時回報精確的上限值

	// 同一瞬間的重複 tick 不得再次觸發 onFinish
	e.Tick()
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, finishes, 1)
	assert.True(t, finishes[0].Crashed)
	assert.Equal(t, 4.50, finishes[0].Value)
	assert.Equal(t, 0, finishes[0].Score)
}

func TestEngineStopAfterEndIsExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(clock, nil, nil)

	require.NoError(t, e.Start(startedParams(clock, 0)))
	clock.Advance(10 * time.Second)

	// 還沒 tick 過，但時間已超過 endAt，視同未停止
	res, err := e.Stop()
	require.NoError(t, err)
	assert.True(t, res.Crashed)
	assert.Equal(t, 4.50, res.Value)
	assert.Equal(t, StateExpired, e.Snapshot().State)
}

func TestEngineStaleGenerationIsNoOp(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(clock, nil, nil)

	require.NoError(t, e.Start(startedParams(clock, 0)))
	e.mu.Lock()
	stale := e.gen
	e.mu.Unlock()

	// 重新開始後，舊世代的 tick 不得推進狀態
	p := startedParams(clock, 3*time.Second)
	p.Seed = "seed-2"
	require.NoError(t, e.Start(p))

	clock.Advance(9 * time.Second)
	snap := e.step(stale)
	assert.Equal(t, "seed-2", snap.RoundID)
	assert.Equal(t, 1.0, e.Snapshot().Value)
	assert.NotEqual(t, StateExpired, e.Snapshot().State)
}

func TestEngineReset(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(clock, nil, nil)

	require.NoError(t, e.Start(startedParams(clock, 0)))
	clock.Advance(2 * time.Second)
	e.Tick()

	e.Reset()
	snap := e.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, 1.0, snap.Value)
	assert.Empty(t, snap.RoundID)
}

func TestEngineRunDrivesRoundToExpiry(t *testing.T) {
	clock := clockwork.NewRealClock()
	done := make(chan Result, 1)
	e := NewEngine(clock, nil, func(r Result) {
		done <- r
	})

	p := Params{
		Room:    "alpha",
		StartAt: clock.Now().UnixMilli(),
		MaxTime: 100,
		MaxMult: 4.50,
		Target:  2.13,
		Seed:    "seed-run",
	}
	require.NoError(t, e.Start(p))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go e.Run(ctx)

	select {
	case res := <-done:
		assert.True(t, res.Crashed)
		assert.Equal(t, 4.50, res.Value)
	case <-ctx.Done():
		t.Fatal("回合沒有在期限內收場")
	}
}
