package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// State 是成長引擎的狀態
type State int

const (
	StateIdle State = iota
	StateCountdown
	StateRunning
	StateStopped
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCountdown:
		return "countdown"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

var ErrNotRunning = errors.New("回合不在運行中，無法停止")

// tick 週期：frameInterval 對應畫面更新，fallbackInterval 是幀回呼停擺時的備援
// 兩者可能在同一毫秒重複觸發，由 lastTickMs 去重
const (
	frameInterval     = 20 * time.Millisecond
	fallbackInterval  = 200 * time.Millisecond
	countdownInterval = 100 * time.Millisecond
)

// Progress 回傳 nowMs 時刻的回合進度 [0, 1]
func Progress(p Params, nowMs int64) float64 {
	if p.MaxTime <= 0 {
		return 0
	}
	pr := float64(nowMs-p.StartAt) / float64(p.MaxTime)
	if pr < 0 {
		return 0
	}
	if pr > 1 {
		return 1
	}
	return pr
}

// ValueAt 回傳 nowMs 時刻顯示的倍數
// 純粹由絕對時間線性內插，與 tick 次數無關，錯過的 tick 會自我修正
func ValueAt(p Params, nowMs int64) float64 {
	pr := Progress(p, nowMs)
	if pr >= 1 {
		// 到期時固定回傳上限值，不使用內插的近似值
		return p.MaxMult
	}
	return 1.0 + (p.MaxMult-1.0)*pr
}

// Snapshot 是引擎某一瞬間的唯讀狀態
type Snapshot struct {
	State       State   `json:"state"`
	Value       float64 `json:"value"`
	Progress    float64 `json:"progress"`
	CountdownMs int64   `json:"countdown_ms"`
	RoundID     string  `json:"round_id"`
}

// Result 是一個回合的最終結果
type Result struct {
	UserID    string  `json:"userId,omitempty"`
	Name      string  `json:"name,omitempty"`
	Value     float64 `json:"value"`
	Target    float64 `json:"target"`
	Diff      float64 `json:"diff"`
	Score     int     `json:"score"`
	Crashed   bool    `json:"crashed"`
	Timestamp int64   `json:"ts"` // epoch 毫秒
	RoundID   string  `json:"roundId"`
}

// Engine 以注入的時鐘重放回合時間線：Idle → Countdown → Running → {Stopped | Expired}
// 所有計時都用 startAt 與當下時刻的差值重算，不用遞減計數器，
// 因此各端獨立的時鐘只要對齊 epoch 就會看到同一條時間線
type Engine struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	onTick     func(Snapshot)
	onFinish   func(Result)
	gen        uint64 // 世代戳，Start/Reset 之後舊計時器的 tick 一律作廢
	state      State
	params     Params
	value      float64
	lastTickMs int64 // 已處理的時間點，同一瞬間的重複 tick 直接略過
}

// NewEngine 建立引擎，onTick / onFinish 可為 nil
func NewEngine(clock clockwork.Clock, onTick func(Snapshot), onFinish func(Result)) *Engine {
	return &Engine{
		clock:    clock,
		onTick:   onTick,
		onFinish: onFinish,
		state:    StateIdle,
		value:    1.0,
	}
}

// Start 以新參數重置引擎並進入倒數（startAt 已過則直接運行）
// 進行中的回合會被硬重置，先前排定的計時器全部失效
func (e *Engine) Start(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.params = p
	e.value = 1.0
	e.lastTickMs = 0
	if e.clock.Now().UnixMilli() >= p.StartAt {
		e.state = StateRunning
	} else {
		e.state = StateCountdown
	}
	return nil
}

// Reset 將引擎帶回 Idle 並作廢所有未觸發的計時器
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.state = StateIdle
	e.params = Params{}
	e.value = 1.0
	e.lastTickMs = 0
}

// Snapshot 回傳目前狀態
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Tick 依當下時刻推進狀態機，同一瞬間重複呼叫不會重算
func (e *Engine) Tick() Snapshot {
	e.mu.Lock()
	gen := e.gen
	e.mu.Unlock()
	return e.step(gen)
}

// Stop 由玩家動作觸發，只在 Running 可用且同一回合不可重來
func (e *Engine) Stop() (Result, error) {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return Result{}, ErrNotRunning
	}
	now := e.clock.Now().UnixMilli()
	var crashed bool
	if now >= e.params.EndAt() {
		// 時間已到，視同未停止
		e.state = StateExpired
		e.value = e.params.MaxMult
		crashed = true
	} else {
		e.state = StateStopped
		e.value = ValueAt(e.params, now)
	}
	res := e.resultLocked(crashed, now)
	onFinish := e.onFinish
	e.mu.Unlock()

	if onFinish != nil {
		onFinish(res)
	}
	return res, nil
}

// Run 以注入的時鐘驅動 tick 直到回合結束或 ctx 取消
// 倒數階段每次都從 startAt − now 重算剩餘時間，錯過的喚醒會自我修正
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	gen := e.gen
	state := e.state
	e.mu.Unlock()
	if state != StateCountdown && state != StateRunning {
		return
	}

	for {
		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			return
		}
		state = e.state
		startAt := e.params.StartAt
		e.mu.Unlock()
		if state != StateCountdown {
			break
		}

		rest := time.Duration(startAt-e.clock.Now().UnixMilli()) * time.Millisecond
		if rest <= 0 {
			e.step(gen)
			continue
		}
		wait := countdownInterval
		if rest < wait {
			wait = rest
		}
		t := e.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.Chan():
		}
		e.step(gen)
	}

	frame := e.clock.NewTicker(frameInterval)
	defer frame.Stop()
	fallback := e.clock.NewTicker(fallbackInterval)
	defer fallback.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-frame.Chan():
		case <-fallback.Chan():
		}
		snap := e.step(gen)
		if snap.State != StateRunning && snap.State != StateCountdown {
			return
		}
	}
}

// step 推進一個 tick；gen 與目前世代不符時整個呼叫是 no-op
func (e *Engine) step(gen uint64) Snapshot {
	e.mu.Lock()
	if gen != e.gen {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return snap
	}

	now := e.clock.Now().UnixMilli()
	if e.state == StateCountdown && now >= e.params.StartAt {
		e.state = StateRunning
	}

	var finished *Result
	if e.state == StateRunning {
		if now != e.lastTickMs {
			e.lastTickMs = now
			e.value = ValueAt(e.params, now)
			if now >= e.params.EndAt() {
				// 玩家沒有停止，回合以上限值墜毀收場
				e.state = StateExpired
				e.value = e.params.MaxMult
				res := e.resultLocked(true, now)
				finished = &res
			}
		}
	}

	snap := e.snapshotLocked()
	onTick, onFinish := e.onTick, e.onFinish
	e.mu.Unlock()

	if onTick != nil {
		onTick(snap)
	}
	if finished != nil && onFinish != nil {
		onFinish(*finished)
	}
	return snap
}

func (e *Engine) snapshotLocked() Snapshot {
	now := e.clock.Now().UnixMilli()
	var countdown int64
	if e.state == StateCountdown {
		countdown = e.params.StartAt - now
		if countdown < 0 {
			countdown = 0
		}
	}
	return Snapshot{
		State:       e.state,
		Value:       e.value,
		Progress:    Progress(e.params, now),
		CountdownMs: countdown,
		RoundID:     e.params.Seed,
	}
}

func (e *Engine) resultLocked(crashed bool, nowMs int64) Result {
	return Result{
		Value:     e.value,
		Target:    e.params.Target,
		Diff:      Diff(e.value, e.params.Target),
		Score:     Score(e.value, e.params.Target),
		Crashed:   crashed,
		Timestamp: nowMs,
		RoundID:   e.params.Seed,
	}
}
