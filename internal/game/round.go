package game

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// 回合參數的取值範圍，與既有客戶端保持一致
const (
	DefaultMaxTime = int64(8000) // 成長階段長度（毫秒）

	minMaxMult   = 3.8
	maxMaxMult   = 5.2
	minTarget    = 1.10
	targetMargin = 0.05 // target 與上限之間保證的間距

	minStartDelay     = 1 * time.Second
	maxStartDelay     = 15 * time.Second
	defaultStartDelay = 3 * time.Second
)

var (
	ErrRoomRequired  = errors.New("房間名稱不可為空")
	ErrInvalidParams = errors.New("無效的回合參數")
)

var roomPattern = regexp.MustCompile(`[^a-z0-9-]`)

// NormalizeRoom 將房間名稱正規化為 [a-z0-9-]，最長 24 字元
// 簽名與驗證雙方必須使用同一套正規化結果
func NormalizeRoom(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = roomPattern.ReplaceAllString(s, "")
	if len(s) > 24 {
		s = s[:24]
	}
	return s
}

// Params 是一個回合的完整參數，簽名後不可變更
// JSON 欄位順序即簽名的正規化順序，調整欄位順序會使既有簽名失效
type Params struct {
	Room    string  `json:"room"`
	StartAt int64   `json:"startAt"` // epoch 毫秒
	MaxTime int64   `json:"maxTime"` // 毫秒
	MaxMult float64 `json:"maxMult"`
	Target  float64 `json:"target"`
	Seed    string  `json:"seed"`
}

// SignedParams 為回合參數加上伺服器簽名
type SignedParams struct {
	Params
	Sig string `json:"sig"`
}

// RoundID 回傳回合的唯一識別，等同 seed
func (p Params) RoundID() string {
	return p.Seed
}

// EndAt 回傳成長階段結束的 epoch 毫秒
func (p Params) EndAt() int64 {
	return p.StartAt + p.MaxTime
}

// Canonical 回傳簽名用的正規化參數
func (p Params) Canonical() Params {
	p.Room = NormalizeRoom(p.Room)
	return p
}

// Validate 檢查參數是否構成一個可玩的回合
// target 必須嚴格落在 (1.0, maxMult) 之間，等於或超過上限的回合無法達成
func (p Params) Validate() error {
	if p.Seed == "" {
		return fmt.Errorf("%w: 缺少 seed", ErrInvalidParams)
	}
	if p.StartAt <= 0 {
		return fmt.Errorf("%w: startAt 必須為正", ErrInvalidParams)
	}
	if p.MaxTime <= 0 {
		return fmt.Errorf("%w: maxTime 必須為正", ErrInvalidParams)
	}
	if p.MaxMult <= 1.0 {
		return fmt.Errorf("%w: maxMult 必須大於 1.0", ErrInvalidParams)
	}
	if p.Target <= 1.0 || p.Target >= p.MaxMult {
		return fmt.Errorf("%w: target 必須介於 1.0 與 maxMult 之間", ErrInvalidParams)
	}
	return nil
}

// Generator 產生新回合的參數，本身不負責簽名
type Generator struct {
	clock clockwork.Clock
	rnd   *rand.Rand
}

func NewGenerator(clock clockwork.Clock) *Generator {
	return &Generator{
		clock: clock,
		rnd:   rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

// NewRound 推導一個可玩的回合：時間預算、可達上限與嚴格低於上限的 target
// startDelay 會被限制在 1–15 秒，讓所有客戶端有時間收到廣播
func (g *Generator) NewRound(room string, startDelay time.Duration) (Params, error) {
	room = NormalizeRoom(room)
	if room == "" {
		return Params{}, ErrRoomRequired
	}

	if startDelay <= 0 {
		startDelay = defaultStartDelay
	}
	if startDelay < minStartDelay {
		startDelay = minStartDelay
	}
	if startDelay > maxStartDelay {
		startDelay = maxStartDelay
	}

	maxMult := round2(minMaxMult + g.rnd.Float64()*(maxMaxMult-minMaxMult))
	upper := maxMult - targetMargin
	target := round2(minTarget + g.rnd.Float64()*(upper-minTarget))

	p := Params{
		Room:    room,
		StartAt: g.clock.Now().Add(startDelay).UnixMilli(),
		MaxTime: DefaultMaxTime,
		MaxMult: maxMult,
		Target:  target,
		Seed:    uuid.NewString(),
	}
	if err := p.Validate(); err != nil {
		// target 落在上限之上代表產生器本身有 bug，不是合法回合
		return Params{}, fmt.Errorf("產生回合參數失敗: %w", err)
	}
	return p, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
