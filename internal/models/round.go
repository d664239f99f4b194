package models

import (
	"time"

	"gorm.io/gorm"
)

// Round 表示一個已簽名並開始的多人回合
// 參數在簽名後不可變更，這裡只保存查詢摘要用的欄位
type Round struct {
	gorm.Model
	RoundID string      `gorm:"uniqueIndex;not null" json:"round_id"` // 等同回合參數的 seed
	Room    string      `gorm:"index;type:varchar(24)" json:"room"`
	StartAt time.Time   `json:"start_at"`
	EndAt   time.Time   `json:"end_at"`
	MaxTime int64       `json:"max_time"` // 成長階段長度（毫秒）
	MaxMult float64     `json:"max_mult"`
	Target  float64     `json:"target"`
	Status  RoundStatus `gorm:"type:varchar(20)" json:"status"`
}

// RoundStatus 定義回合狀態的類型
type RoundStatus string

const (
	RoundStatusRunning  RoundStatus = "running"
	RoundStatusFinished RoundStatus = "finished"
)

// RoundResult 表示單一玩家在某回合的停止結果
// (round_id, user_id) 唯一，重複提交會覆蓋前一筆
type RoundResult struct {
	gorm.Model
	RoundID string  `gorm:"uniqueIndex:idx_round_results_round_user;not null" json:"round_id"`
	UserID  string  `gorm:"uniqueIndex:idx_round_results_round_user;type:varchar(64);not null" json:"user_id"`
	Name    string  `gorm:"type:varchar(32)" json:"name"`
	Value   float64 `json:"value"`
	Diff    float64 `json:"diff"`
	Score   int     `json:"score"`
	Crashed bool    `json:"crashed"`
	Room    string  `gorm:"index;type:varchar(24)" json:"room"`
}
