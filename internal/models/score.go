package models

import (
	"gorm.io/gorm"
)

// Score 表示排行榜的一筆成績，solo 與多人模式皆會寫入
// Room 與 RoundID 只有多人回合才有值
type Score struct {
	gorm.Model
	UserID  string  `gorm:"index;type:varchar(64);not null" json:"user_id"`
	Name    string  `gorm:"type:varchar(32)" json:"name"`
	Score   int     `gorm:"index" json:"score"`
	Value   float64 `json:"value"`
	Target  float64 `json:"target"`
	Diff    float64 `json:"diff"`
	Crashed bool    `json:"crashed"`
	Room    *string `gorm:"type:varchar(24)" json:"room,omitempty"`
	RoundID *string `gorm:"type:varchar(64)" json:"round_id,omitempty"`
}
