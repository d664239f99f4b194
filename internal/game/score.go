package game

import "math"

// MaxScore 完美停止（diff = 0）的分數，diff 每差 0.001 扣 1 分
const MaxScore = 1000

// Diff 回傳停止值與 target 的絕對距離
func Diff(value, target float64) float64 {
	return math.Abs(value - target)
}

// Score 將停止值換算為 [0, MaxScore] 的整數分數
// 純函式：相同輸入必定得到相同輸出，客戶端與伺服器可各自重算比對
func Score(value, target float64) int {
	s := int(math.Round(MaxScore - Diff(value, target)*MaxScore))
	if s < 0 {
		return 0
	}
	return s
}

// RoundDiff 將 diff 捨入到四位小數，持久化時使用
func RoundDiff(d float64) float64 {
	return math.Round(d*10000) / 10000
}
