package service

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"crash_aim/internal/game"
	"crash_aim/internal/models"
	"crash_aim/internal/repository"
)

var ErrUserRequired = errors.New("缺少 userId")

// ScoreInput 是排行榜提交，solo 與多人回合共用
type ScoreInput struct {
	UserID  string  `json:"userId"`
	Name    string  `json:"name"`
	Score   int     `json:"score"`
	Value   float64 `json:"value"`
	Target  float64 `json:"target"`
	Diff    float64 `json:"diff"`
	Crashed bool    `json:"crashed"`
	Room    string  `json:"room,omitempty"`
	RoundID string  `json:"roundId,omitempty"`
}

// ScoreService 處理排行榜的寫入與查詢
type ScoreService struct {
	scoreRepo repository.ScoreRepository
	clock     clockwork.Clock
}

func NewScoreService(scoreRepo repository.ScoreRepository, clock clockwork.Clock) *ScoreService {
	return &ScoreService{scoreRepo: scoreRepo, clock: clock}
}

// Submit 寫入一筆成績，欄位依既有規則消毒
func (s *ScoreService) Submit(input ScoreInput) error {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return ErrUserRequired
	}
	if len(userID) > 64 {
		userID = userID[:64]
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Player"
	}
	if len(name) > 32 {
		name = name[:32]
	}

	score := input.Score
	if score < 0 {
		score = 0
	}

	row := &models.Score{
		UserID:  userID,
		Name:    name,
		Score:   score,
		Value:   input.Value,
		Target:  input.Target,
		Diff:    math.Abs(input.Diff),
		Crashed: input.Crashed,
	}
	if room := game.NormalizeRoom(input.Room); room != "" {
		row.Room = &room
	}
	if input.RoundID != "" {
		id := input.RoundID
		if len(id) > 64 {
			id = id[:64]
		}
		row.RoundID = &id
	}

	return s.scoreRepo.Create(row)
}

// Top 回傳指定範圍的排行榜，limit 限制在 1–100
func (s *ScoreService) Top(scope string, limit int, room string, onlyMultiplayer bool) ([]models.Score, error) {
	if limit < 1 {
		limit = 25
	}
	if limit > 100 {
		limit = 100
	}
	return s.scoreRepo.Top(s.lowerBound(scope), game.NormalizeRoom(room), onlyMultiplayer, limit)
}

// lowerBound 依 scope 換算 created_at 的下界，all 不設下界
func (s *ScoreService) lowerBound(scope string) *time.Time {
	now := s.clock.Now()
	var since time.Time
	switch strings.ToLower(scope) {
	case "all":
		return nil
	case "month":
		since = now.Add(-30 * 24 * time.Hour)
	case "week":
		since = now.Add(-7 * 24 * time.Hour)
	default: // day
		since = now.Add(-24 * time.Hour)
	}
	return &since
}
