package repository

import (
	"time"

	"crash_aim/internal/models"
	"crash_aim/internal/storage"
)

type ScoreRepository interface {
	Create(score *models.Score) error
	// Top 回傳分數由高到低的排行，since 非 nil 時只計入該時間之後的成績
	Top(since *time.Time, room string, onlyMultiplayer bool, limit int) ([]models.Score, error)
}

type scoreRepository struct {
	db *storage.PostgresDB
}

func NewScoreRepository(db *storage.PostgresDB) ScoreRepository {
	return &scoreRepository{db: db}
}

func (r *scoreRepository) Create(score *models.Score) error {
	return r.db.Create(score).Error
}

func (r *scoreRepository) Top(since *time.Time, room string, onlyMultiplayer bool, limit int) ([]models.Score, error) {
	q := r.db.Model(&models.Score{}).Order("score DESC").Limit(limit)

	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	if room != "" {
		q = q.Where("room = ?", room)
	} else if onlyMultiplayer {
		q = q.Where("room IS NOT NULL")
	}

	var scores []models.Score
	err := q.Find(&scores).Error
	return scores, err
}
