package repository

import (
	"crash_aim/internal/models"
	"crash_aim/internal/storage"

	"gorm.io/gorm/clause"
)

type RoundRepository interface {
	Create(round *models.Round) error
	FindByRoundID(roundID string) (*models.Round, error)
	UpdateStatus(roundID string, status models.RoundStatus) error
	UpsertResult(result *models.RoundResult) error
	FindResults(roundID, room string) ([]models.RoundResult, error)
}

type roundRepository struct {
	db *storage.PostgresDB
}

func NewRoundRepository(db *storage.PostgresDB) RoundRepository {
	return &roundRepository{db: db}
}

func (r *roundRepository) Create(round *models.Round) error {
	return r.db.Create(round).Error
}

func (r *roundRepository) FindByRoundID(roundID string) (*models.Round, error) {
	var round models.Round
	err := r.db.Where("round_id = ?", roundID).First(&round).Error
	if err != nil {
		return nil, err
	}
	return &round, nil
}

func (r *roundRepository) UpdateStatus(roundID string, status models.RoundStatus) error {
	return r.db.Model(&models.Round{}).
		Where("round_id = ?", roundID).
		Update("status", status).Error
}

// UpsertResult 以 (round_id, user_id) 為鍵寫入結果，重複提交覆蓋舊值
func (r *roundRepository) UpsertResult(result *models.RoundResult) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "round_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(
			[]string{"name", "value", "diff", "score", "crashed", "updated_at"}),
	}).Create(result).Error
}

func (r *roundRepository) FindResults(roundID, room string) ([]models.RoundResult, error) {
	var results []models.RoundResult
	err := r.db.Where("round_id = ? AND room = ?", roundID, room).Find(&results).Error
	return results, err
}
