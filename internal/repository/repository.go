package repository

import "crash_aim/internal/storage"

type Repositories struct {
	Round RoundRepository
	Score ScoreRepository
}

func NewRepositories(db *storage.PostgresDB) *Repositories {
	return &Repositories{
		Round: NewRoundRepository(db),
		Score: NewScoreRepository(db),
	}
}
