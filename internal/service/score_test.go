package service

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crash_aim/internal/models"
)

// fakeScoreRepo 記錄寫入並回放最近一次 Top 查詢的參數
type fakeScoreRepo struct {
	mu      sync.Mutex
	created []*models.Score

	lastSince  *time.Time
	lastRoom   string
	lastOnlyMp bool
	lastLimit  int
}

func (r *fakeScoreRepo) Create(score *models.Score) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, score)
	return nil
}

func (r *fakeScoreRepo) Top(since *time.Time, room string, onlyMultiplayer bool, limit int) ([]models.Score, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSince = since
	r.lastRoom = room
	r.lastOnlyMp = onlyMultiplayer
	r.lastLimit = limit
	return nil, nil
}

func TestScoreSubmitSanitizes(t *testing.T) {
	repo := &fakeScoreRepo{}
	svc := NewScoreService(repo, clockwork.NewFakeClock())

	err := svc.Submit(ScoreInput{
		UserID:  "  u1  ",
		Name:    "",
		Score:   -50,
		Value:   2.10,
		Target:  2.13,
		Diff:    -0.03,
		Room:    "  ALPHA ",
		RoundID: "seed-1",
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)

	row := repo.created[0]
	assert.Equal(t, "u1", row.UserID)
	assert.Equal(t, "Player", row.Name)
	assert.Equal(t, 0, row.Score)
	assert.Equal(t, 0.03, row.Diff)
	require.NotNil(t, row.Room)
	assert.Equal(t, "alpha", *row.Room)
	require.NotNil(t, row.RoundID)
	assert.Equal(t, "seed-1", *row.RoundID)
}

func TestScoreSubmitRequiresUser(t *testing.T) {
	svc := NewScoreService(&fakeScoreRepo{}, clockwork.NewFakeClock())
	assert.ErrorIs(t, svc.Submit(ScoreInput{Name: "amy"}), ErrUserRequired)
	assert.ErrorIs(t, svc.Submit(ScoreInput{UserID: "   "}), ErrUserRequired)
}

func TestScoreSubmitSoloHasNoRoom(t *testing.T) {
	repo := &fakeScoreRepo{}
	svc := NewScoreService(repo, clockwork.NewFakeClock())

	require.NoError(t, svc.Submit(ScoreInput{UserID: "u1", Name: "amy", Score: 970}))
	require.Len(t, repo.created, 1)
	assert.Nil(t, repo.created[0].Room)
	assert.Nil(t, repo.created[0].RoundID)
}

func TestScoreSubmitTruncatesLongFields(t *testing.T) {
	repo := &fakeScoreRepo{}
	svc := NewScoreService(repo, clockwork.NewFakeClock())

	require.NoError(t, svc.Submit(ScoreInput{
		UserID: strings.Repeat("u", 80),
		Name:   strings.Repeat("n", 40),
	}))
	require.Len(t, repo.created, 1)
	assert.Len(t, repo.created[0].UserID, 64)
	assert.Len(t, repo.created[0].Name, 32)
}

func TestScoreTopScopes(t *testing.T) {
	repo := &fakeScoreRepo{}
	clock := clockwork.NewFakeClock()
	svc := NewScoreService(repo, clock)

	tests := []struct {
		scope string
		want  *time.Duration
	}{
		{"all", nil},
		{"month", durationPtr(30 * 24 * time.Hour)},
		{"week", durationPtr(7 * 24 * time.Hour)},
		{"day", durationPtr(24 * time.Hour)},
		{"", durationPtr(24 * time.Hour)},     // 預設為 day
		{"WEEK", durationPtr(7 * 24 * time.Hour)}, // 大小寫不敏感
	}
	for _, tt := range tests {
		t.Run("scope "+tt.scope, func(t *testing.T) {
			_, err := svc.Top(tt.scope, 10, "", false)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, repo.lastSince)
			} else {
				require.NotNil(t, repo.lastSince)
				assert.Equal(t, clock.Now().Add(-*tt.want), *repo.lastSince)
			}
		})
	}
}

func TestScoreTopClampsLimit(t *testing.T) {
	repo := &fakeScoreRepo{}
	svc := NewScoreService(repo, clockwork.NewFakeClock())

	_, err := svc.Top("all", 0, "", false)
	require.NoError(t, err)
	assert.Equal(t, 25, repo.lastLimit)

	_, err = svc.Top("all", 500, "", false)
	require.NoError(t, err)
	assert.Equal(t, 100, repo.lastLimit)

	_, err = svc.Top("all", 50, "ALPHA", true)
	require.NoError(t, err)
	assert.Equal(t, 50, repo.lastLimit)
	assert.Equal(t, "alpha", repo.lastRoom)
	assert.True(t, repo.lastOnlyMp)
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}
