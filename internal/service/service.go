package service

import (
	"log"

	"github.com/jonboulle/clockwork"

	"crash_aim/internal/config"
	"crash_aim/internal/game"
	"crash_aim/internal/repository"
)

type Services struct {
	Room  *RoomService
	Score *ScoreService
	Hub   *Hub
}

func NewServices(repos *repository.Repositories, cfg *config.Config) *Services {
	clock := clockwork.NewRealClock()

	// 密鑰缺失不是啟動錯誤：簽名相關端點會各自回 500，不會退回未簽名流程
	var signer *game.Signer
	if cfg.Round.Secret != "" {
		var err error
		signer, err = game.NewSigner(cfg.Round.Secret)
		if err != nil {
			signer = nil
		}
	} else {
		log.Println("ROUND_SECRET 未設定，簽名端點將回應 500")
	}

	hub := NewHub()
	roomService := NewRoomService(repos.Round, hub, signer, game.NewGenerator(clock), clock)
	hub.SetHandler(roomService)

	return &Services{
		Room:  roomService,
		Score: NewScoreService(repos.Score, clock),
		Hub:   hub,
	}
}
