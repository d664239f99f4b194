package api

import (
	"net/http"

	"crash_aim/internal/api/handlers"
	"crash_aim/internal/config"
	"crash_aim/internal/middleware"
	"crash_aim/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, services *service.Services, cfg *config.Config) {
	// 初始化 handlers
	authHandler := handlers.NewAuthHandler(cfg.Auth.Secret)
	roundHandler := handlers.NewRoundHandler(services.Room)
	roomHandler := handlers.NewRoomHandler(services.Room)
	scoreHandler := handlers.NewScoreHandler(services.Score)
	wsHandler := handlers.NewWebSocketHandler(services.Hub, cfg.Auth.Secret)

	// API 路由群組
	api := r.Group("/api")

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "找不到該路徑",
		})
	})

	// 公開路由
	{
		// 訪客身分發放
		api.POST("/auth/guest", authHandler.Guest)

		// 基本的健康檢查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})

		// WebSocket 連接點：瀏覽器無法帶 Authorization 頭，
		// 憑證改由 query 傳入並在 handler 內驗證
		api.GET("/rooms/:room/ws", wsHandler.HandleWebSocket)
	}

	// 需要驗證的路由
	authorized := api.Group("/")
	authorized.Use(middleware.AuthMiddleware(cfg.Auth.Secret))
	{
		// 回合相關
		round := authorized.Group("/round")
		{
			round.POST("/sign", roundHandler.Sign)       // 簽發主持人提供的回合參數
			round.POST("/start", roundHandler.Start)     // 主持人開始同步回合
			round.POST("/create", roundHandler.Create)   // 伺服器端產生並開始回合
			round.POST("/result", roundHandler.Result)   // 回報回合結果
			round.POST("/summary", roundHandler.Summary) // 強制結算回合
		}

		// 排行榜相關
		score := authorized.Group("/score")
		{
			score.POST("/submit", scoreHandler.Submit) // 提交單人成績
			score.GET("/top", scoreHandler.Top)        // 查詢排行榜
		}

		// 房間相關
		authorized.GET("/rooms/:room", roomHandler.GetRoom) // 獲取房間狀態
	}
}
