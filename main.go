package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"crash_aim/internal/api"
	"crash_aim/internal/config"
	"crash_aim/internal/models"
	"crash_aim/internal/repository"
	"crash_aim/internal/service"
	"crash_aim/internal/storage"
)

func main() {
	// 載入應用程式配置
	// 從配置文件與環境變數讀取設置，如資料庫連接信息、伺服器地址與簽名密鑰
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化資料庫連接
	// 使用配置中的信息建立到 PostgreSQL 數據庫的連接
	db, err := storage.NewPostgresDB(cfg.DB.Host, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.Port)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	// 確保在程序結束時關閉數據庫連接
	defer db.Close()

	// 自動遷移資料庫結構
	// 根據定義的模型自動創建或更新數據庫表結構
	// 這裡遷移回合、回合結果與排行榜成績三個模型
	if err := db.AutoMigrate(&models.Round{}, &models.RoundResult{}, &models.Score{}); err != nil {
		log.Fatalf("Failed to auto migrate database: %v", err)
	}

	// 初始化服務
	// 初始化 repositories
	repos := repository.NewRepositories(db)

	// 初始化 services
	services := service.NewServices(repos, cfg)

	// 設置 Gin 路由
	// 創建一個默認的 Gin 路由器並設置路由
	r := gin.Default()
	api.SetupRoutes(r, services, cfg)

	// 啟動伺服器
	// 使用配置中指定的地址啟動 HTTP 服務器
	if err := r.Run(cfg.Server.Address); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
