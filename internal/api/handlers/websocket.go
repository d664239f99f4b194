package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"crash_aim/internal/game"
	"crash_aim/internal/service"
	"crash_aim/internal/utils"
)

// 定義 WebSocket 升級器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 注意：在生產環境中，應該檢查 origin
	},
}

// WebSocketHandler 處理房間頻道的訂閱
type WebSocketHandler struct {
	hub    *service.Hub
	secret string
}

// NewWebSocketHandler 創建一個新的 WebSocketHandler 實例
func NewWebSocketHandler(hub *service.Hub, secret string) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, secret: secret}
}

// HandleWebSocket 處理頻道訂閱請求
// 瀏覽器的 WebSocket 無法帶 Authorization 頭，憑證改由 query 傳入，
// 授權失敗在升級連線之前就拒絕
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	room := game.NormalizeRoom(c.Param("room"))
	if room == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "錯誤的房間名稱"})
		return
	}

	claims, err := utils.ParseToken(h.secret, c.Query("token"))
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "無法加入房間：憑證無效"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "升級WebSocket失敗"})
		return
	}

	h.hub.HandleConnection(conn, room, claims.UserID, claims.Name)
}
