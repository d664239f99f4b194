package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crash_aim/internal/service"
)

// ScoreHandler 處理排行榜的提交與查詢
type ScoreHandler struct {
	scoreService *service.ScoreService
}

// NewScoreHandler 創建一個新的 ScoreHandler 實例
func NewScoreHandler(scoreService *service.ScoreService) *ScoreHandler {
	return &ScoreHandler{scoreService: scoreService}
}

// Submit 寫入一筆成績
func (h *ScoreHandler) Submit(c *gin.Context) {
	var input service.ScoreInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.scoreService.Submit(input); err != nil {
		if errors.Is(err, service.ErrUserRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "寫入成績失敗"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Top 查詢排行榜
// scope=day|week|month|all，limit 1–100，room 過濾單一房間，onlyMp=1 只看多人成績
func (h *ScoreHandler) Top(c *gin.Context) {
	scope := c.DefaultQuery("scope", "day")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	room := c.Query("room")
	onlyMp := c.Query("onlyMp") == "1"

	scores, err := h.scoreService.Top(scope, limit, room, onlyMp)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "無法查詢排行榜"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "items": scores})
}
