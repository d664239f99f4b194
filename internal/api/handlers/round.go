package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crash_aim/internal/game"
	"crash_aim/internal/service"
)

// RoundHandler 處理回合簽名、開始、結果提交與彙總
type RoundHandler struct {
	roomService *service.RoomService
}

// NewRoundHandler 創建一個新的 RoundHandler 實例
func NewRoundHandler(roomService *service.RoomService) *RoundHandler {
	return &RoundHandler{roomService: roomService}
}

// Sign 對主持人產生的回合參數簽名
// 無狀態端點：只驗證參數本身，簽名即背書參數不可再變動
func (h *RoundHandler) Sign(c *gin.Context) {
	var params game.Params
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sig, err := h.roomService.SignParams(params)
	if err != nil {
		if errors.Is(err, service.ErrNotConfigured) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": service.ErrNotConfigured.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "sig": sig})
}

// StartInput 定義主持人開始回合的請求
type StartInput struct {
	Room         string `json:"room" binding:"required"`
	StartDelayMs int64  `json:"startDelayMs"`
}

// Start 由主持人開始一個同步回合（產生、簽名、落庫、廣播）
func (h *RoundHandler) Start(c *gin.Context) {
	var input StartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, _ := c.Get("userID")
	signed, err := h.roomService.StartRound(input.Room, userID.(string),
		time.Duration(input.StartDelayMs)*time.Millisecond)
	if err != nil {
		if errors.Is(err, service.ErrNotConfigured) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": service.ErrNotConfigured.Error()})
			return
		}
		// 主持人、人數、準備與鎖定的拒絕都在簽名之前發生，不產生副作用
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "roundId": signed.RoundID(), "round": signed})
}

// CreateInput 定義伺服器端開局的請求
type CreateInput struct {
	Room         string `json:"room" binding:"required"`
	StartDelayMs int64  `json:"startDelayMs"`
}

// Create 伺服器端開局：不信任客戶端產生參數的部署用這條路
func (h *RoundHandler) Create(c *gin.Context) {
	var input CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	signed, err := h.roomService.CreateRound(input.Room,
		time.Duration(input.StartDelayMs)*time.Millisecond)
	if err != nil {
		if errors.Is(err, service.ErrNotConfigured) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": service.ErrNotConfigured.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "roundId": signed.RoundID(), "round": signed})
}

// ResultInputBody 定義結果提交的請求
type ResultInputBody struct {
	Room   string              `json:"room" binding:"required"`
	Result service.ResultInput `json:"result" binding:"required"`
	Round  game.SignedParams   `json:"round" binding:"required"`
}

// Result 接收玩家的停止結果
// 簽名或時間窗口不合的提交是被拒絕的輸入，不是伺服器錯誤
func (h *RoundHandler) Result(c *gin.Context) {
	var input ResultInputBody
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// 缺少回合或簽名是格式錯誤，不當成簽名驗證失敗
	if input.Round.Seed == "" || input.Round.Sig == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少回合參數或簽名"})
		return
	}

	err := h.roomService.SubmitResult(input.Room, input.Result, input.Round)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(err, service.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidSignature):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrOutsideTimeWindow), errors.Is(err, service.ErrInvalidResult):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "寫入結果失敗"})
	}
}

// SummaryInput 定義彙總請求的結構
type SummaryInput struct {
	Room    string `json:"room" binding:"required"`
	RoundID string `json:"roundId" binding:"required"`
}

// Summary 產生回合彙總並廣播給房間
func (h *RoundHandler) Summary(c *gin.Context) {
	var input SummaryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.roomService.Summarize(input.Room, input.RoundID)
	if err != nil {
		if errors.Is(err, service.ErrRoundNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "產生彙總失敗"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "summary": summary})
}
