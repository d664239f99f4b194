package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"crash_aim/internal/utils"
)

// AuthHandler 處理訪客身分與頻道授權憑證的簽發
type AuthHandler struct {
	secret string
}

// NewAuthHandler 創建一個新的 AuthHandler 實例
func NewAuthHandler(secret string) *AuthHandler {
	return &AuthHandler{secret: secret}
}

// GuestInput 定義訪客登入請求的結構
type GuestInput struct {
	Name string `json:"name"`
}

// Guest 簽發一個訪客身分與頻道授權 token
// 沒有帳號系統：身分是顯示名稱加上一次性的 anon id
func (h *AuthHandler) Guest(c *gin.Context) {
	var input GuestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := strings.Join(strings.Fields(input.Name), " ")
	if name == "" {
		name = "Player"
	}
	if len(name) > 32 {
		name = name[:32]
	}

	userID := "anon_" + uuid.NewString()
	token, err := utils.GenerateToken(h.secret, userID, name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "獲取token失敗"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"user_id": userID,
		"name":    name,
	})
}
