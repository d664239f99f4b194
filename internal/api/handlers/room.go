package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"crash_aim/internal/service"
)

// RoomHandler 處理房間狀態查詢
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 創建一個新的 RoomHandler 實例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// GetRoom 回傳房間目前的成員、準備狀態與主持人
func (h *RoomHandler) GetRoom(c *gin.Context) {
	snapshot, err := h.roomService.Snapshot(c.Param("room"))
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "房間不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "無法查詢房間"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
