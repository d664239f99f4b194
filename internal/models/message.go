package models

import (
	"encoding/json"
	"time"
)

// 頻道事件名稱
// client- 前綴的事件由成員發出並轉發給同房間的其他成員，
// 其餘為伺服器發出的事件
const (
	EventSubscribed    = "subscription-succeeded"
	EventMemberAdded   = "member-added"
	EventMemberRemoved = "member-removed"
	EventSystem        = "system"
	EventClientReady   = "client-ready"
	EventClientResult  = "client-round-result"
	EventRoundStart    = "mp-start"
	EventPartialResult = "partial-result"
	EventRoundSummary  = "round-summary"
)

// Message 代表一個頻道上的事件封包，同時滿足 WebSocket 收送兩個方向
type Message struct {
	Event     string          `json:"event"`
	Room      string          `json:"room,omitempty"`
	From      string          `json:"from,omitempty"` // 發送者顯示名稱，伺服器事件為空
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEventMessage 建立一個帶有 JSON 資料的頻道事件
func NewEventMessage(event, room string, data interface{}) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Event:     event,
		Room:      room,
		Data:      raw,
		Timestamp: time.Now(),
	}, nil
}

// NewSystemMessage 建立一個新的系統消息
func NewSystemMessage(room, content string) *Message {
	raw, _ := json.Marshal(map[string]string{"content": content})
	return &Message{
		Event:     EventSystem,
		Room:      room,
		Data:      raw,
		Timestamp: time.Now(),
	}
}
