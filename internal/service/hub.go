package service

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crash_aim/internal/models"
)

// Client 代表一個已通過頻道授權的 WebSocket 連線
type Client struct {
	Conn   *websocket.Conn      // WebSocket 連接
	UserID string               // 訪客身分 ID
	Name   string               // 顯示名稱，主持人推導依據
	Room   string               // 已正規化的房間名稱
	SendCh chan *models.Message // 消息發送通道，用於異步傳送消息
	done   chan struct{}        // removeClient 關閉，通知 writePump 與廣播者停手
}

// Member 是房間成員名單中的一項
type Member struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// PresenceHandler 接收頻道的成員變動與 client- 事件
// Hub 只負責連線與扇出，房間協調邏輯全部在 handler 這一側
type PresenceHandler interface {
	MemberAdded(room, userID, name string)
	MemberRemoved(room, userID, name string)
	ClientEvent(client *Client, msg *models.Message)
}

// Hub 管理所有房間頻道的 WebSocket 連線與事件扇出
type Hub struct {
	clients    map[string]map[*Client]bool // 兩層 map: room -> client -> bool
	clientsMux sync.RWMutex                // 用於保護 clients map 的讀寫鎖
	handler    PresenceHandler
}

// NewHub 創建並初始化新的頻道服務
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]bool),
	}
}

// SetHandler 註冊成員變動與客戶端事件的接收者
func (h *Hub) SetHandler(handler PresenceHandler) {
	h.handler = handler
}

// HandleConnection 處理新的頻道訂閱
// room 必須已正規化，身分由呼叫端在升級連線前驗證完畢
func (h *Hub) HandleConnection(conn *websocket.Conn, room, userID, name string) {
	client := &Client{
		Conn:   conn,
		UserID: userID,
		Name:   name,
		Room:   room,
		SendCh: make(chan *models.Message, 256),
		done:   make(chan struct{}),
	}

	h.addClient(client)

	// 確保連接關閉時清理資源
	// SendCh 永遠不關閉：廣播者可能還拿著這個 client 的快照，
	// 改由 removeClient 關閉 done 通知各方停手
	defer func() {
		h.removeClient(client)
		conn.Close()
	}()

	go h.writePump(client)
	h.readPump(client)
}

// readPump 持續監聽並處理從客戶端接收的事件
func (h *Hub) readPump(client *Client) {
	client.Conn.SetReadLimit(4096)
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket unexpected close error: %v", err)
			}
			break
		}

		var msg models.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("message parse error: %v", err)
			continue
		}

		// 發送者與房間以連線身分為準，不信任 payload
		msg.From = client.Name
		msg.Room = client.Room
		msg.Timestamp = time.Now()

		// 只接受 client- 事件，轉發給同房間其他成員並通知 handler
		if !strings.HasPrefix(msg.Event, "client-") {
			log.Printf("ignoring non-client event %q from %s", msg.Event, client.UserID)
			continue
		}
		h.relayToRoom(client, &msg)
		if h.handler != nil {
			h.handler.ClientEvent(client, &msg)
		}
	}
}

// writePump 處理向客戶端發送事件的邏輯
func (h *Hub) writePump(client *Client) {
	// 心跳檢查計時器
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-client.done:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-client.SendCh:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			w, err := client.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			messageBytes, err := json.Marshal(message)
			if err != nil {
				log.Printf("message encoding error: %v", err)
				continue
			}

			if _, err := w.Write(messageBytes); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// BroadcastToRoom 向房間內的所有客戶端廣播伺服器事件
func (h *Hub) BroadcastToRoom(room string, message *models.Message) {
	h.clientsMux.RLock()
	clients := make([]*Client, 0, len(h.clients[room]))
	for client := range h.clients[room] {
		clients = append(clients, client)
	}
	h.clientsMux.RUnlock()

	for _, client := range clients {
		h.send(client, message)
	}
}

// relayToRoom 將成員發出的事件轉發給同房間其他成員（不回送給發送者）
func (h *Hub) relayToRoom(sender *Client, message *models.Message) {
	h.clientsMux.RLock()
	clients := make([]*Client, 0, len(h.clients[sender.Room]))
	for client := range h.clients[sender.Room] {
		if client != sender {
			clients = append(clients, client)
		}
	}
	h.clientsMux.RUnlock()

	for _, client := range clients {
		h.send(client, message)
	}
}

func (h *Hub) send(client *Client, message *models.Message) {
	select {
	case <-client.done:
		// 成員已被移除，丟棄這則消息
	case client.SendCh <- message:
		// 成功加入發送隊列
	default:
		// 客戶端消息隊列已滿，關閉連接
		h.removeClient(client)
		client.Conn.Close()
	}
}

// Members 回傳房間目前的成員快照
func (h *Hub) Members(room string) []Member {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	members := make([]Member, 0, len(h.clients[room]))
	for client := range h.clients[room] {
		members = append(members, Member{UserID: client.UserID, Name: client.Name})
	}
	return members
}

// addClient 登記新連線並發出 presence 事件
func (h *Hub) addClient(client *Client) {
	h.clientsMux.Lock()
	if h.clients[client.Room] == nil {
		h.clients[client.Room] = make(map[*Client]bool)
	}
	h.clients[client.Room][client] = true
	h.clientsMux.Unlock()

	// 先回覆訂閱成功與完整成員名單，再通知其他成員
	if msg, err := models.NewEventMessage(models.EventSubscribed, client.Room, h.Members(client.Room)); err == nil {
		h.send(client, msg)
	}
	if msg, err := models.NewEventMessage(models.EventMemberAdded, client.Room,
		Member{UserID: client.UserID, Name: client.Name}); err == nil {
		h.relayToRoom(client, msg)
	}
	h.relayToRoom(client, models.NewSystemMessage(client.Room, client.Name+" 加入了房間"))

	if h.handler != nil {
		h.handler.MemberAdded(client.Room, client.UserID, client.Name)
	}
}

// removeClient 安全地移除連線並發出 presence 事件
func (h *Hub) removeClient(client *Client) {
	h.clientsMux.Lock()
	removed := false
	if clients, ok := h.clients[client.Room]; ok {
		if clients[client] {
			delete(clients, client)
			removed = true
			// 與移除同一個臨界區內通知，之後的 send 一律走丟棄分支
			close(client.done)
		}
		// 如果房間空了，刪除房間
		if len(clients) == 0 {
			delete(h.clients, client.Room)
		}
	}
	h.clientsMux.Unlock()

	if !removed {
		return
	}

	if msg, err := models.NewEventMessage(models.EventMemberRemoved, client.Room,
		Member{UserID: client.UserID, Name: client.Name}); err == nil {
		h.BroadcastToRoom(client.Room, msg)
	}
	h.BroadcastToRoom(client.Room, models.NewSystemMessage(client.Room, client.Name+" 離開了房間"))

	if h.handler != nil {
		h.handler.MemberRemoved(client.Room, client.UserID, client.Name)
	}
}
