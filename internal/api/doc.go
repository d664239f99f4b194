// Package api 處理 HTTP 請求路由和處理。
//
// 這個包包含了所有的 HTTP 處理器（handlers），涵蓋訪客認證、
// 回合簽名與開始、結果回報、排行榜以及房間頻道的 WebSocket 訂閱。
// 它負責將 HTTP 請求轉換為適當的服務調用，並將結果轉換回 HTTP 響應。
package api
