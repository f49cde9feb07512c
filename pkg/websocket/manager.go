package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"warbler/pkg/logger"
	"warbler/pkg/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client 代表一个WebSocket连接的用户
// UserID: 用户ID
// Conn: WebSocket连接
// Send: 发送消息的通道

type Client struct {
	UserID uint
	Conn   *websocket.Conn
	Send   chan []byte
}

// LikeEvent 点赞通知
type LikeEvent struct {
	Type      string `json:"type"`
	MessageID uint   `json:"message_id"`
	LikerID   uint   `json:"liker_id"`
	Timestamp int64  `json:"timestamp"`
}

// Manager 管理所有在线用户的通知连接，并发安全
// 每个用户保留最新的一个连接；用户不在线时通知直接丢弃

type Manager struct {
	clients map[uint]*Client // 在线用户
	lock    sync.RWMutex
}

// NewManager 创建连接管理器
func NewManager() *Manager {
	return &Manager{clients: make(map[uint]*Client)}
}

// AddClient 添加新连接，替换该用户的旧连接
func (m *Manager) AddClient(client *Client) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if old, ok := m.clients[client.UserID]; ok {
		close(old.Send)
	} else {
		metrics.WebSocketConnections.Inc()
	}
	m.clients[client.UserID] = client
}

// RemoveClient 移除连接，连接已被替换时不做处理
func (m *Manager) RemoveClient(client *Client) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if c, ok := m.clients[client.UserID]; ok && c == client {
		close(c.Send)
		delete(m.clients, client.UserID)
		metrics.WebSocketConnections.Dec()
	}
}

// SendToUser 推送消息给指定用户，返回是否投递到发送队列
func (m *Manager) SendToUser(userID uint, msg []byte) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	client, ok := m.clients[userID]
	if !ok {
		return false
	}
	select {
	case client.Send <- msg:
		return true
	default:
		// 发送队列已满
		return false
	}
}

// IsOnline 判断用户是否在线
func (m *Manager) IsOnline(userID uint) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	_, ok := m.clients[userID]
	return ok
}

// NotifyLike 通知消息所有者其消息被点赞
func (m *Manager) NotifyLike(ownerID, messageID, likerID uint) {
	payload, err := json.Marshal(LikeEvent{
		Type:      "like",
		MessageID: messageID,
		LikerID:   likerID,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		logger.Error("点赞通知序列化失败", zap.Error(err))
		return
	}
	m.SendToUser(ownerID, payload)
}
