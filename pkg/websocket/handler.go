package websocket

import (
	"net/http"
	"time"

	"warbler/config"
	"warbler/pkg/logger"
	"warbler/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 会话cookie为SameSite=Lax
	},
}

// Handler 通知连接的Gin路由处理函数
// 须挂在会话中间件之后，匿名用户拒绝升级
func Handler(m *Manager, cfg config.WebSocketConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint(logger.ContextUserIDKey)
		if userID == 0 {
			response.Unauthorized(c)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("WebSocket升级失败", zap.Error(err))
			return
		}

		client := &Client{
			UserID: userID,
			Conn:   conn,
			Send:   make(chan []byte, 256),
		}
		m.AddClient(client)
		defer m.RemoveClient(client)

		go writePump(client, cfg.PingInterval)
		readPump(client, cfg.ReadTimeout)
	}
}

// writePump 写协程：转发通知并定时发送ping
func writePump(client *Client, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = client.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

// readPump 读协程：只处理心跳，超时未收到任何读事件则断开
func readPump(client *Client, readTimeout time.Duration) {
	conn := client.Conn
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}
