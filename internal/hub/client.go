package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"party-rooms/internal/service"
)

// Client 代表一个订阅房间频道的 WebSocket 连接。
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	roomID uint
	actor  service.Actor
	send   chan []byte

	sendMu sync.Mutex
	closed bool
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, roomID uint, actor service.Actor) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		roomID: roomID,
		actor:  actor,
		send:   make(chan []byte, 256),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// enqueue 非阻塞地放入发送队列，通道已关闭或已满时返回 false。
func (c *Client) enqueue(message []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump 将消息从 WebSocket 连接泵送到 Hub 的 messageChan。
func (c *Client) ReadPump() {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": c.actor.UserID, "room_id": c.roomID})
	defer func() {
		select {
		case c.hub.messageChan <- HubMessage{Type: "unregister", Client: c}:
		case <-c.hub.done:
		case <-time.After(1 * time.Second):
			logCtx.Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		logCtx.Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			break
		}
		if messageType != websocket.TextMessage {
			logCtx.Debugf("Received non-text message type: %d", messageType)
			continue
		}

		if !c.hub.QueueMessage(HubMessage{
			Type:    "client_event",
			RoomID:  c.roomID,
			UserID:  c.actor.UserID,
			Client:  c,
			RawData: message,
		}) {
			logCtx.Warn("Hub message channel full, dropping client message")
		}
	}
}

// WritePump 将 send 通道中的消息写入 WebSocket 连接，并定期发送 Ping。
func (c *Client) WritePump() {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": c.actor.UserID, "room_id": c.roomID})
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logCtx.Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				logCtx.Info("Hub closed send channel")
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logCtx.WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logCtx.WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}

func (c *Client) RoomID() uint         { return c.roomID }
func (c *Client) UserID() uint         { return c.actor.UserID }
func (c *Client) Actor() service.Actor { return c.actor }
func (c *Client) CloseConn()           { c.conn.Close() }
