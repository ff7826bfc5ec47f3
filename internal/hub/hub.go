package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"party-rooms/internal/dto"
	"party-rooms/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type    string // "register", "unregister", "client_event"
	RoomID  uint
	UserID  uint
	Client  *Client
	RawData []byte // 仅用于 client_event
}

// RoomRealtime 是 Hub 依赖的业务接口：初始快照与客户端上行消息。
type RoomRealtime interface {
	Snapshot(ctx context.Context, roomID uint) (dto.RoomEvent, error)
	HandleClientMessage(ctx context.Context, actor service.Actor, roomID uint, msg dto.ClientMessage) error
}

// EventBus 在多个实例之间转发房间事件
type EventBus interface {
	Publish(ctx context.Context, event dto.RoomEvent) error
	Subscribe(ctx context.Context, deliver func(dto.RoomEvent)) error
}

// Hub 维护每个房间的 WebSocket 客户端，并实现 service.Broadcaster。
// 配置了 EventBus 时事件先发布到 Redis，由订阅循环投递给本实例的客户端。
type Hub struct {
	messageChan chan HubMessage
	done        chan struct{}
	stopOnce    sync.Once

	// map[roomID]map[*Client]bool
	rooms   map[uint]map[*Client]bool
	roomsMu sync.RWMutex

	realtime RoomRealtime
	bus      EventBus
}

var _ service.Broadcaster = (*Hub)(nil)

// NewHub 创建 Hub。bus 为 nil 时只在本实例内投递。
func NewHub(bus EventBus) *Hub {
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		done:        make(chan struct{}),
		rooms:       make(map[uint]map[*Client]bool),
		bus:         bus,
	}
}

// Bind 注入房间实时业务。服务依赖 Hub 作为广播器，所以在构造之后绑定。
func (h *Hub) Bind(realtime RoomRealtime) {
	if realtime == nil {
		panic("RoomRealtime cannot be nil for Hub")
	}
	h.realtime = realtime
}

// Run 启动 Hub 的主事件处理循环，在单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for {
		select {
		case msg := <-h.messageChan:
			switch msg.Type {
			case "register":
				h.registerClient(msg.Client)
			case "unregister":
				h.unregisterClient(msg.Client)
			case "client_event":
				go h.handleClientEvent(msg)
			default:
				log.Warnf("Hub: Received unknown message type: %s from user %d in room %d", msg.Type, msg.UserID, msg.RoomID)
			}
		case <-h.done:
			h.closeAllClients()
			log.Info("Hub is shutting down...")
			return
		}
	}
}

// RunFanout 订阅 EventBus 并把事件投递给本实例的客户端，阻塞直到 ctx 结束。
func (h *Hub) RunFanout(ctx context.Context) {
	if h.bus == nil {
		return
	}
	for {
		err := h.bus.Subscribe(ctx, h.deliver)
		if ctx.Err() != nil {
			return
		}
		logrus.WithError(err).Warn("Hub: event subscription ended, resubscribing")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// Stop 通知 Run 循环退出并关闭所有客户端的发送通道，可重复调用。
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) closeAllClients() {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	for roomID, roomClients := range h.rooms {
		for client := range roomClients {
			client.closeSend()
		}
		delete(h.rooms, roomID)
	}
}

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": client.UserID(),
		"action":  "registerClient",
	})

	h.roomsMu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
		logCtx.Info("Client list created for new room")
	}
	h.rooms[roomID][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to Hub")

	go h.sendInitialSnapshot(client)
}

func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": client.UserID(),
		"action":  "unregisterClient",
	})

	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	roomClients, ok := h.rooms[roomID]
	if !ok {
		logCtx.Warn("Room not found during client unregister")
		return
	}
	if _, ok := roomClients[client]; !ok {
		logCtx.Warn("Client not found in room during unregister")
		return
	}
	delete(roomClients, client)
	client.closeSend()
	if len(roomClients) == 0 {
		delete(h.rooms, roomID)
		logCtx.Info("Room empty, removed from Hub")
	}
	logCtx.Info("Client unregistered from Hub")
}

// sendInitialSnapshot 向新连接的客户端发送房间快照
func (h *Hub) sendInitialSnapshot(client *Client) {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   client.RoomID(),
		"user_id":   client.UserID(),
		"operation": "sendInitialSnapshot",
	})
	if h.realtime == nil {
		logCtx.Error("Hub has no realtime service bound")
		return
	}

	event, err := h.realtime.Snapshot(context.Background(), client.RoomID())
	if err != nil {
		logCtx.WithError(err).Error("Failed to build snapshot")
		h.sendError(client, err)
		return
	}
	bytes, err := json.Marshal(event)
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal snapshot message")
		return
	}
	if !client.enqueue(bytes) {
		logCtx.Warn("Client send channel full when trying to send snapshot, message dropped")
	}
}

// handleClientEvent 解析并处理客户端上行消息，错误只回复给发送者。
func (h *Hub) handleClientEvent(msg HubMessage) {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   msg.RoomID,
		"user_id":   msg.UserID,
		"operation": "handleClientEvent",
	})

	var clientMsg dto.ClientMessage
	if err := json.Unmarshal(msg.RawData, &clientMsg); err != nil {
		logCtx.WithError(err).Warn("Failed to decode client message")
		h.sendError(msg.Client, service.ErrInvalidInput)
		return
	}
	if h.realtime == nil {
		logCtx.Error("Hub has no realtime service bound")
		return
	}

	if err := h.realtime.HandleClientMessage(context.Background(), msg.Client.Actor(), msg.RoomID, clientMsg); err != nil {
		logCtx.WithError(err).WithField("type", clientMsg.Type).Debug("Client message rejected")
		h.sendError(msg.Client, err)
	}
}

// sendError 将错误以 {"type":"error"} 的形式发回给单个客户端
func (h *Hub) sendError(client *Client, err error) {
	if client == nil {
		return
	}
	payload := dto.ErrorDTO{Type: dto.EventError, Code: service.ErrorCode(err), Message: err.Error()}
	var silenced *service.SilencedError
	if errors.As(err, &silenced) {
		until := silenced.Until
		payload.Until = &until
	}
	var svcErr *service.Error
	if !errors.As(err, &svcErr) && silenced == nil {
		payload.Message = service.ErrInternalServer.Message
	}
	bytes, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return
	}
	client.enqueue(bytes)
}

// Broadcast 实现 service.Broadcaster
func (h *Hub) Broadcast(ctx context.Context, event dto.RoomEvent) {
	if h.bus != nil {
		if err := h.bus.Publish(ctx, event); err == nil {
			return
		}
		logrus.WithFields(logrus.Fields{"room_id": event.RoomID, "type": event.Type}).Warn("Falling back to local delivery")
	}
	h.deliver(event)
}

// deliver 将事件发送给本实例该房间的所有客户端
func (h *Hub) deliver(event dto.RoomEvent) {
	message, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).WithField("type", event.Type).Error("Failed to marshal room event")
		return
	}

	h.roomsMu.RLock()
	roomClients := h.rooms[event.RoomID]
	clientsToSend := make([]*Client, 0, len(roomClients))
	for client := range roomClients {
		clientsToSend = append(clientsToSend, client)
	}
	h.roomsMu.RUnlock()

	if len(clientsToSend) == 0 {
		return
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":         event.RoomID,
		"type":            event.Type,
		"recipient_count": len(clientsToSend),
	})
	logCtx.Debug("Broadcasting message to clients")

	for _, client := range clientsToSend {
		if !client.enqueue(message) {
			logCtx.WithField("receiver_user_id", client.UserID()).Warn("Client send channel full during broadcast, skipping this client")
		}
	}

	// 离开者已收到通知，之后断开其在该房间的连接
	if event.Type != dto.EventMemberLeft {
		return
	}
	leftUserID, ok := memberLeftUser(event)
	if !ok {
		logCtx.Warn("Malformed member_left payload")
		return
	}
	for _, client := range clientsToSend {
		if client.UserID() == leftUserID {
			h.unregisterClient(client)
		}
	}
}

// memberLeftUser 取出离开者 ID。经过 EventBus 的事件载荷已是通用 JSON 对象。
func memberLeftUser(event dto.RoomEvent) (uint, bool) {
	switch payload := event.Payload.(type) {
	case dto.MemberLeftPayload:
		return payload.UserID, payload.UserID != 0
	case *dto.MemberLeftPayload:
		if payload == nil {
			return 0, false
		}
		return payload.UserID, payload.UserID != 0
	}
	raw, err := json.Marshal(event.Payload)
	if err != nil {
		return 0, false
	}
	var payload dto.MemberLeftPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.UserID == 0 {
		return 0, false
	}
	return payload.UserID, true
}

// ClientCount 返回本实例某个房间的连接数
func (h *Hub) ClientCount(roomID uint) int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms[roomID])
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。队列满时返回 false。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"room_id":      msg.RoomID,
			"user_id":      msg.UserID,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}
