package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"ai_mentor_backend/pkg/logger"
	"ai_mentor_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	shardCount     = 32

	notificationChannel = "notifications"
)

const (
	EventHomeworkPublished = "HOMEWORK_PUBLISHED"
	EventHomeworkClosed    = "HOMEWORK_CLOSED"
	EventSubmissionGraded  = "SUBMISSION_GRADED"
)

// Event 推送给客户端的消息
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Notifier 业务事件在事务提交后推送，失败不影响业务结果
type Notifier interface {
	Notify(userIDs []uint, event Event)
}

type noopNotifier struct{}

func (noopNotifier) Notify([]uint, Event) {}

type Client struct {
	Hub    *NotificationHub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint
	// 通知是单向的，上行消息只用于保活，超限直接丢弃
	Limiter *rate.Limiter
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.leave(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.UserID))
			}
			return
		}
		if !c.Limiter.Allow() {
			continue
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 每条事件单独一帧，客户端按帧解析 JSON
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type shard struct {
	clients map[uint]*Client
	mu      sync.RWMutex
}

// NotificationHub 按用户分片保存本机连接；配置 Redis 时经 pub/sub 在多实例间扇出
type NotificationHub struct {
	shards     [shardCount]*shard
	register   chan *Client
	unregister chan *Client
	Redis      *redis.Client
	// Upgrader.CheckOrigin 为空时只允许同源握手
	Upgrader   websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
}

func NewNotificationHub(rdb *redis.Client) *NotificationHub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &NotificationHub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		Redis:      rdb,
		Upgrader:   websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		ctx:        ctx,
		cancel:     cancel,
	}
	for i := 0; i < shardCount; i++ {
		h.shards[i] = &shard{clients: make(map[uint]*Client)}
	}
	return h
}

func (h *NotificationHub) getShard(userID uint) *shard {
	return h.shards[userID%shardCount]
}

type pubSubMessage struct {
	TargetUsers []uint          `json:"targetUsers"`
	Payload     json.RawMessage `json:"payload"`
}

// Run 阻塞直到 Stop
func (h *NotificationHub) Run() {
	if h.Redis != nil {
		pubsub := h.Redis.Subscribe(h.ctx, notificationChannel)
		defer pubsub.Close()
		go func() {
			for msg := range pubsub.Channel() {
				var ps pubSubMessage
				if err := json.Unmarshal([]byte(msg.Payload), &ps); err != nil {
					logger.Log.Error("通知消息解析失败", zap.Error(err))
					continue
				}
				h.pushLocal(ps.TargetUsers, ps.Payload)
			}
		}()
	}

	for {
		select {
		case client := <-h.register:
			s := h.getShard(client.UserID)
			s.mu.Lock()
			// 同一用户重复连接时踢掉旧连接
			if old, ok := s.clients[client.UserID]; ok {
				close(old.Send)
			} else {
				monitoring.OnlineUsers.Inc()
			}
			s.clients[client.UserID] = client
			s.mu.Unlock()

		case client := <-h.unregister:
			s := h.getShard(client.UserID)
			s.mu.Lock()
			if cur, ok := s.clients[client.UserID]; ok && cur == client {
				delete(s.clients, client.UserID)
				close(client.Send)
				monitoring.OnlineUsers.Dec()
			}
			s.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *NotificationHub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *NotificationHub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// Stop 关闭所有本机连接
func (h *NotificationHub) Stop() {
	h.cancel()

	closed := 0
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.Lock()
		for userID, client := range s.clients {
			close(client.Send)
			delete(s.clients, userID)
			closed++
		}
		s.mu.Unlock()
	}
	monitoring.OnlineUsers.Set(0)
	logger.Log.Info("NotificationHub stopped", zap.Int("closedConnections", closed))
}

// Notify 实现 Notifier
func (h *NotificationHub) Notify(userIDs []uint, event Event) {
	if len(userIDs) == 0 {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Log.Error("通知序列化失败", zap.String("type", event.Type), zap.Error(err))
		return
	}
	monitoring.NotificationsSent.WithLabelValues(event.Type).Inc()

	if h.Redis == nil {
		h.pushLocal(userIDs, payload)
		return
	}
	msg, _ := json.Marshal(pubSubMessage{TargetUsers: userIDs, Payload: payload})
	if err := h.Redis.Publish(h.ctx, notificationChannel, msg).Err(); err != nil {
		logger.Log.Warn("Redis 发布通知失败，仅推送本机连接", zap.Error(err))
		h.pushLocal(userIDs, payload)
	}
}

func (h *NotificationHub) pushLocal(userIDs []uint, payload []byte) {
	for _, id := range userIDs {
		s := h.getShard(id)
		s.mu.RLock()
		if client, ok := s.clients[id]; ok {
			select {
			case client.Send <- payload:
			default:
				logger.Log.Debug("通知缓冲区已满，丢弃", zap.Uint("userId", id))
			}
		}
		s.mu.RUnlock()
	}
}

// IsOnline 只查本机连接
func (h *NotificationHub) IsOnline(userID uint) bool {
	s := h.getShard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.clients[userID]
	return ok
}

func ServeWs(hub *NotificationHub, w http.ResponseWriter, r *http.Request, userID uint) {
	conn, err := hub.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", userID))
		return
	}
	client := &Client{
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		UserID:  userID,
		Limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
	if !hub.join(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
