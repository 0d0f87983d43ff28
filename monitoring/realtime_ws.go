package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType 消息类型
type MessageType string

const (
	PredictionEvent MessageType = "prediction"
	BatchScored     MessageType = "batch_scored"
	ModelStatus     MessageType = "model_status"
	Heartbeat       MessageType = "heartbeat"
)

// Message 推送给仪表盘的消息
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	ID        string          `json:"id"`
}

// PredictionMessage 单条预测事件
type PredictionMessage struct {
	RequestID   string   `json:"request_id"`
	Source      string   `json:"source"`
	Records     int      `json:"records"`
	Failures    int      `json:"failures"`
	Probability *float64 `json:"probability,omitempty"`
}

// BatchMessage 批量评分事件
type BatchMessage struct {
	BatchID   string         `json:"batch_id"`
	Filename  string         `json:"filename"`
	Rows      int            `json:"rows"`
	Healthy   int            `json:"healthy"`
	Failures  int            `json:"failures"`
	Filled    []string       `json:"filled_defaults,omitempty"`
	Fallbacks map[string]int `json:"fallbacks,omitempty"`
}

// ModelStatusMessage 模型状态
type ModelStatusMessage struct {
	Loaded bool   `json:"loaded"`
	Path   string `json:"path"`
	Error  string `json:"error,omitempty"`
}

// ClientMessage 客户端消息
type ClientMessage struct {
	Type  string      `json:"type"` // subscribe, unsubscribe, ping
	Topic MessageType `json:"topic"`
}

// Client WebSocket客户端
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	clientID string

	mu            sync.Mutex
	subscriptions map[MessageType]bool // 为空表示接收全部
}

func (c *Client) wants(t MessageType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions) == 0 || c.subscriptions[t] || t == Heartbeat
}

type outbound struct {
	kind    MessageType
	payload []byte
}

// Hub WebSocket中心
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	log        *zap.SugaredLogger
	heartbeat  time.Duration
	done       chan struct{}
}

// NewHub 创建WebSocket中心
func NewHub(log *zap.SugaredLogger, allowedOrigins []string) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log:       log,
		heartbeat: 30 * time.Second,
		done:      make(chan struct{}),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Run 运行中心直到ctx结束。只能调用一次
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	defer h.log.Infow("websocket hub stopped")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debugw("dashboard client connected", "client", client.clientID, "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debugw("dashboard client disconnected", "client", client.clientID, "total", total)

		case msg := <-h.broadcast:
			h.fanOut(msg)

		case <-ticker.C:
			if payload, err := encode(Heartbeat, map[string]string{"status": "alive"}); err == nil {
				h.fanOut(outbound{kind: Heartbeat, payload: payload})
			}

		case <-ctx.Done():
			// 关闭所有连接
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) fanOut(msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.wants(msg.kind) {
			continue
		}
		select {
		case client.send <- msg.payload:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// Clients 当前连接数
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket 处理WebSocket连接
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn:          conn,
		send:          make(chan []byte, 64),
		clientID:      uuid.NewString(),
		subscriptions: make(map[MessageType]bool),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump(h.log)
	go client.readPump(h)
}

// Publish 广播事件。队列满时丢弃
func (h *Hub) Publish(kind MessageType, data any) error {
	if h == nil {
		return nil
	}
	payload, err := encode(kind, data)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- outbound{kind: kind, payload: payload}:
	default:
		h.log.Warnw("websocket broadcast queue is full, dropping message", "type", kind)
	}
	return nil
}

func encode(kind MessageType, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", kind, err)
	}
	return json.Marshal(Message{Type: kind, Timestamp: time.Now().UTC(), Data: raw, ID: uuid.NewString()})
}

// 客户端连接参数
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

// writePump WebSocket写入泵
func (c *Client) writePump(log *zap.SugaredLogger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debugw("websocket write error", "client", c.clientID, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump WebSocket读取泵。客户端只发送订阅消息，超限帧直接断开
func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debugw("websocket read error", "client", c.clientID, "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.handleClientMessage(msg)
	}
}

// handleClientMessage 处理客户端消息
func (c *Client) handleClientMessage(msg ClientMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Type {
	case "subscribe":
		c.subscriptions[msg.Topic] = true
	case "unsubscribe":
		delete(c.subscriptions, msg.Topic)
	}
}
