package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Event 推送给浏览器的一条消息
type Event struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Observer 连接数与丢弃数上报
type Observer interface {
	SSEStreamOpened()
	SSEStreamClosed()
	SSEDropped()
}

type Client struct {
	id     string
	userID string
	groups map[string]bool
	ch     chan []byte
	done   chan struct{}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

// Hub 维护 用户 -> 连接集合 的进程内映射，满缓冲直接丢弃，不保证顺序
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	users    map[string]map[string]bool // userID -> clientID set
	groups   map[string]map[string]bool // group -> clientID set
	interval time.Duration
	retryMs  int
	bufSize  int
	observer Observer
	broker   Broker
	cancel   context.CancelFunc
}

func NewHub(interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Hub{
		clients:  make(map[string]*Client),
		users:    make(map[string]map[string]bool),
		groups:   make(map[string]map[string]bool),
		interval: interval,
		retryMs:  5000,
		bufSize:  64,
	}
}

func (h *Hub) WithObserver(o Observer) *Hub {
	h.observer = o
	return h
}

// WithBroker 多实例部署时通过 broker 转发，所有实例都从订阅中投递
func (h *Hub) WithBroker(b Broker) (*Hub, error) {
	ctx, cancel := context.WithCancel(context.Background())
	if err := b.Subscribe(ctx, h.deliver); err != nil {
		cancel()
		return h, err
	}
	h.mu.Lock()
	h.broker = b
	h.cancel = cancel
	h.mu.Unlock()
	return h, nil
}

func (h *Hub) AddClient(userID string, groups ...string) *Client {
	c := &Client{
		id:     uuid.NewString(),
		userID: userID,
		groups: make(map[string]bool),
		ch:     make(chan []byte, h.bufSize),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	if h.users[userID] == nil {
		h.users[userID] = make(map[string]bool)
	}
	h.users[userID][c.id] = true
	for _, g := range groups {
		h.join(c, g)
	}
	h.mu.Unlock()
	if h.observer != nil {
		h.observer.SSEStreamOpened()
	}
	return c
}

func (h *Hub) RemoveClient(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		close(c.done)
		for g := range c.groups {
			delete(h.groups[g], id)
			if len(h.groups[g]) == 0 {
				delete(h.groups, g)
			}
		}
		delete(h.users[c.userID], id)
		if len(h.users[c.userID]) == 0 {
			delete(h.users, c.userID)
		}
		delete(h.clients, id)
	}
	h.mu.Unlock()
	if ok && h.observer != nil {
		h.observer.SSEStreamClosed()
	}
}

func (h *Hub) Join(id, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		h.join(c, group)
	}
}

func (h *Hub) join(c *Client, group string) {
	c.groups[group] = true
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]bool)
	}
	h.groups[group][c.id] = true
}

func (h *Hub) Leave(id, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(c.groups, group)
	delete(h.groups[group], id)
}

// SendToUser 推送到该用户的全部连接
func (h *Hub) SendToUser(userID string, ev Event) {
	h.publish(Envelope{Target: TargetUser, Key: userID, Event: ev})
}

func (h *Hub) SendToGroup(group string, ev Event) {
	h.publish(Envelope{Target: TargetGroup, Key: group, Event: ev})
}

func (h *Hub) Broadcast(ev Event) {
	h.publish(Envelope{Target: TargetAll, Event: ev})
}

func (h *Hub) publish(env Envelope) {
	h.mu.RLock()
	b := h.broker
	h.mu.RUnlock()
	if b != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := b.Publish(ctx, env); err == nil {
			return
		}
	}
	h.deliver(env)
}

// deliver 投递到本进程的连接
func (h *Hub) deliver(env Envelope) {
	msg, err := formatEvent(env.Event)
	if err != nil {
		return
	}
	h.mu.RLock()
	var targets []*Client
	switch env.Target {
	case TargetUser:
		for id := range h.users[env.Key] {
			targets = append(targets, h.clients[id])
		}
	case TargetGroup:
		for id := range h.groups[env.Key] {
			targets = append(targets, h.clients[id])
		}
	default:
		for _, c := range h.clients {
			targets = append(targets, c)
		}
	}
	dropped := 0
	for _, c := range targets {
		if c == nil {
			continue
		}
		select {
		case c.ch <- msg:
		default:
			dropped++
		}
	}
	h.mu.RUnlock()
	if h.observer != nil {
		for i := 0; i < dropped; i++ {
			h.observer.SSEDropped()
		}
	}
}

// Online 返回在线用户及其连接数
func (h *Hub) Online() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.users))
	for uid, set := range h.users {
		out[uid] = len(set)
	}
	return out
}

// OnlineUsers 返回排序后的在线用户 ID
func (h *Hub) OnlineUsers() []string {
	online := h.Online()
	ids := make([]string, 0, len(online))
	for id := range online {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) StreamCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close 断开所有连接并停止订阅
func (h *Hub) Close() error {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	b, cancel := h.broker, h.cancel
	h.mu.RUnlock()
	for _, id := range ids {
		h.RemoveClient(id)
	}
	if cancel != nil {
		cancel()
	}
	if b != nil {
		return b.Close()
	}
	return nil
}

func formatEvent(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	if ev.ID != "" {
		fmt.Fprintf(&sb, "id: %s\n", ev.ID)
	}
	if ev.Type != "" {
		fmt.Fprintf(&sb, "event: %s\n", ev.Type)
	}
	fmt.Fprintf(&sb, "data: %s\n\n", data)
	return []byte(sb.String()), nil
}

// ReplayFunc 根据 Last-Event-ID 返回需要补发的事件
type ReplayFunc func(lastEventID string) []Event

// Serve 持有连接直到客户端断开或连接被移除
func (h *Hub) Serve(c *gin.Context, userID string, groups []string, replay ReplayFunc) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "streaming unsupported"})
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	client := h.AddClient(userID, groups...)
	defer h.RemoveClient(client.id)

	fmt.Fprintf(c.Writer, "retry: %d\n\n", h.retryMs)
	if msg, err := formatEvent(Event{Type: "ready", Data: gin.H{"connectionId": client.id}}); err == nil {
		_, _ = c.Writer.Write(msg)
	}
	if replay != nil {
		for _, ev := range replay(c.GetHeader("Last-Event-ID")) {
			if msg, err := formatEvent(ev); err == nil {
				_, _ = c.Writer.Write(msg)
			}
		}
	}
	flusher.Flush()

	ping := time.NewTicker(h.interval)
	defer ping.Stop()

	for {
		select {
		case <-client.done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			fmt.Fprintf(c.Writer, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case msg := <-client.ch:
			if _, err := c.Writer.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
