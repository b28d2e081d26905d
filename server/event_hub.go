package server

import (
	"encoding/json"
	"sync"
	"time"

	"showmerge/core/pipeline"
	"showmerge/logger"
	"showmerge/model"

	"github.com/gorilla/websocket"
)

const (
	clientSendBuffer = 32
	finishedRunsKept = 100
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = 30 * time.Second
)

// EventMessage is the websocket payload for one stage change.
type EventMessage struct {
	RunID        string             `json:"runId"`
	Stage        pipeline.Stage     `json:"stage"`
	Show         string             `json:"show,omitempty"`
	SegmentCount int                `json:"segmentCount,omitempty"`
	Timestamp    int64              `json:"timestamp"`
	Result       *model.MergeResult `json:"result,omitempty"`
	Error        *ErrorResponse     `json:"error,omitempty"`
}

// Client is one websocket subscriber to a run.
type Client struct {
	RunID string
	Conn  *websocket.Conn
	Send  chan []byte
	hub   *EventHub
}

// EventHub fans pipeline events out to websocket subscribers. It remembers
// the events of running and recently finished runs so late subscribers get
// the full history.
type EventHub struct {
	mu       sync.Mutex
	clients  map[string]map[*Client]bool
	history  map[string][][]byte
	finished []string
}

// NewEventHub 创建事件 Hub
func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[string]map[*Client]bool),
		history: make(map[string][][]byte),
	}
}

// Notify implements pipeline.Observer.
func (h *EventHub) Notify(e pipeline.Event) {
	msg := EventMessage{
		RunID:        e.RunID,
		Stage:        e.Stage,
		Show:         e.Show,
		SegmentCount: e.SegmentCount,
		Timestamp:    e.Time.UnixMilli(),
		Result:       e.Result,
	}
	if e.Err != nil {
		msg.Error = errorResponse(e.Err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Warn("failed to encode run event", logger.String("runId", e.RunID), logger.ErrorField(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.history[e.RunID] = append(h.history[e.RunID], data)
	for client := range h.clients[e.RunID] {
		select {
		case client.Send <- data:
		default:
			// 发送缓冲区满，移除客户端
			h.removeLocked(client)
		}
	}

	if e.Stage.Terminal() {
		for client := range h.clients[e.RunID] {
			h.removeLocked(client)
		}
		h.finished = append(h.finished, e.RunID)
		if len(h.finished) > finishedRunsKept {
			delete(h.history, h.finished[0])
			h.finished = h.finished[1:]
		}
	}
}

// Subscribe registers a client for runID and queues the events emitted so
// far. It reports false if the run is unknown. If the run already finished
// the client's channel is closed after the backlog.
func (h *EventHub) Subscribe(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	backlog, known := h.history[c.RunID]
	if !known {
		return false
	}
	for _, data := range backlog {
		c.Send <- data
	}
	for _, id := range h.finished {
		if id == c.RunID {
			close(c.Send)
			return true
		}
	}
	if h.clients[c.RunID] == nil {
		h.clients[c.RunID] = make(map[*Client]bool)
	}
	h.clients[c.RunID][c] = true
	return true
}

// Unregister removes a client.
func (h *EventHub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// Track makes runID known before its first event so a subscriber that
// connects right after submission is not refused.
func (h *EventHub) Track(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.history[runID]; !ok {
		h.history[runID] = nil
	}
}

func (h *EventHub) removeLocked(c *Client) {
	clients, ok := h.clients[c.RunID]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	close(c.Send)
	if len(clients) == 0 {
		delete(h.clients, c.RunID)
	}
}

// ReadPump discards inbound messages and returns when the peer goes away.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.String("runId", c.RunID), logger.ErrorField(err))
			}
			return
		}
	}
}

// WritePump sends queued events and closes the connection once the run has
// finished.
func (c *Client) WritePump() {
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
				c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
				return
			}
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
