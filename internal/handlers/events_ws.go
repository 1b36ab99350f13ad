package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/BradenHooton/loginguard/internal/events"
	"github.com/BradenHooton/loginguard/internal/models"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// WebSocket message types
const (
	WSMsgTypeConnected         = "connected"
	WSMsgTypeNewLog            = "new_log"
	WSMsgTypeGetHistoricalLogs = "get_historical_logs"
	WSMsgTypeHistoricalLogs    = "historical_logs"
	WSMsgTypeError             = "error"
)

// WSMessage is the envelope for every frame in both directions
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewLogPayload is the data of a new_log frame
type NewLogPayload struct {
	Log   string               `json:"log"`
	Event models.SecurityEvent `json:"event"`
}

type historyRequest struct {
	Limit int `json:"limit"`
}

// EventSubscriber hands out live event subscriptions
type EventSubscriber interface {
	Subscribe() *events.Subscription
	Unsubscribe(sub *events.Subscription)
}

// WSConfig holds the event stream connection settings
type WSConfig struct {
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxMessageSize  int64
	SendBuffer      int
	HistoryLimit    int
	HistoryRate     rate.Limit
	HistoryBurst    int
	AllowedOrigins  []string
	HistoryDeadline time.Duration
}

// DefaultWSConfig returns the stream settings used in production
func DefaultWSConfig(origins []string) WSConfig {
	return WSConfig{
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
		PingPeriod:      54 * time.Second,
		MaxMessageSize:  4096,
		SendBuffer:      16,
		HistoryLimit:    50,
		HistoryRate:     rate.Every(time.Second),
		HistoryBurst:    3,
		AllowedOrigins:  origins,
		HistoryDeadline: 5 * time.Second,
	}
}

// EventsWSHandler streams security events to dashboard clients
type EventsWSHandler struct {
	hub      EventSubscriber
	history  EventHistory
	config   WSConfig
	upgrader websocket.Upgrader
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

func NewEventsWSHandler(hub EventSubscriber, history EventHistory, config WSConfig, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *EventsWSHandler {
	h := &EventsWSHandler{
		hub:      hub,
		history:  history,
		config:   config,
		ipConfig: ipConfig,
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts same-host pages, configured origins and non-browser
// clients that send no Origin.
func (h *EventsWSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

type wsClient struct {
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	sub     *events.Subscription
	limiter *rate.Limiter
}

func encodeWSMessage(msgType string, data any) []byte {
	msg := WSMessage{Type: msgType}
	if data != nil {
		msg.Data, _ = json.Marshal(data)
	}
	b, _ := json.Marshal(msg)
	return b
}

// enqueue never blocks; a client that stops reading loses replies
func (c *wsClient) enqueue(msgType string, data any) {
	select {
	case c.send <- encodeWSMessage(msgType, data):
	default:
	}
}

// Stream handles GET /ws/logs
func (h *EventsWSHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("event stream upgrade failed",
			slog.String("client_ip", pkghttp.ExtractClientIP(r, h.ipConfig)),
			slog.Any("error", err))
		return
	}

	client := &wsClient{
		conn:    conn,
		send:    make(chan []byte, h.config.SendBuffer),
		done:    make(chan struct{}),
		sub:     h.hub.Subscribe(),
		limiter: rate.NewLimiter(h.config.HistoryRate, h.config.HistoryBurst),
	}
	client.enqueue(WSMsgTypeConnected, map[string]string{"message": "Connected to WebSocket"})

	h.logger.Debug("event stream client connected",
		slog.String("client_ip", pkghttp.ExtractClientIP(r, h.ipConfig)))

	go h.writePump(client)
	h.readPump(client)
}

func (h *EventsWSHandler) readPump(c *wsClient) {
	defer func() {
		h.hub.Unsubscribe(c.sub)
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(h.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("event stream read failed", slog.Any("error", err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.enqueue(WSMsgTypeError, map[string]string{"message": "invalid message"})
			continue
		}

		switch msg.Type {
		case WSMsgTypeGetHistoricalLogs:
			h.sendHistory(c, msg.Data)
		default:
			c.enqueue(WSMsgTypeError, map[string]string{"message": "unknown message type"})
		}
	}
}

func (h *EventsWSHandler) sendHistory(c *wsClient, data json.RawMessage) {
	if !c.limiter.Allow() {
		c.enqueue(WSMsgTypeError, map[string]string{"message": "too many history requests"})
		return
	}

	req := historyRequest{Limit: h.config.HistoryLimit}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &req)
	}
	if req.Limit < 1 {
		req.Limit = h.config.HistoryLimit
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.HistoryDeadline)
	defer cancel()

	history, err := h.history.Recent(ctx, req.Limit)
	if err != nil {
		h.logger.Error("failed to load event history", slog.Any("error", err))
		c.enqueue(WSMsgTypeError, map[string]string{"message": "history unavailable"})
		return
	}
	c.enqueue(WSMsgTypeHistoricalLogs, newLogsResponse(history))
}

// writePump is the only writer on the connection
func (h *EventsWSHandler) writePump(c *wsClient) {
	ticker := time.NewTicker(h.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(messageType int, payload []byte) bool {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
		return c.conn.WriteMessage(messageType, payload) == nil
	}

	for {
		select {
		case msg := <-c.send:
			if !write(websocket.TextMessage, msg) {
				return
			}
		case event, ok := <-c.sub.Events():
			if !ok {
				return
			}
			frame := encodeWSMessage(WSMsgTypeNewLog, NewLogPayload{Log: event.Line(), Event: event})
			if !write(websocket.TextMessage, frame) {
				return
			}
		case <-ticker.C:
			if !write(websocket.PingMessage, nil) {
				return
			}
		case <-c.done:
			_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
