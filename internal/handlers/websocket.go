package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"charliesodds/internal/games"
	"charliesodds/internal/ledger"
	"charliesodds/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler pushes game lifecycle events to connected clients. It
// implements games.Broadcaster; engines publish through the buffered channel
// and never block on a slow client.
type WebSocketHandler struct {
	ledger *ledger.Ledger
	hub    *webSocketHub
	logger *logrus.Entry
}

type webSocketHub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan *wsMessage
	logger     *logrus.Entry
}

type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewWebSocketHandler(lgr *ledger.Ledger, logger *logrus.Logger) *WebSocketHandler {
	entry := logger.WithField("component", "websocket")
	hub := &webSocketHub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan *wsMessage, 100),
		logger:     entry,
	}

	go hub.run()

	return &WebSocketHandler{
		ledger: lgr,
		hub:    hub,
		logger: entry,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.hub.register <- conn

	defer func() {
		h.hub.unregister <- conn
		conn.Close()
	}()

	if account := h.ledger.Account(); account != nil {
		conn.WriteJSON(wsMessage{Type: "BALANCE_UPDATE", Data: gin.H{"balance": account.Balance}})
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.WithError(err).Warn("websocket read error")
			}
			break
		}

		if msg.Type == "PING" {
			h.hub.broadcast <- &wsMessage{Type: "PONG", Data: gin.H{"timestamp": time.Now().Unix()}}
		}
	}
}

// GamePhase implements games.Broadcaster.
func (h *WebSocketHandler) GamePhase(game models.GameType, phase games.Phase) {
	h.publish(&wsMessage{Type: "GAME_PHASE", Data: gin.H{
		"game":  game,
		"phase": phase,
	}})
}

// MultiplierTick implements games.Broadcaster.
func (h *WebSocketHandler) MultiplierTick(multiplier float64) {
	h.publish(&wsMessage{Type: "MULTIPLIER_TICK", Data: gin.H{
		"multiplier": multiplier,
	}})
}

// BalanceUpdate implements games.Broadcaster.
func (h *WebSocketHandler) BalanceUpdate(balance float64) {
	h.publish(&wsMessage{Type: "BALANCE_UPDATE", Data: gin.H{
		"balance": balance,
	}})
}

// publish drops the event when the hub buffer is full; the engines must
// never stall on presentation.
func (h *WebSocketHandler) publish(msg *wsMessage) {
	select {
	case h.hub.broadcast <- msg:
	default:
	}
}

func (hub *webSocketHub) run() {
	for {
		select {
		case conn := <-hub.register:
			hub.clients[conn] = struct{}{}
			hub.logger.WithField("clients", len(hub.clients)).Debug("client registered")

		case conn := <-hub.unregister:
			if _, ok := hub.clients[conn]; ok {
				delete(hub.clients, conn)
				hub.logger.WithField("clients", len(hub.clients)).Debug("client unregistered")
			}

		case message := <-hub.broadcast:
			for conn := range hub.clients {
				conn.WriteJSON(message)
			}
		}
	}
}
