package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"game-party/pkg/logger"
	"game-party/pkg/model"

	"game-party/service-room/internal/registry"
	"game-party/service-room/internal/service/room"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// direct replies to one client that never go through the recovery log
const errorDestination = "/user/queue/errors"

// client command types carried in WebSocket frames
const (
	commandUpdateReady     = "update-ready"
	commandUpdateMiniGames = "update-minigames"
	commandStartGame       = "start-game"
	commandGameResult      = "game-result"
	commandShowRoulette    = "show-roulette"
	commandSpinRoulette    = "spin-roulette"
	commandKick            = "kick"
)

type clientCommand struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// peer is one upgraded connection. gorilla/websocket allows a single
// concurrent writer, so every write goes through the mutex.
type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) send(frame model.BroadcastFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(frame)
}

// WsHandler upgrades room WebSocket connections, feeds client commands into
// the room service, and doubles as the local delivery transport for the
// broadcaster.
type WsHandler struct {
	service  *room.Service
	peers    sync.Map // connection id -> *peer
	upgrader websocket.Upgrader
}

// NewWsHandler creates the WebSocket handler
func NewWsHandler(service *room.Service) *WsHandler {
	return &WsHandler{
		service: service,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// allow all origins for development
				// in production, implement proper origin validation
				return true
			},
		},
	}
}

// Send implements broadcast.Transport for connections held by this instance
func (h *WsHandler) Send(connID, destination string, response model.Envelope) error {
	v, ok := h.peers.Load(connID)
	if !ok {
		return fmt.Errorf("connection %s is not held by this instance", connID)
	}
	return v.(*peer).send(model.BroadcastFrame{Destination: destination, Response: response})
}

// HandleWebSocket upgrades the connection and runs its read loop
func (h *WsHandler) HandleWebSocket(c *gin.Context) {
	joinCode := c.Param("joinCode")
	playerName := c.Query("playerName")

	key, err := registry.NewPlayerKey(joinCode, playerName)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorEnvelope(err.Error()))
		return
	}

	// the player must have joined over REST before connecting
	rm, err := h.service.GetRoom(c.Request.Context(), joinCode)
	if err != nil {
		c.JSON(http.StatusNotFound, model.ErrorEnvelope("room not found"))
		return
	}
	if _, ok := rm.Player(playerName); !ok {
		c.JSON(http.StatusForbidden, model.ErrorEnvelope("player is not in the room"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error(err, "failed to upgrade connection to WebSocket")
		return
	}

	connID := uuid.NewString()
	p := &peer{conn: conn}
	h.peers.Store(connID, p)
	h.service.RegisterConnection(c.Request.Context(), key, connID)

	logger.Infof("player %s connected to room %s as %s", playerName, joinCode, connID)
	h.readLoop(key, connID, p)
}

func (h *WsHandler) readLoop(key registry.PlayerKey, connID string, p *peer) {
	defer func() {
		h.peers.Delete(connID)
		p.conn.Close()
		// the registry keeps the mapping until the grace period settles it
		h.service.HandleDisconnect(context.Background(), connID, "socket closed")
	}()

	for {
		var cmd clientCommand
		if err := p.conn.ReadJSON(&cmd); err != nil {
			logger.Debugf("read loop for %s ended: %v", connID, err)
			return
		}
		h.dispatch(key, p, cmd)
	}
}

// dispatch runs one client command. Domain rejections go straight back to
// the sender; the committed outcome reaches everyone via broadcast.
func (h *WsHandler) dispatch(key registry.PlayerKey, p *peer, cmd clientCommand) {
	ctx := context.Background()
	joinCode, playerName := key.JoinCode(), key.PlayerName()

	var err error
	switch cmd.Type {
	case commandUpdateReady:
		var payload struct {
			Ready bool `json:"ready"`
		}
		if err = json.Unmarshal(cmd.Payload, &payload); err == nil {
			_, err = h.service.ToggleReady(ctx, joinCode, playerName, payload.Ready)
		}
	case commandUpdateMiniGames:
		var payload struct {
			MiniGames []string `json:"miniGames"`
		}
		if err = json.Unmarshal(cmd.Payload, &payload); err == nil {
			_, err = h.service.SelectMiniGames(ctx, joinCode, playerName, payload.MiniGames)
		}
	case commandStartGame:
		_, err = h.service.StartGame(ctx, joinCode, playerName)
	case commandGameResult:
		var payload struct {
			MiniGame string   `json:"miniGame"`
			Ranking  []string `json:"ranking"`
		}
		if err = json.Unmarshal(cmd.Payload, &payload); err == nil {
			_, err = h.service.ReportResult(ctx, joinCode, payload.MiniGame, payload.Ranking)
		}
	case commandShowRoulette:
		_, err = h.service.ShowRoulette(ctx, joinCode, playerName)
	case commandSpinRoulette:
		_, err = h.service.SpinRoulette(ctx, joinCode, playerName)
	case commandKick:
		var payload struct {
			TargetName string `json:"targetName"`
		}
		if err = json.Unmarshal(cmd.Payload, &payload); err == nil {
			_, err = h.service.KickPlayer(ctx, joinCode, playerName, payload.TargetName)
		}
	default:
		err = fmt.Errorf("unknown command type %q", cmd.Type)
	}

	if err != nil {
		if sendErr := p.send(model.BroadcastFrame{
			Destination: errorDestination,
			Response:    model.ErrorEnvelope(err.Error()),
		}); sendErr != nil {
			logger.Debugf("failed to report command error to %s: %v", key, sendErr)
		}
	}
}
