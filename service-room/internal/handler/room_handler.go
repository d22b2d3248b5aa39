package handler

import (
	"errors"
	"net/http"
	"strconv"

	"game-party/pkg/auth"
	"game-party/pkg/logger"
	"game-party/pkg/model"

	"game-party/service-room/internal/correlator"
	"game-party/service-room/internal/repository"
	"game-party/service-room/internal/service/room"

	"github.com/gin-gonic/gin"
)

const (
	defaultResultLimit = 20
	maxResultLimit     = 100
)

// RoomHandler serves the REST surface of the room lifecycle
type RoomHandler struct {
	service *room.Service
	issuer  *auth.JoinTokenIssuer
	results *repository.ResultStore // nil when result persistence is disabled
}

// NewRoomHandler creates the REST handler
func NewRoomHandler(service *room.Service, issuer *auth.JoinTokenIssuer, results *repository.ResultStore) *RoomHandler {
	return &RoomHandler{service: service, issuer: issuer, results: results}
}

type createRoomRequest struct {
	HostName string `json:"hostName" binding:"required"`
}

type joinRoomRequest struct {
	PlayerName string `json:"playerName" binding:"required"`
	// token from a scanned QR join link; optional, but must match the room
	Token string `json:"token"`
}

// CreateRoom handles POST /api/rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorEnvelope("hostName is required"))
		return
	}

	rm, err := h.service.CreateRoom(c.Request.Context(), req.HostName)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.SuccessEnvelope(rm))
}

// JoinRoom handles POST /api/rooms/:joinCode/players
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	joinCode := c.Param("joinCode")

	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorEnvelope("playerName is required"))
		return
	}

	if req.Token != "" {
		tokenCode, err := h.issuer.Verify(req.Token)
		if err != nil || tokenCode != joinCode {
			c.JSON(http.StatusForbidden, model.ErrorEnvelope("invalid join token"))
			return
		}
	}

	rm, err := h.service.JoinRoom(c.Request.Context(), joinCode, req.PlayerName)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessEnvelope(rm))
}

// GetRoom handles GET /api/rooms/:joinCode
func (h *RoomHandler) GetRoom(c *gin.Context) {
	rm, err := h.service.GetRoom(c.Request.Context(), c.Param("joinCode"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessEnvelope(rm))
}

// GetQrCode handles GET /api/rooms/:joinCode/qr
func (h *RoomHandler) GetQrCode(c *gin.Context) {
	rm, err := h.service.GetRoom(c.Request.Context(), c.Param("joinCode"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := rm.QrCodeStatus
	if status == "" {
		status = model.QrCodeStatusPending
	}
	c.JSON(http.StatusOK, model.SuccessEnvelope(model.QrCodeStatusPayload{
		Status: status,
		URL:    rm.QrCodeURL,
	}))
}

// RecentWinners handles GET /api/results
func (h *RoomHandler) RecentWinners(c *gin.Context) {
	if h.results == nil {
		c.JSON(http.StatusNotFound, model.ErrorEnvelope("result history is not enabled"))
		return
	}

	limit := defaultResultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, model.ErrorEnvelope("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	if limit > maxResultLimit {
		limit = maxResultLimit
	}

	winners, err := h.results.RecentWinners(c.Request.Context(), limit)
	if err != nil {
		logger.Error(err, "failed to list roulette winners")
		c.JSON(http.StatusInternalServerError, model.ErrorEnvelope("failed to load results"))
		return
	}
	if winners == nil {
		winners = []repository.RouletteResult{}
	}
	c.JSON(http.StatusOK, model.SuccessEnvelope(winners))
}

func (h *RoomHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, model.ErrorEnvelope("room not found"))
	case errors.Is(err, correlator.ErrAwaitTimeout):
		// unknown outcome: the command may still apply, the client should poll
		c.JSON(http.StatusGatewayTimeout, model.ErrorEnvelope("request timed out, retry or refresh"))
	default:
		logger.Error(err, "room request failed")
		c.JSON(http.StatusBadRequest, model.ErrorEnvelope(err.Error()))
	}
}
