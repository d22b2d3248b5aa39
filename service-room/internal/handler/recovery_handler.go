package handler

import (
	"errors"
	"net/http"

	"game-party/pkg/logger"
	"game-party/pkg/model"

	"game-party/service-room/internal/service/room"

	"github.com/gin-gonic/gin"
)

// RecoveryHandler serves the gap-fill endpoint reconnecting clients call
// with their last seen stream id.
type RecoveryHandler struct {
	service *room.Service
}

// NewRecoveryHandler creates the recovery handler
func NewRecoveryHandler(service *room.Service) *RecoveryHandler {
	return &RecoveryHandler{service: service}
}

// Recover handles POST /api/rooms/:joinCode/recovery?playerName=&lastId=
func (h *RecoveryHandler) Recover(c *gin.Context) {
	joinCode := c.Param("joinCode")
	playerName := c.Query("playerName")
	lastID := c.Query("lastId")

	if playerName == "" {
		c.JSON(http.StatusBadRequest, model.RecoveryError("playerName is required"))
		return
	}

	messages, err := h.service.Recover(c.Request.Context(), joinCode, playerName, lastID)
	if err != nil {
		if errors.Is(err, room.ErrNoConnection) {
			c.JSON(http.StatusBadRequest, model.RecoveryError("no live connection registered for player"))
			return
		}
		if errors.Is(err, room.ErrInvalidIdentity) {
			c.JSON(http.StatusBadRequest, model.RecoveryError(err.Error()))
			return
		}
		// generic message only: internals never leak to the client
		logger.Errorf(err, "recovery for %s in room %s failed", playerName, joinCode)
		c.JSON(http.StatusInternalServerError, model.RecoveryError("recovery failed"))
		return
	}

	c.JSON(http.StatusOK, model.RecoverySuccess(messages))
}
