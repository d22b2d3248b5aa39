package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"game-party/service-room/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newResultsRouter(results *repository.ResultStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewRoomHandler(nil, nil, results)
	router.GET("/api/results", h.RecentWinners)
	return router
}

func TestRecentWinnersWithoutStore(t *testing.T) {
	router := newResultsRouter(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/results", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecentWinnersRejectsBadLimit(t *testing.T) {
	router := newResultsRouter(repository.NewResultStore(nil))

	for _, limit := range []string{"abc", "0", "-5"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/results?limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
	}
}
