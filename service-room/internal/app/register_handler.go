package app

import (
	"net/url"

	"game-party/pkg/logger"
	"game-party/pkg/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (a *appServer) RegisterHandlers() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	handler := gin.New()

	// middlewares
	logger.Debugf("allowing CORS origins: %v", a.config.CORS.AllowedOrigins)

	corsConfig := cors.Config{
		AllowOrigins:     a.config.CORS.AllowedOrigins,
		AllowMethods:     a.config.CORS.AllowedMethods,
		AllowHeaders:     a.config.CORS.AllowedHeaders,
		AllowCredentials: true,
	}
	handler.Use(cors.New(corsConfig))
	handler.Use(gin.Logger())
	handler.Use(gin.Recovery())

	// health check
	handler.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	// the local provider's public URLs point back at this server, so the
	// stored files (QR images) must be served from here
	if a.config.Storage.Provider == storage.StorageProviderLocal {
		handler.Static(localFilesRoute(a.config.Storage.LocalBaseURL), a.config.Storage.LocalPath)
	}

	// api routes
	api := handler.Group("/api")
	{
		api.GET("/results", a.roomHandler.RecentWinners)

		rooms := api.Group("/rooms")
		{
			rooms.POST("", a.roomHandler.CreateRoom)
			rooms.GET("/:joinCode", a.roomHandler.GetRoom)
			rooms.POST("/:joinCode/players", a.roomHandler.JoinRoom)
			rooms.GET("/:joinCode/qr", a.roomHandler.GetQrCode)
			rooms.POST("/:joinCode/recovery", a.recoveryHandler.Recover)
		}
	}

	// websocket endpoint
	handler.GET("/ws/rooms/:joinCode", a.wsHandler.HandleWebSocket)

	return handler
}

// localFilesRoute derives the serving route from the configured base URL
func localFilesRoute(baseURL string) string {
	if u, err := url.Parse(baseURL); err == nil && u.Path != "" && u.Path != "/" {
		return u.Path
	}
	return "/api/files"
}
