package main

import (
	"game-party/pkg/config"
	"game-party/pkg/logger"
	"game-party/service-room/internal/app"
)

func main() {
	// initialize configuration
	cfg := config.NewConfig()

	// initialize logger
	logger.InitLogger(cfg)

	// create and start the room service
	server := app.NewAppServer(cfg)
	server.Serve()
}
