package server

import (
	"github.com/bahayonghang/LitReview/internal/server/middleware"
	v1 "github.com/bahayonghang/LitReview/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	s.router.Use(middleware.Tracing(serviceName))
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.ErrorHandler(s.logger))

	healthHandler := v1.NewHealthHandler(s.dispatcher)
	s.router.GET("/health", healthHandler.Health)

	api := s.router.Group("/api/v1")
	{
		streamHandler := v1.NewStreamHandler(s.dispatcher)
		api.POST("/streams", streamHandler.Start)
		api.DELETE("/streams/:id", streamHandler.Cancel)
		api.POST("/connection-test", streamHandler.Test)

		configHandler := v1.NewConfigHandler(s.dispatcher)
		api.GET("/config", configHandler.Get)
		api.PUT("/config", configHandler.Save)
		api.PUT("/config/default", configHandler.SetDefault)
		api.GET("/config/path", configHandler.Path)
		api.GET("/config/active", configHandler.Active)

		eventsHandler := v1.NewEventsHandler(s.dispatcher.Bus())
		api.GET("/events", eventsHandler.Stream)

		historyHandler := v1.NewHistoryHandler(s.historyRepo)
		api.GET("/history", historyHandler.Recent)
	}
}
