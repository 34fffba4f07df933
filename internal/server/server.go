package server

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bahayonghang/LitReview/internal/history"
	"github.com/bahayonghang/LitReview/internal/server/validator"
	"github.com/bahayonghang/LitReview/internal/settings"
	"github.com/bahayonghang/LitReview/internal/stream"
)

const serviceName = "litreview-gateway"

type Server struct {
	router      *gin.Engine
	logger      *zap.Logger
	dispatcher  *stream.Dispatcher
	historyRepo history.Repository
}

func New(cfg *settings.Settings, logger *zap.Logger, dispatcher *stream.Dispatcher, historyRepo history.Repository) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	validator.Init()

	engine := gin.New()
	engine.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	engine.Use(ginzap.RecoveryWithZap(logger, true))

	s := &Server{
		router:      engine,
		logger:      logger,
		dispatcher:  dispatcher,
		historyRepo: historyRepo,
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
