// Package server owns the notewired HTTP surface: a gin engine carrying
// the health route and the RPC endpoint mounted at the configured base
// path.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/notewire/notewire/transport"
)

const version = "0.1.0"

type Config struct {
	ListenAddr string
	BasePath   string
}

type Server struct {
	cfg      Config
	router   *gin.Engine
	rpc      *transport.Transport
	log      *slog.Logger
	appeared time.Time
}

func New(cfg Config, rpc *transport.Transport, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.BasePath == "" {
		cfg.BasePath = "/mcp"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		router:   router,
		rpc:      rpc,
		log:      log,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": "notewired",
			"session": s.rpc.SessionID(),
			"version": version,
		})
	})

	s.router.POST(s.cfg.BasePath, gin.WrapH(transport.NewEndpoint(s.rpc, s.log)))
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Run starts the transport and serves until the listener fails.
func (s *Server) Run() error {
	if err := s.rpc.Start(); err != nil {
		return err
	}
	s.log.Info("listening",
		slog.String("addr", s.cfg.ListenAddr),
		slog.String("base_path", s.cfg.BasePath))
	return s.router.Run(s.cfg.ListenAddr)
}
