// Package api implements the gateway's HTTP surface: health check, balance
// lookup backed by the dev-node's JSON-RPC endpoint, balance history from
// the local journal, Prometheus metrics and the WebSocket stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/blockforge-labs/devnet-gateway/eth"
	"github.com/blockforge-labs/devnet-gateway/journal"
	"github.com/blockforge-labs/devnet-gateway/stream"
)

const requestTimeout = 15 * time.Second

// Server serves the gateway API
type Server struct {
	client  *eth.Client
	journal *journal.Journal
	manager *stream.Manager
	log     *logrus.Logger

	srv *http.Server
}

// NewServer creates the API server. manager may be nil when the stream is
// disabled; the /ws route is then not registered.
func NewServer(client *eth.Client, j *journal.Journal, manager *stream.Manager, log *logrus.Logger) *Server {
	return &Server{
		client:  client,
		journal: j,
		manager: manager,
		log:     log,
	}
}

// Router builds the gin engine with all routes and middleware
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode) // No debug noise

	r := gin.New()
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("[API] %s - %s %s %d %s\n",
				param.TimeStamp.Format("2006-01-02 15:04:05"),
				param.Method,
				param.Path,
				param.StatusCode,
				param.Latency,
			)
		},
	}))
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(metricsMiddleware())

	r.GET("/health", s.handleHealth)
	r.GET("/balance/:address/balance", s.handleBalance)
	r.GET("/balance/:address/history", s.handleHistory)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if s.manager != nil {
		upgrader := websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Dev topology, any origin
			},
		}
		r.GET("/ws", func(c *gin.Context) {
			conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
			if err != nil {
				s.log.Errorf("Failed to upgrade connection to WebSocket: %v", err)
				return
			}
			s.manager.Serve(conn)
		})
	}

	return r
}

// Start launches the API server and blocks until it stops
func (s *Server) Start(port string) error {
	s.srv = &http.Server{
		Addr:         port,
		Handler:      s.Router(),
		ReadTimeout:  requestTimeout,
		WriteTimeout: requestTimeout,
	}

	s.log.Infof("Starting API server on %s", port)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware mirrors the permissive policy the service always had:
// any origin, the four basic methods, JSON and auth headers.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
