package server

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/berfenger/gridfleet/internal/config"
	"github.com/berfenger/gridfleet/internal/core/port"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	MODE_MASTER = "master"
	MODE_SLAVE  = "slave"

	STATUS_RUNNING = "running"
	STATUS_STOPPED = "stopped"
)

type Server struct {
	port        uint
	httpLog     bool
	mode        string
	rootContext *actor.RootContext
	rootActor   *actor.PID
	fleet       port.Fleet
	registry    *prometheus.Registry
	stopped     atomic.Bool
}

// NewServer builds the HTTP pull API. fleet is nil in slave mode, which
// disables the data and power endpoints.
func NewServer(cfg config.Config, mode string, rootContext *actor.RootContext, rootActor *actor.PID,
	fleet port.Fleet, registry *prometheus.Registry) *Server {
	return &Server{
		port:        cfg.HTTP.Port,
		httpLog:     cfg.HTTP.Log,
		mode:        mode,
		rootContext: rootContext,
		rootActor:   rootActor,
		fleet:       fleet,
		registry:    registry,
	}
}

func (s *Server) HTTPServer() *http.Server {
	// Declare Server config
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// MarkStopped flips the reported status once shutdown starts.
func (s *Server) MarkStopped() {
	s.stopped.Store(true)
}

func (s *Server) status() string {
	if s.stopped.Load() {
		return STATUS_STOPPED
	}
	return STATUS_RUNNING
}
