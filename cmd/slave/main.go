package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/berfenger/gridfleet/internal/config"
	"github.com/berfenger/gridfleet/internal/core/actor"
	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/berfenger/gridfleet/internal/core/service"
	"github.com/berfenger/gridfleet/internal/logging"
	"github.com/berfenger/gridfleet/internal/metrics"
	"github.com/berfenger/gridfleet/internal/server"
	"github.com/berfenger/gridfleet/internal/util/actorutil"
	"github.com/berfenger/gridfleet/pkg/mbclient"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/carlmjohnson/versioninfo"
	"go.uber.org/zap"
)

func main() {

	// load and print config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	config.SafePrintConfig(*cfg)

	logger := logging.NewLogger(cfg.LogLevel, cfg.Log)
	defer logger.Sync()
	logger.Info("gridfleet slave starting", zap.String("version", versioninfo.Short()),
		zap.Int("slave", cfg.Slave.SlaveId), zap.String("device_type", cfg.Slave.DeviceType),
		zap.String("master", cfg.Slave.MasterAddr()))

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	reg := metrics.NewRegistry()
	agentMetrics := metrics.NewAgentMetrics(reg)

	writer, err := mbclient.CreateModbusSlotWriter(cfg.Slave.MasterHost, cfg.Slave.MasterPort,
		uint8(cfg.Slave.SlaveId), cfg.Slave.DeviceTimeout(), logger, nil)
	if err != nil {
		logger.Fatal("could not create modbus client", zap.Error(err))
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewAgentActor(cfg.Slave, writer, service.RetryPolicyFromConfig(cfg.Slave), agentMetrics, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_AGENT)
	if err != nil {
		logger.Fatal("could not spawn agent actor", zap.Error(err))
	}

	api := server.NewServer(*cfg, server.MODE_SLAVE, ctx, pid, nil, reg)
	httpServer := api.HTTPServer()

	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	// Create context that listens for the interrupt signal from the OS.
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")
	api.MarkStopped()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	// stopping the agent closes the connection to the master
	if err := ctx.StopFuture(pid).Wait(); err != nil {
		log.Printf("agent stop: %v", err)
	}
	as.Shutdown()
	log.Println("Graceful shutdown complete.")
}
