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

	adactor "github.com/berfenger/gridfleet/internal/adapter/actor"
	"github.com/berfenger/gridfleet/internal/adapter/modbustcp"
	"github.com/berfenger/gridfleet/internal/config"
	"github.com/berfenger/gridfleet/internal/core/actor"
	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/berfenger/gridfleet/internal/logging"
	"github.com/berfenger/gridfleet/internal/metrics"
	"github.com/berfenger/gridfleet/internal/mqtt"
	"github.com/berfenger/gridfleet/internal/server"
	"github.com/berfenger/gridfleet/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, api *server.Server, listener *modbustcp.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")
	api.MarkStopped()

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := listener.Shutdown(ctx); err != nil {
		log.Printf("Modbus listener forced to shutdown with error: %v", err)
	}
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

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
	logger.Info("gridfleet master starting", zap.String("version", versioninfo.Short()))

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	reg := metrics.NewRegistry()
	masterMetrics := metrics.NewMasterMetrics(reg)
	eventStream := &eventstream.EventStream{}

	var mqttProv actor.MQTTActorProvider
	if cfg.MQTT.Enable {
		mqttProv = mqttActorProvider(cfg, logger)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterActor(*cfg, eventStream, mqttProv, masterMetrics, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Fatal("could not spawn master actor", zap.Error(err))
	}

	fleetPID, err := resolveFleet(ctx, pid)
	if err != nil {
		logger.Fatal("could not resolve fleet actor", zap.Error(err))
	}
	fleet := actor.NewFleetClient(ctx, fleetPID, eventStream)

	// Modbus listener; a bind failure is fatal
	listener := modbustcp.New(cfg.Master, fleet, masterMetrics, logger)
	if err := listener.Start(); err != nil {
		logger.Fatal("could not bind modbus listener", zap.String("addr", cfg.Master.ListenAddr()), zap.Error(err))
	}
	logger.Info("fleet ready", zap.Int("max_slaves", cfg.Master.MaxSlaves),
		zap.String("identity_check", cfg.Master.IdentityCheck))

	api := server.NewServer(*cfg, server.MODE_MASTER, ctx, pid, fleet, reg)
	httpServer := api.HTTPServer()

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(httpServer, api, listener, done)

	err = httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server error", zap.Error(err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func resolveFleet(ctx *pactor.RootContext, master *pactor.PID) (*pactor.PID, error) {
	res, err := ctx.RequestFuture(master, domain.GetFleetRefRequest{}, 5*time.Second).Result()
	if err != nil {
		return nil, err
	}
	resp, ok := res.(domain.GetFleetRefResponse)
	if !ok || resp.Fleet == nil {
		return nil, errors.New("master did not return a fleet reference")
	}
	return resp.Fleet, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		broker := mqtt.CreateMQTTClient(cfg, mqtt.OptsFromConfig(cfg))
		return adactor.NewMQTTActor(cfg, es, broker, logger)
	}
}
