package actorutil

import (
	"log/slog"
	"time"

	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/berfenger/gridfleet/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo
	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps a switch command to the fleet request it
// stands for. Unknown commands map to nil.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.ActorRequest, error) {
	if cmd.Command != mqtt.COMMAND_SWITCH {
		return nil, nil
	}
	slaveId, ok := domain.SlaveIdFromSwitch(cmd.DeviceId)
	if !ok {
		return nil, nil
	}
	return domain.SetSlavePowerRequest{
		SlaveId: slaveId,
		Enable:  cmd.Payload == mqtt.MQTT_PAYLOAD_ON,
	}, nil
}
