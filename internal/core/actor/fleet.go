package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/gridfleet/internal/config"
	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/berfenger/gridfleet/internal/core/register"
	"github.com/berfenger/gridfleet/internal/core/stats"
	"github.com/berfenger/gridfleet/internal/core/telemetry"
	"github.com/berfenger/gridfleet/internal/metrics"
	. "github.com/berfenger/gridfleet/internal/util/actorutil"
	"github.com/berfenger/gridfleet/pkg/mbframe"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

var (
	ErrUnknownSlave     = errors.New("unknown slave")
	ErrIdentityMismatch = errors.New("unit id does not own the written registers")
	ErrQuantityExceeded = errors.New("register quantity exceeds protocol limit")
)

const (
	SNAPSHOT_TRIGGER_WRITE = "write"
	SNAPSHOT_TRIGGER_TIMER = "timer"
	SNAPSHOT_TRIGGER_POWER = "power"
)

type snapshotTick struct {
}

// FleetActor is the only writer of the register bank and the telemetry set.
// Every frame, power toggle and timer tick is serialized through its mailbox.
type FleetActor struct {
	config      config.MasterConfig
	behavior    actor.Behavior
	stash       *Stash
	bank        *register.Bank
	projector   *telemetry.Projector
	eventStream *eventstream.EventStream
	ticker      *SnapshotTicker
	metrics     *metrics.MasterMetrics
	logger      *zap.Logger
}

func NewFleetActor(config config.MasterConfig, eventStream *eventstream.EventStream, metrics *metrics.MasterMetrics, logger *zap.Logger) *FleetActor {
	bank := register.NewBank(config.MaxSlaves)
	act := &FleetActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		bank:        bank,
		projector:   telemetry.NewProjector(bank),
		eventStream: eventStream,
		metrics:     metrics,
		logger:      ActorLogger(domain.ACTOR_ID_FLEET, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *FleetActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *FleetActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("fleet@starting started", zap.Int("max_slaves", state.config.MaxSlaves),
			zap.Int("capacity", state.bank.Capacity()))

		if state.config.SnapshotIntervalMillis > 0 {
			ticker, err := StartSnapshotTicker(ctx.ActorSystem().Root, ctx.Self(), state.config.SnapshotInterval(), state.logger)
			if err != nil {
				panic(err)
			}
			state.ticker = ticker
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.stopTicker()
	default:
		state.logger.Debug("fleet@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *FleetActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("fleet@default ActorHealthRequest")
		ForRequest(msg).Respond(ctx, domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_FLEET,
			Healthy: true,
			State:   fmt.Sprintf("%d slaves", state.projector.Known()),
		})
	case domain.ApplyFrameRequest:
		resp := state.applyFrame(msg.ConnId, msg.Frame)
		ForRequest(msg).Respond(ctx, resp)
	case domain.GetSnapshotRequest:
		state.logger.Debug("fleet@default GetSnapshotRequest")
		ForRequest(msg).Respond(ctx, domain.GetSnapshotResponse{
			Snapshot: state.snapshot(),
		})
	case domain.SetSlavePowerRequest:
		state.logger.Debug("fleet@default SetSlavePowerRequest", zap.Int("slave", msg.SlaveId), zap.Bool("enable", msg.Enable))
		t, ok := state.projector.SetPower(msg.SlaveId, msg.Enable)
		if !ok {
			state.logger.Warn("fleet@default power toggle on unknown slave", zap.Int("slave", msg.SlaveId))
			ForRequest(msg).Respond(ctx, domain.SetSlavePowerResponse{
				ActorResponseMixIn: domain.ErrorResponse(fmt.Errorf("%w: %d", ErrUnknownSlave, msg.SlaveId)),
			})
			return
		}
		state.logger.Info("fleet@default slave power changed", zap.Int("slave", msg.SlaveId), zap.String("status", string(t.Status)))
		state.emit(SNAPSHOT_TRIGGER_POWER)
		ForRequest(msg).Respond(ctx, domain.SetSlavePowerResponse{
			Telemetry: t,
		})
	case snapshotTick:
		if state.projector.Known() > 0 {
			state.emit(SNAPSHOT_TRIGGER_TIMER)
		}
	case *actor.Stopping:
		state.stopTicker()
	case *actor.Restarting:
		state.stopTicker()
	default:
		state.logger.Debug("fleet@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *FleetActor) applyFrame(connId string, frame *mbframe.Frame) domain.ApplyFrameResponse {
	if frame == nil {
		return domain.ApplyFrameResponse{ActorResponseMixIn: domain.ErrorResponse(mbframe.ErrMalformed)}
	}
	logger := state.logger.With(zap.String("conn", connId), zap.Uint8("unit", frame.UnitId),
		zap.Uint16("tid", frame.TransactionId))

	switch frame.FunctionCode {
	case mbframe.FuncReadHoldingRegisters:
		addr, quantity, err := frame.ReadRequest()
		if err == nil && quantity > mbframe.MaxReadQuantity {
			err = fmt.Errorf("%w: read of %d registers", ErrQuantityExceeded, quantity)
		}
		if err != nil {
			logger.Warn("fleet@default read rejected", zap.Error(err))
			return domain.ApplyFrameResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
		}
		values, err := state.bank.Read(addr, quantity)
		if err != nil {
			logger.Warn("fleet@default read rejected", zap.Error(err))
			return domain.ApplyFrameResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
		}
		logger.Debug("fleet@default read", zap.Uint16("addr", addr), zap.Uint16("quantity", quantity))
		resp := mbframe.ReadHoldingRegistersResponse(frame, values)
		return domain.ApplyFrameResponse{Response: &resp}
	case mbframe.FuncWriteSingleRegister:
		addr, value, err := frame.WriteSingle()
		if err == nil {
			err = state.write(frame.UnitId, addr, []uint16{value})
		}
		if err != nil {
			logger.Warn("fleet@default write rejected", zap.Error(err))
			return domain.ApplyFrameResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
		}
		logger.Debug("fleet@default write single", zap.Uint16("addr", addr), zap.Uint16("value", value))
		resp := mbframe.WriteSingleRegisterResponse(frame)
		return domain.ApplyFrameResponse{Response: &resp}
	case mbframe.FuncWriteMultipleRegisters:
		addr, values, err := frame.WriteMultiple()
		if err == nil && len(values) > mbframe.MaxWriteQuantity {
			err = fmt.Errorf("%w: write of %d registers", ErrQuantityExceeded, len(values))
		}
		if err == nil {
			err = state.write(frame.UnitId, addr, values)
		}
		if err != nil {
			logger.Warn("fleet@default write rejected", zap.Error(err))
			return domain.ApplyFrameResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
		}
		logger.Debug("fleet@default write multiple", zap.Uint16("addr", addr), zap.Int("quantity", len(values)))
		resp := mbframe.WriteMultipleRegistersResponse(frame, addr, uint16(len(values)))
		return domain.ApplyFrameResponse{Response: &resp}
	default:
		logger.Warn("fleet@default unsupported function dropped", zap.String("function", mbframe.FunctionName(frame.FunctionCode)))
		return domain.ApplyFrameResponse{
			ActorResponseMixIn: domain.ErrorResponse(fmt.Errorf("%w: 0x%02x", mbframe.ErrUnsupportedFunction, frame.FunctionCode)),
		}
	}
}

// write stores values and, when the unit's slot was touched, projects and
// emits a snapshot.
func (state *FleetActor) write(unitId uint8, addr uint16, values []uint16) error {
	slaveId := int(unitId)
	if state.config.IdentityCheck == config.IDENTITY_CHECK_STRICT {
		base := register.SlotBase(slaveId)
		if int(addr) < base || int(addr)+len(values) > base+register.SLOT_SIZE {
			return fmt.Errorf("%w: unit %d, addr %d, quantity %d", ErrIdentityMismatch, unitId, addr, len(values))
		}
	}
	if err := state.bank.Write(addr, values); err != nil {
		return err
	}
	if slaveId >= state.bank.MaxSlaves() {
		return nil
	}
	t, projected, err := state.projector.Project(slaveId, addr, len(values))
	if err != nil {
		return err
	}
	if projected {
		state.logger.Debug("fleet@default projected", zap.Int("slave", t.SlaveId), zap.String("type", string(t.DeviceType)),
			zap.Float64("power", t.Power), zap.String("status", string(t.Status)))
		state.emit(SNAPSHOT_TRIGGER_WRITE)
	}
	return nil
}

func (state *FleetActor) snapshot() domain.Snapshot {
	all := state.projector.All()
	return domain.Snapshot{
		Telemetry:  all,
		Statistics: stats.Aggregate(all),
		Timestamp:  time.Now(),
	}
}

func (state *FleetActor) emit(trigger string) {
	snapshot := state.snapshot()
	if state.metrics != nil {
		state.metrics.SnapshotsEmitted.WithLabelValues(trigger).Inc()
		state.metrics.KnownSlavesGauge.Set(float64(snapshot.Statistics.TotalSlaves))
		state.metrics.OnlineSlavesGauge.Set(float64(snapshot.Statistics.OnlineSlaves))
		state.metrics.TotalPowerGauge.Set(snapshot.Statistics.TotalPower)
	}
	state.eventStream.Publish(snapshot)
}

func (state *FleetActor) stopTicker() {
	if state.ticker != nil {
		state.ticker.Stop()
		state.ticker = nil
	}
}
