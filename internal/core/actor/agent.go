package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/gridfleet/internal/config"
	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/berfenger/gridfleet/internal/core/register"
	"github.com/berfenger/gridfleet/internal/core/service"
	"github.com/berfenger/gridfleet/internal/core/telemetry"
	"github.com/berfenger/gridfleet/internal/metrics"
	. "github.com/berfenger/gridfleet/internal/util/actorutil"
	"github.com/berfenger/gridfleet/pkg/mbclient"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	AGENT_STATE_DISCONNECTED = "disconnected"
	AGENT_STATE_CONNECTING   = "connecting"
	AGENT_STATE_CONNECTED    = "connected"
	AGENT_STATE_RECONNECTING = "reconnecting"

	DEFAULT_DEVICE_TIMEOUT = 5 * time.Second
)

// AgentActor simulates one slave device: it keeps a connection to the master
// and writes its telemetry slot on every report tick.
type AgentActor struct {
	ActorWithStates
	config    config.SlaveConfig
	writer    mbclient.SlotWriter
	retry     service.RetryPolicy
	synth     *service.TelemetrySynthesizer
	scheduler *scheduler.TimerScheduler
	metrics   *metrics.AgentMetrics
	logger    *zap.Logger

	powered bool
	// generation identifies the current report loop. Ticks and write
	// results of older loops are dropped.
	generation int
	cancelTick scheduler.CancelFunc
	writing    bool
	attempt    int

	reportsSent int
	connects    int
	failures    int
}

type reportTick struct {
	generation int
}

type reconnectTick struct {
}

type connectResult struct {
	err error
}

type writeResult struct {
	generation int
	telemetry  domain.Telemetry
	duration   time.Duration
	err        error
}

func NewAgentActor(config config.SlaveConfig, writer mbclient.SlotWriter, retry service.RetryPolicy,
	agentMetrics *metrics.AgentMetrics, logger *zap.Logger) *AgentActor {
	deviceType, err := domain.ParseDeviceType(config.DeviceType)
	if err != nil {
		logger.Warn("agent: unknown device type, reporting as solar", zap.String("device_type", config.DeviceType))
		deviceType = domain.DeviceTypeSolar
	}
	if retry == nil {
		retry = service.RetryPolicyFromConfig(config)
	}
	if agentMetrics == nil {
		agentMetrics = metrics.NewNopAgentMetrics()
	}
	act := &AgentActor{
		ActorWithStates: NewActorWithStates(),
		config:          config,
		writer:          writer,
		retry:           retry,
		synth:           service.NewTelemetrySynthesizer(config.SlaveId, deviceType, time.Now(), nil),
		metrics:         agentMetrics,
		powered:         config.Powered,
		logger:          ActorLogger(domain.ACTOR_ID_AGENT, logger).With(zap.Int("slave", config.SlaveId)),
	}
	act.Become(AgentDisconnectedState{actor: act})
	return act
}

func (state *AgentActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

func (state *AgentActor) transition(next ActorState) {
	state.logger.Info(fmt.Sprintf("agent: %s -> %s", state.StateName(), next.Name()))
	state.metrics.StateTransition.WithLabelValues(next.Name()).Inc()
	state.Become(next)
}

// receiveCommon handles the messages every state answers the same way.
func (state *AgentActor) receiveCommon(ctx actor.Context) bool {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ForRequest(msg).Respond(ctx, domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_AGENT,
			Healthy: true,
			State:   state.StateName(),
		})
	case domain.GetAgentStateRequest:
		ForRequest(msg).Respond(ctx, domain.GetAgentStateResponse{
			SlaveId:     state.config.SlaveId,
			State:       state.StateName(),
			Powered:     state.powered,
			ReportsSent: state.reportsSent,
			Connects:    state.connects,
			Failures:    state.failures,
		})
	case domain.SetAgentPowerRequest:
		state.logger.Info("agent: power changed", zap.Bool("enable", msg.Enable))
		state.powered = msg.Enable
		ForRequest(msg).Respond(ctx, domain.SetAgentPowerResponse{})
	case writeResult:
		// result of a write issued by a loop that no longer exists
		state.writing = false
		state.logger.Debug(fmt.Sprintf("agent@%s stale write result", state.StateName()), zap.Int("generation", msg.generation))
	case reportTick:
		state.logger.Debug(fmt.Sprintf("agent@%s tick skipped", state.StateName()))
	case *actor.Stopping:
		state.stopLoop()
		if err := state.writer.Close(); err != nil {
			state.logger.Debug("agent: close", zap.Error(err))
		}
	default:
		return false
	}
	return true
}

func (state *AgentActor) stopLoop() {
	state.generation++
	if state.cancelTick != nil {
		state.cancelTick()
		state.cancelTick = nil
	}
}

func (state *AgentActor) deviceTimeout() time.Duration {
	if state.config.DeviceTimeoutMillis == 0 {
		return DEFAULT_DEVICE_TIMEOUT
	}
	return state.config.DeviceTimeout()
}

// Disconnected state

type AgentDisconnectedState struct {
	ActorState
	actor *AgentActor
}

func (state AgentDisconnectedState) Name() string {
	return AGENT_STATE_DISCONNECTED
}

func (state AgentDisconnectedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("agent@disconnected started", zap.String("master", state.actor.config.MasterAddr()))
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.transition(AgentConnectingState{actor: state.actor}.OnEnter(ctx))
	case reconnectTick:
		state.actor.transition(AgentConnectingState{actor: state.actor}.OnEnter(ctx))
	default:
		if !state.actor.receiveCommon(ctx) {
			state.actor.logger.Debug("agent@disconnected unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
		}
	}
}

// Connecting state

type AgentConnectingState struct {
	ActorState
	actor *AgentActor
}

func (state AgentConnectingState) Name() string {
	return AGENT_STATE_CONNECTING
}

func (state AgentConnectingState) OnEnter(ctx actor.Context) AgentConnectingState {
	writer := state.actor.writer
	NewBackgroundTask(ctx, func() (*connectResult, error) {
		if err := writer.Open(); err != nil {
			return nil, err
		}
		return &connectResult{}, nil
	}).Recover(func(err error) connectResult {
		return connectResult{err: err}
	}).WithTimeout(state.actor.deviceTimeout()).PipeTo(ctx.Self())
	return state
}

func (state AgentConnectingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case connectResult:
		if msg.err != nil {
			state.actor.failures++
			state.actor.metrics.ConnectsTotal.WithLabelValues("error").Inc()
			state.actor.logger.Warn("agent@connecting connect failed", zap.String("master", state.actor.config.MasterAddr()), zap.Error(msg.err))
			state.actor.transition(AgentReconnectingState{actor: state.actor}.OnEnter(ctx))
			return
		}
		state.actor.connects++
		state.actor.attempt = 0
		state.actor.metrics.ConnectsTotal.WithLabelValues("ok").Inc()
		state.actor.logger.Info("agent@connecting connected", zap.String("master", state.actor.config.MasterAddr()))
		state.actor.transition(AgentConnectedState{actor: state.actor}.OnEnter(ctx))
	default:
		if !state.actor.receiveCommon(ctx) {
			state.actor.logger.Debug("agent@connecting unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
		}
	}
}

// Connected state

type AgentConnectedState struct {
	ActorState
	actor *AgentActor
}

func (state AgentConnectedState) Name() string {
	return AGENT_STATE_CONNECTED
}

// OnEnter starts a new report loop. The first tick fires after the first
// report delay.
func (state AgentConnectedState) OnEnter(ctx actor.Context) AgentConnectedState {
	state.actor.stopLoop()
	state.actor.cancelTick = state.actor.scheduler.RequestOnce(state.actor.config.FirstReportDelay(), ctx.Self(),
		reportTick{generation: state.actor.generation})
	return state
}

func (state AgentConnectedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case reportTick:
		if msg.generation != state.actor.generation {
			state.actor.logger.Debug("agent@connected stale tick dropped", zap.Int("generation", msg.generation))
			return
		}
		state.actor.cancelTick = state.actor.scheduler.RequestOnce(state.actor.config.UpdateInterval(), ctx.Self(),
			reportTick{generation: state.actor.generation})
		if state.actor.writing {
			state.actor.logger.Debug("agent@connected tick skipped, write in flight")
			return
		}
		state.report(ctx)
	case writeResult:
		state.actor.writing = false
		if msg.generation != state.actor.generation {
			state.actor.logger.Debug("agent@connected stale write result", zap.Int("generation", msg.generation))
			return
		}
		state.actor.metrics.WriteDuration.Observe(msg.duration.Seconds())
		if msg.err != nil {
			state.actor.failures++
			state.actor.metrics.ReportsTotal.WithLabelValues("error").Inc()
			state.actor.logger.Error("agent@connected send failed", zap.Error(msg.err))
			state.actor.transition(AgentReconnectingState{actor: state.actor}.OnEnter(ctx))
			return
		}
		state.actor.reportsSent++
		state.actor.metrics.ReportsTotal.WithLabelValues("ok").Inc()
		t := msg.telemetry
		state.actor.logger.Info(fmt.Sprintf("slave %d (%s) reported %.2f %s", t.SlaveId, t.DeviceType, t.Power, t.DeviceType.Unit()),
			zap.String("status", string(t.Status)))
	default:
		if !state.actor.receiveCommon(ctx) {
			state.actor.logger.Debug("agent@connected unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
		}
	}
}

// report synthesizes a reading and writes the whole slot in one 0x10 request.
func (state AgentConnectedState) report(ctx actor.Context) {
	t := state.actor.synth.Next(state.actor.powered)
	slot := telemetry.EncodeSlot(t)
	addr := uint16(register.SlotBase(state.actor.config.SlaveId))
	generation := state.actor.generation
	writer := state.actor.writer

	state.actor.writing = true
	NewBackgroundTask(ctx, func() (*writeResult, error) {
		start := time.Now()
		if err := writer.WriteRegisters(addr, slot[:]); err != nil {
			return nil, err
		}
		return &writeResult{
			generation: generation,
			telemetry:  t,
			duration:   time.Since(start),
		}, nil
	}).Recover(func(err error) writeResult {
		return writeResult{
			generation: generation,
			telemetry:  t,
			err:        err,
		}
	}).WithTimeout(state.actor.deviceTimeout()).PipeTo(ctx.Self())
}

// Reconnecting state

type AgentReconnectingState struct {
	ActorState
	actor *AgentActor
}

func (state AgentReconnectingState) Name() string {
	return AGENT_STATE_RECONNECTING
}

// OnEnter tears down the report loop and the socket, then waits for the
// retry policy delay before connecting again.
func (state AgentReconnectingState) OnEnter(ctx actor.Context) AgentReconnectingState {
	state.actor.stopLoop()
	if err := state.actor.writer.Close(); err != nil {
		state.actor.logger.Debug("agent@reconnecting close", zap.Error(err))
	}
	state.actor.attempt++
	delay := state.actor.retry.Next(state.actor.attempt)
	state.actor.logger.Info("agent@reconnecting retry scheduled", zap.Int("attempt", state.actor.attempt), zap.Duration("delay", delay))
	state.actor.cancelTick = state.actor.scheduler.RequestOnce(delay, ctx.Self(), reconnectTick{})
	return state
}

func (state AgentReconnectingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case reconnectTick:
		state.actor.transition(AgentConnectingState{actor: state.actor}.OnEnter(ctx))
	default:
		if !state.actor.receiveCommon(ctx) {
			state.actor.logger.Debug("agent@reconnecting unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
		}
	}
}
