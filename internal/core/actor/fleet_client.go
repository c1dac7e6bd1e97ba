package actor

import (
	"context"
	"errors"
	"time"

	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/berfenger/gridfleet/internal/util/actorutil"
	"github.com/berfenger/gridfleet/pkg/mbframe"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
)

const defaultRequestTimeout = 5 * time.Second

// FleetClient talks to a FleetActor through request futures.
type FleetClient struct {
	root        *actor.RootContext
	fleet       *actor.PID
	eventStream *eventstream.EventStream
}

func NewFleetClient(root *actor.RootContext, fleet *actor.PID, eventStream *eventstream.EventStream) *FleetClient {
	return &FleetClient{
		root:        root,
		fleet:       fleet,
		eventStream: eventStream,
	}
}

func (c *FleetClient) Apply(ctx context.Context, connId string, frame *mbframe.Frame) (*mbframe.Frame, error) {
	timeout, err := requestTimeout(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := actorutil.Await[domain.ApplyFrameResponse](c.root, c.fleet, domain.ApplyFrameRequest{ConnId: connId, Frame: frame}, timeout)
	return resp.Response, err
}

func (c *FleetClient) GetSnapshot(ctx context.Context) (domain.Snapshot, error) {
	timeout, err := requestTimeout(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	resp, err := actorutil.Await[domain.GetSnapshotResponse](c.root, c.fleet, domain.GetSnapshotRequest{}, timeout)
	return resp.Snapshot, err
}

func (c *FleetClient) SetSlavePower(ctx context.Context, slaveId int, enable bool) (bool, error) {
	timeout, err := requestTimeout(ctx)
	if err != nil {
		return false, err
	}
	resp, err := actorutil.Await[domain.SetSlavePowerResponse](c.root, c.fleet, domain.SetSlavePowerRequest{SlaveId: slaveId, Enable: enable}, timeout)
	if errors.Is(err, ErrUnknownSlave) {
		return false, nil
	}
	return resp.Telemetry != nil, err
}

func (c *FleetClient) OnSnapshot(fn func(domain.Snapshot)) func() {
	sub := c.eventStream.Subscribe(func(evt any) {
		if snapshot, ok := evt.(domain.Snapshot); ok {
			fn(snapshot)
		}
	})
	return func() {
		c.eventStream.Unsubscribe(sub)
	}
}

func (c *FleetClient) Healthy(ctx context.Context) bool {
	timeout, err := requestTimeout(ctx)
	if err != nil {
		return false
	}
	resp, err := actorutil.Await[domain.ActorHealthResponse](c.root, c.fleet, domain.ActorHealthRequest{}, timeout)
	return err == nil && resp.Healthy
}

// requestTimeout derives the future timeout from the context deadline.
func requestTimeout(ctx context.Context) (time.Duration, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return defaultRequestTimeout, nil
	}
	timeout := time.Until(deadline)
	if timeout <= 0 {
		return 0, context.DeadlineExceeded
	}
	return timeout, nil
}
