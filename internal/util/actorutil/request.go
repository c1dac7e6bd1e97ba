package actorutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/gridfleet/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
)

var ErrUnexpectedResponse = errors.New("unexpected response")

type forRequest struct {
	req domain.ActorRequest
}

type ExtendedRequest interface {
	// Respond sends resp to the explicit reply ref, else to the sender. Fire
	// and forget requests get no response.
	Respond(ctx actor.Context, resp domain.ActorResponse)
	ReplyTo(ctx actor.Context) *actor.PID
}

func ForRequest(r domain.ActorRequest) ExtendedRequest {
	return forRequest{req: r}
}

func (r forRequest) Respond(ctx actor.Context, resp domain.ActorResponse) {
	if pid := r.ReplyTo(ctx); pid != nil {
		ctx.Send(pid, resp)
	}
}

func (r forRequest) ReplyTo(ctx actor.Context) *actor.PID {
	if r.req.ReplyTo() != nil {
		return (*actor.PID)(r.req.ReplyTo())
	}
	return ctx.Sender()
}

// Await sends req to pid and waits for a response of type T. A response
// carrying an error is returned together with that error.
func Await[T domain.ActorResponse](root *actor.RootContext, pid *actor.PID, req domain.ActorRequest, timeout time.Duration) (T, error) {
	var zero T
	res, err := root.RequestFuture(pid, req, timeout).Result()
	if err != nil {
		return zero, err
	}
	resp, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T", ErrUnexpectedResponse, res)
	}
	return resp, resp.GetResponseError()
}
