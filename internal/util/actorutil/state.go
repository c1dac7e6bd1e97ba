package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorWithStates tracks the name of the current behavior so it can be
// reported to callers.
type ActorWithStates struct {
	Behavior actor.Behavior
	current  string
}

type ActorState interface {
	Name() string
	Receive(actor.Context)
}

func NewActorWithStates() ActorWithStates {
	return ActorWithStates{Behavior: actor.NewBehavior()}
}

func (s *ActorWithStates) Become(state ActorState) {
	s.current = state.Name()
	s.Behavior.Become(state.Receive)
}

func (s *ActorWithStates) StateName() string {
	return s.current
}
