package port

import (
	"context"

	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/berfenger/gridfleet/pkg/mbframe"
)

// Fleet is the collector core as seen by the transports and the
// presentation layer.
type Fleet interface {
	// Apply executes a decoded request. A nil frame means no response is sent.
	Apply(ctx context.Context, connId string, frame *mbframe.Frame) (*mbframe.Frame, error)
	GetSnapshot(ctx context.Context) (domain.Snapshot, error)
	// SetSlavePower reports false, without error, when the slave is unknown.
	SetSlavePower(ctx context.Context, slaveId int, enable bool) (bool, error)
	// OnSnapshot registers fn for every emitted snapshot and returns a
	// function that removes it.
	OnSnapshot(fn func(domain.Snapshot)) (unsubscribe func())
	Healthy(ctx context.Context) bool
}
