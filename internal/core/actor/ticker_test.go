package actor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSnapshotTickerDeliversTicks(t *testing.T) {

	assert := assert.New(t)

	as := actor.NewActorSystem()
	defer as.Shutdown()

	var ticks atomic.Int32
	target := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		if _, ok := ctx.Message().(snapshotTick); ok {
			ticks.Add(1)
		}
	}))

	ticker, err := StartSnapshotTicker(as.Root, target, 50*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	assert.Eventually(func() bool { return ticks.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)

	ticker.Stop()
	time.Sleep(100 * time.Millisecond)
	stopped := ticks.Load()
	time.Sleep(200 * time.Millisecond)
	assert.Equal(stopped, ticks.Load())
}
