package modbustcp

import (
	"sync/atomic"
)

// ConnectionLimiter caps the number of concurrently served connections.
// Acquire never blocks; a full limiter rejects the connection.
type ConnectionLimiter struct {
	sem           chan struct{}
	maxConn       int
	activeCount   atomic.Int64
	rejectedCount atomic.Int64
}

func NewConnectionLimiter(maxConn int) *ConnectionLimiter {
	if maxConn <= 0 {
		maxConn = DEFAULT_MAX_CONNECTIONS
	}
	return &ConnectionLimiter{
		sem:     make(chan struct{}, maxConn),
		maxConn: maxConn,
	}
}

func (l *ConnectionLimiter) TryAcquire() bool {
	select {
	case l.sem <- struct{}{}:
		l.activeCount.Add(1)
		return true
	default:
		l.rejectedCount.Add(1)
		return false
	}
}

func (l *ConnectionLimiter) Release() {
	select {
	case <-l.sem:
		l.activeCount.Add(-1)
	default:
	}
}

func (l *ConnectionLimiter) Current() int {
	return int(l.activeCount.Load())
}

func (l *ConnectionLimiter) MaxConnections() int {
	return l.maxConn
}

func (l *ConnectionLimiter) RejectedCount() int64 {
	return l.rejectedCount.Load()
}
