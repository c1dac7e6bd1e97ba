package service

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/berfenger/gridfleet/internal/config"
)

const DEFAULT_RECONNECT_DELAY = 5 * time.Second

// RetryPolicy decides how long the agent waits before reconnect attempt
// number attempt (starting at 1).
type RetryPolicy interface {
	Next(attempt int) time.Duration
}

// FixedRetryPolicy always waits Delay. There is no attempt cap.
type FixedRetryPolicy struct {
	Delay time.Duration
}

func (p FixedRetryPolicy) Next(_ int) time.Duration {
	if p.Delay <= 0 {
		return DEFAULT_RECONNECT_DELAY
	}
	return p.Delay
}

// ExponentialRetryPolicy grows the delay by Multiplier on every attempt up to
// Max. Jitter in [0,1] randomizes the delay by up to that fraction.
type ExponentialRetryPolicy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
	rand       func() float64
}

func NewExponentialRetryPolicy(initial time.Duration, max time.Duration) *ExponentialRetryPolicy {
	return &ExponentialRetryPolicy{
		Initial:    initial,
		Max:        max,
		Multiplier: 2,
		Jitter:     0.2,
	}
}

func (p *ExponentialRetryPolicy) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := p.Initial
	if initial <= 0 {
		initial = DEFAULT_RECONNECT_DELAY
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if p.Max > 0 && delay > float64(p.Max) {
		delay = float64(p.Max)
	}
	if p.Jitter > 0 {
		r := rand.Float64
		if p.rand != nil {
			r = p.rand
		}
		delay -= delay * math.Min(p.Jitter, 1) * r()
	}
	return time.Duration(delay)
}

// RetryPolicyFromConfig builds the reconnect policy selected by
// slave.retry_policy. Unknown values fall back to a fixed delay.
func RetryPolicyFromConfig(cfg config.SlaveConfig) RetryPolicy {
	if cfg.RetryPolicy == config.RETRY_POLICY_EXP {
		return NewExponentialRetryPolicy(cfg.ReconnectDelay(), cfg.MaxReconnectDelay())
	}
	return FixedRetryPolicy{Delay: cfg.ReconnectDelay()}
}
