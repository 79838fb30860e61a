package rdt

import (
	"math"
	"time"
)

// EWMA weights for the smoothed RTT and its deviation.
const (
	rttAlpha = 0.125
	rttBeta  = 0.25
)

// timeoutFloor keeps the timeout positive once repeated zero samples have
// decayed both terms to nothing.
const timeoutFloor = 1e-6

// maxBackoffShift caps timer doubling when no MaxTimeout is configured.
const maxBackoffShift = 6

// Estimator tracks a smoothed round-trip time and derives the
// retransmission timeout from it. Values are in seconds.
type Estimator struct {
	EstimatedRTT float64
	DeviationRTT float64

	min, max time.Duration
	// backoff is the number of doublings applied since the last sample.
	backoff int
}

// NewEstimator seeds an estimator from cfg.
func NewEstimator(cfg Config) *Estimator {
	return &Estimator{
		EstimatedRTT: cfg.InitialRTT.Seconds(),
		DeviationRTT: cfg.InitialDeviation.Seconds(),
		min:          cfg.MinTimeout,
		max:          cfg.MaxTimeout,
	}
}

// Timeout returns EstimatedRTT + 4*DeviationRTT in seconds. It is always
// strictly positive.
func (e *Estimator) Timeout() float64 {
	t := e.EstimatedRTT + 4*e.DeviationRTT
	if !(t > timeoutFloor) {
		return timeoutFloor
	}
	return t
}

// TimeoutDuration is Timeout clamped to the configured bounds, doubled once
// per Backoff since the last sample and clamped to MaxTimeout again.
func (e *Estimator) TimeoutDuration() time.Duration {
	d := time.Duration(e.Timeout() * float64(time.Second))
	if d <= 0 {
		d = time.Nanosecond
	}
	if e.min > 0 && d < e.min {
		d = e.min
	}
	if e.max > 0 && d > e.max {
		d = e.max
	}
	for i := 0; i < e.backoff; i++ {
		if e.max > 0 && d >= e.max {
			return e.max
		}
		d *= 2
	}
	if e.max > 0 && d > e.max {
		d = e.max
	}
	return d
}

// Backoff doubles the timeout after an expiry, until the next sample.
func (e *Estimator) Backoff() {
	if e.backoff < maxBackoffShift {
		e.backoff++
	}
}

// Observe folds one RTT sample into the estimate and clears any backoff.
// The deviation is measured against the estimate as it stood before this
// sample.
func (e *Estimator) Observe(sample float64) {
	if sample < 0 || math.IsNaN(sample) {
		sample = 0
	}
	e.backoff = 0
	prev := e.EstimatedRTT
	e.EstimatedRTT = (1-rttAlpha)*prev + rttAlpha*sample
	e.DeviationRTT = (1-rttBeta)*e.DeviationRTT + rttBeta*math.Abs(sample-prev)
}
