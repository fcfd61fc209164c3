package webrtc

import (
	"math"
	"sync"
	"time"

	"github.com/pion/rtp"
)

const (
	ClockRateVideo = 90000
	ClockRateAudio = 48000
)

// JitterEstimator tracks interarrival jitter and sequence loss for a single
// RTP stream, following RFC 3550 section 6.4.1 and appendix A.3.
type JitterEstimator struct {
	clockRate float64

	mu          sync.Mutex
	started     bool
	base        time.Time
	lastTransit float64
	jitter      float64 // timestamp units

	baseSeq  uint16
	maxSeq   uint16
	cycles   uint32
	received uint32
}

// NewJitterEstimator creates an estimator for a stream with clockRate.
func NewJitterEstimator(clockRate uint32) *JitterEstimator {
	if clockRate == 0 {
		clockRate = ClockRateVideo
	}
	return &JitterEstimator{clockRate: float64(clockRate)}
}

// Observe folds one packet received at the given time.
func (e *JitterEstimator) Observe(pkt *rtp.Packet, arrival time.Time) {
	if pkt == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	seq := pkt.SequenceNumber
	if !e.started {
		e.started = true
		e.base = arrival
		e.baseSeq = seq
		e.maxSeq = seq
		e.received = 1
		e.lastTransit = e.arrivalUnits(arrival) - float64(pkt.Timestamp)
		return
	}

	e.received++
	if delta := seq - e.maxSeq; delta != 0 && delta < 1<<15 {
		if seq < e.maxSeq {
			e.cycles++
		}
		e.maxSeq = seq
	}

	transit := e.arrivalUnits(arrival) - float64(pkt.Timestamp)
	d := math.Abs(transit - e.lastTransit)
	e.lastTransit = transit
	e.jitter += (d - e.jitter) / 16
}

func (e *JitterEstimator) arrivalUnits(t time.Time) float64 {
	return t.Sub(e.base).Seconds() * e.clockRate
}

// JitterMs is the current estimate in milliseconds.
func (e *JitterEstimator) JitterMs() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.jitter / e.clockRate * 1000
}

// Loss is the fraction of expected packets that never arrived. Duplicates
// can push received above expected; that reads as zero loss.
func (e *JitterEstimator) Loss() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return 0
	}
	expected := e.cycles<<16 + uint32(e.maxSeq) - uint32(e.baseSeq) + 1
	if expected == 0 || e.received >= expected {
		return 0
	}
	return float64(expected-e.received) / float64(expected)
}

// Started reports whether any packet has been observed.
func (e *JitterEstimator) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}
