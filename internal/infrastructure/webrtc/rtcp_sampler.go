package webrtc

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
)

// ntpEpochOffset is the number of seconds between 1900 and 1970.
const ntpEpochOffset = 2208988800

// RTCPSample is the latest reading folded from receiver reports.
type RTCPSample struct {
	PacketLoss float64 // fraction 0-1
	JitterMs   float64
	RTTMs      float64
	HasRTT     bool
	ReceivedAt time.Time
}

// RTCPSampler keeps the most recent loss, jitter and round-trip readings
// carried by RTCP receiver reports.
type RTCPSampler struct {
	clockRate float64

	mu     sync.Mutex
	sample RTCPSample
	seen   bool
}

// NewRTCPSampler creates a sampler for a stream with clockRate.
func NewRTCPSampler(clockRate uint32) *RTCPSampler {
	if clockRate == 0 {
		clockRate = ClockRateVideo
	}
	return &RTCPSampler{clockRate: float64(clockRate)}
}

// Observe folds the receiver reports among packets, which arrived at the
// given time. Reports from one compound packet are averaged. Other packet
// types are ignored.
func (s *RTCPSampler) Observe(packets []rtcp.Packet, arrival time.Time) {
	var (
		lossSum, jitterSum, rttSum float64
		reports, rttReports        int
	)

	for _, packet := range packets {
		rr, ok := packet.(*rtcp.ReceiverReport)
		if !ok {
			continue
		}
		for _, report := range rr.Reports {
			lossSum += float64(report.FractionLost) / 256
			jitterSum += float64(report.Jitter) / s.clockRate * 1000
			reports++

			if rtt, ok := roundTrip(report, arrival); ok {
				rttSum += rtt
				rttReports++
			}
		}
	}

	if reports == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen = true
	s.sample.PacketLoss = lossSum / float64(reports)
	s.sample.JitterMs = jitterSum / float64(reports)
	s.sample.ReceivedAt = arrival
	if rttReports > 0 {
		s.sample.RTTMs = rttSum / float64(rttReports)
		s.sample.HasRTT = true
	}
}

// Sample returns the latest reading and whether any report was seen.
func (s *RTCPSampler) Sample() (RTCPSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample, s.seen
}

// roundTrip computes A - LSR - DLSR in milliseconds. Reports without a
// sender report reference carry no round-trip information.
func roundTrip(report rtcp.ReceptionReport, arrival time.Time) (float64, bool) {
	if report.LastSenderReport == 0 {
		return 0, false
	}
	a := ntpMiddle32(arrival)
	units := a - report.LastSenderReport - report.Delay
	if units > 1<<31 {
		// arrival before LSR+DLSR: clock skew
		return 0, false
	}
	return float64(units) * 1000 / 65536, true
}

// ntpMiddle32 is the compact NTP representation used by LSR: the low 16
// bits of the seconds and the high 16 bits of the fraction.
func ntpMiddle32(t time.Time) uint32 {
	secs := uint64(t.Unix()) + ntpEpochOffset
	frac := uint64(t.Nanosecond()) << 32 / uint64(time.Second)
	return uint32(secs<<16) | uint32(frac>>16)
}
