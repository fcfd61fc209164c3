package webrtc

import (
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRTCPSampler_AveragesReports(t *testing.T) {
	s := NewRTCPSampler(ClockRateVideo)
	_, ok := s.Sample()
	assert.False(t, ok)

	at := time.Unix(1700000000, 0)
	s.Observe([]rtcp.Packet{
		&rtcp.PictureLossIndication{},
		&rtcp.ReceiverReport{Reports: []rtcp.ReceptionReport{
			{FractionLost: 0, Jitter: 450},
			{FractionLost: 128, Jitter: 1350},
		}},
	}, at)

	sample, ok := s.Sample()
	require.True(t, ok)
	assert.InDelta(t, 0.25, sample.PacketLoss, 0.0001)
	assert.InDelta(t, 10.0, sample.JitterMs, 0.0001)
	assert.False(t, sample.HasRTT)
	assert.Equal(t, at, sample.ReceivedAt)
}

func TestRTCPSampler_IgnoresPacketsWithoutReports(t *testing.T) {
	s := NewRTCPSampler(0)
	s.Observe([]rtcp.Packet{&rtcp.SenderReport{}, &rtcp.TransportLayerNack{}}, time.Now())

	_, ok := s.Sample()
	assert.False(t, ok)
}

func TestRTCPSampler_RoundTrip(t *testing.T) {
	sent := time.Unix(1700000000, 0)
	arrival := sent.Add(150 * time.Millisecond)
	lsr := ntpMiddle32(sent)
	// receiver held the report for 100ms before answering
	dlsr := uint32(65536 / 10)

	s := NewRTCPSampler(ClockRateVideo)
	s.Observe([]rtcp.Packet{&rtcp.ReceiverReport{Reports: []rtcp.ReceptionReport{
		{LastSenderReport: lsr, Delay: dlsr},
	}}}, arrival)

	sample, ok := s.Sample()
	require.True(t, ok)
	require.True(t, sample.HasRTT)
	assert.InDelta(t, 50.0, sample.RTTMs, 0.1)
}

func TestRTCPSampler_SkewedRoundTripIgnored(t *testing.T) {
	sent := time.Unix(1700000000, 0)
	_, ok := roundTrip(rtcp.ReceptionReport{LastSenderReport: ntpMiddle32(sent), Delay: 65536}, sent)
	assert.False(t, ok)
}

func TestJitterEstimator_SteadyStream(t *testing.T) {
	e := NewJitterEstimator(ClockRateAudio)
	assert.False(t, e.Started())

	start := time.Unix(1700000000, 0)
	for i := 0; i < 100; i++ {
		pkt := &rtp.Packet{Header: rtp.Header{SequenceNumber: uint16(i), Timestamp: uint32(i * 960)}}
		e.Observe(pkt, start.Add(time.Duration(i)*20*time.Millisecond))
	}

	assert.True(t, e.Started())
	assert.InDelta(t, 0.0, e.JitterMs(), 0.01)
	assert.Equal(t, 0.0, e.Loss())
}

func TestJitterEstimator_AlternatingDelay(t *testing.T) {
	e := NewJitterEstimator(ClockRateAudio)
	start := time.Unix(1700000000, 0)
	for i := 0; i < 400; i++ {
		delay := time.Duration(0)
		if i%2 == 1 {
			delay = 10 * time.Millisecond
		}
		pkt := &rtp.Packet{Header: rtp.Header{SequenceNumber: uint16(i), Timestamp: uint32(i * 960)}}
		e.Observe(pkt, start.Add(time.Duration(i)*20*time.Millisecond+delay))
	}

	// every transit difference is 10ms, so the estimate converges there
	assert.InDelta(t, 10.0, e.JitterMs(), 0.1)
}

func TestJitterEstimator_LossAcrossWrap(t *testing.T) {
	e := NewJitterEstimator(ClockRateVideo)
	start := time.Unix(1700000000, 0)

	seq := uint16(65530)
	for i := 0; i < 20; i++ {
		if i%4 != 3 {
			e.Observe(&rtp.Packet{Header: rtp.Header{SequenceNumber: seq}}, start)
		}
		seq++
	}

	// 20 expected, 15 received; the last packet (i=19) is dropped so the
	// highest sequence seen is i=18
	assert.InDelta(t, 4.0/19.0, e.Loss(), 0.0001)
}

func TestJitterEstimator_NilPacket(t *testing.T) {
	e := NewJitterEstimator(0)
	e.Observe(nil, time.Now())
	assert.False(t, e.Started())
	assert.Equal(t, 0.0, e.Loss())
}
