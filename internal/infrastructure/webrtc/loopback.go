package webrtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"rillscope/internal/core/ports"
	"rillscope/pkg/logger"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const (
	opusPayloadType = 111
	opusFrame       = 20 * time.Millisecond
	opusFrameUnits  = ClockRateAudio / 50
)

// Loopback is an in-process call between two peer connections on this
// host. The sender streams silent Opus frames; the receiving side is
// measured by a PeerConnectionStatsProvider.
type Loopback struct {
	sender   *webrtc.PeerConnection
	receiver *webrtc.PeerConnection
	track    *webrtc.TrackLocalStaticRTP
	provider *PeerConnectionStatsProvider
	logger   *zap.SugaredLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLoopback negotiates the call and starts streaming. Room and history
// lookups of the returned provider go to fallback.
func NewLoopback(ctx context.Context, fallback ports.StatsProvider, log *zap.SugaredLogger) (*Loopback, error) {
	log = logger.OrNop(log)

	api, err := newAPI()
	if err != nil {
		return nil, err
	}

	l := &Loopback{logger: log}
	if l.sender, err = api.NewPeerConnection(webrtc.Configuration{}); err != nil {
		return nil, fmt.Errorf("failed to create sender: %w", err)
	}
	if l.receiver, err = api.NewPeerConnection(webrtc.Configuration{}); err != nil {
		_ = l.sender.Close()
		return nil, fmt.Errorf("failed to create receiver: %w", err)
	}

	l.provider = NewPeerConnectionStatsProvider(l.receiver, log,
		WithRTCPSampler(NewRTCPSampler(ClockRateAudio)),
		WithFallback(fallback),
	)

	runCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	if err := l.connect(ctx, runCtx); err != nil {
		l.Close()
		return nil, err
	}

	l.wg.Add(1)
	go l.stream(runCtx)
	return l, nil
}

func newAPI() (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{}
	se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	), nil
}

func (l *Loopback) connect(ctx, runCtx context.Context) error {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: ClockRateAudio, Channels: 2},
		"audio",
		"rillscope-loopback",
	)
	if err != nil {
		return err
	}
	l.track = track

	rtpSender, err := l.sender.AddTrack(track)
	if err != nil {
		return err
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.provider.WatchSender(runCtx, rtpSender)
	}()

	l.receiver.OnTrack(func(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		l.logger.Infow("loopback track started",
			"track_id", remote.ID(),
			"codec", remote.Codec().MimeType,
		)
		l.wg.Add(2)
		go func() {
			defer l.wg.Done()
			l.provider.WatchTrack(runCtx, remote)
		}()
		go func() {
			defer l.wg.Done()
			l.provider.WatchReceiver(runCtx, receiver)
		}()
	})

	connected := make(chan struct{})
	var once sync.Once
	l.receiver.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		l.logger.Debugw("loopback connection state changed", "state", state.String())
		if state == webrtc.PeerConnectionStateConnected {
			once.Do(func() { close(connected) })
		}
	})

	offer, err := l.sender.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := setLocalAndGather(ctx, l.sender, offer); err != nil {
		return fmt.Errorf("offer: %w", err)
	}
	if err := l.receiver.SetRemoteDescription(*l.sender.LocalDescription()); err != nil {
		return err
	}

	answer, err := l.receiver.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := setLocalAndGather(ctx, l.receiver, answer); err != nil {
		return fmt.Errorf("answer: %w", err)
	}
	if err := l.sender.SetRemoteDescription(*l.receiver.LocalDescription()); err != nil {
		return err
	}

	select {
	case <-connected:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("loopback did not connect: %w", ctx.Err())
	}
}

// setLocalAndGather applies desc and waits for ICE gathering, so the
// description carries every candidate and no trickle is needed.
func setLocalAndGather(ctx context.Context, pc *webrtc.PeerConnection, desc webrtc.SessionDescription) error {
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(desc); err != nil {
		return err
	}
	select {
	case <-gathered:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loopback) stream(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(opusFrame)
	defer ticker.Stop()

	// Opus DTX silence frame
	payload := []byte{0xf8, 0xff, 0xfe}
	var (
		seq uint16
		ts  uint32
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := l.track.WriteRTP(&rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    opusPayloadType,
				SequenceNumber: seq,
				Timestamp:      ts,
			},
			Payload: payload,
		})
		if err != nil {
			if !errors.Is(err, io.ErrClosedPipe) {
				l.logger.Warnw("loopback write failed", "error", err)
			}
			return
		}
		seq++
		ts += opusFrameUnits
	}
}

// Provider measures the receiving side of the call.
func (l *Loopback) Provider() *PeerConnectionStatsProvider {
	return l.provider
}

// Close hangs up and waits for the reader and writer goroutines.
func (l *Loopback) Close() error {
	if l.cancel != nil {
		l.cancel()
	}
	var errs []error
	if l.sender != nil {
		errs = append(errs, l.sender.Close())
	}
	if l.receiver != nil {
		errs = append(errs, l.receiver.Close())
	}
	l.wg.Wait()
	return errors.Join(errs...)
}
