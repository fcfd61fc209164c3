package charts

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rillscope/internal/core/domain"
)

var testSize = Size{Width: 600, Height: 300}

func samples(values ...float64) []BandwidthSample {
	base := time.Unix(1700000000, 0)
	out := make([]BandwidthSample, len(values))
	for i, v := range values {
		out[i] = BandwidthSample{At: base.Add(time.Duration(i) * 5 * time.Second), Upload: v, Download: v / 2}
	}
	return out
}

func TestRenderBandwidth_Structure(t *testing.T) {
	list := RenderBandwidth(testSize, samples(100, 200, 400))

	ops := list.DrawOps()
	require.GreaterOrEqual(t, len(ops), 6)
	assert.Equal(t, OpClearRect, ops[0])
	assert.Equal(t, OpFillRect, ops[1], "background")
	for i := 2; i < 2+gridLines+1; i++ {
		assert.Equal(t, OpFillRect, ops[i], "grid line %d", i)
	}

	assert.Equal(t, 2, list.Count(OpBeginPath), "one path per series")
	assert.Equal(t, 2, list.Count(OpMoveTo))
	assert.Equal(t, 4, list.Count(OpLineTo))
	assert.Equal(t, 2, list.Count(OpStroke))
	assert.Contains(t, list.Texts(), "400 kbps")
}

func TestRenderBandwidth_PeakTouchesTop(t *testing.T) {
	list := RenderBandwidth(testSize, samples(0, 1000))

	var lastLine Command
	for _, c := range list {
		if c.Op == OpLineTo {
			lastLine = c
			break
		}
	}
	require.Len(t, lastLine.Args, 2)
	assert.InDelta(t, float64(plotPadTop), lastLine.Args[1], 0.001)
}

func TestRenderBandwidth_Degenerate(t *testing.T) {
	tests := []struct {
		name    string
		samples []BandwidthSample
	}{
		{"no samples", nil},
		{"all zero", samples(0, 0, 0)},
		{"single sample", samples(50)},
		{"nan and negative", []BandwidthSample{{Upload: math.NaN(), Download: -5}, {Upload: math.Inf(1)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var list CommandList
			require.NotPanics(t, func() { list = RenderBandwidth(testSize, tt.samples) })

			assert.Equal(t, 2, list.Count(OpStroke))
			for _, c := range list {
				for _, a := range c.Args {
					assert.False(t, math.IsNaN(a) || math.IsInf(a, 0), "op %s has non-finite arg", c.Op)
				}
			}
		})
	}
}

func TestRenderBandwidth_EmptyIsFlatBaseline(t *testing.T) {
	list := RenderBandwidth(testSize, nil)

	var ys []float64
	for _, c := range list {
		if c.Op == OpMoveTo || c.Op == OpLineTo {
			ys = append(ys, c.Args[1])
		}
	}
	require.Len(t, ys, 4)
	for _, y := range ys {
		assert.Equal(t, ys[0], y)
	}
}

func TestRenderQualityMeter(t *testing.T) {
	list := RenderQualityMeter(testSize, 4, 2)

	assert.Equal(t, []Op{
		OpClearRect,
		OpFillRect, OpFillRect, OpFillText, OpFillText,
		OpFillRect, OpFillRect, OpFillText, OpFillText,
	}, list.DrawOps())
	assert.Equal(t, []string{"Video", "4/5", "Audio", "2/5"}, list.Texts())

	var rects []Command
	for _, c := range list {
		if c.Op == OpFillRect {
			rects = append(rects, c)
		}
	}
	require.Len(t, rects, 4)
	track := rects[0].Args[2]
	assert.InDelta(t, track*4/5, rects[1].Args[2], 0.001)
	assert.InDelta(t, track*2/5, rects[3].Args[2], 0.001)
}

func TestRenderQualityMeter_Clamps(t *testing.T) {
	list := RenderQualityMeter(testSize, 9, -3)

	assert.Equal(t, []string{"Video", "5/5", "Audio", "0/5"}, list.Texts())
}

func TestParticipantBreakdown(t *testing.T) {
	tests := []struct {
		name string
		ps   *domain.ParticipantSnapshot
		want []float64
	}{
		{"nil", nil, []float64{0, 0, 0}},
		{"typical", &domain.ParticipantSnapshot{ParticipantCount: 5, SpeakingCount: 2, VideoCount: 3}, []float64{2, 3, 3}},
		{"speaking exceeds total", &domain.ParticipantSnapshot{ParticipantCount: 1, SpeakingCount: 3}, []float64{3, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slices := ParticipantBreakdown(tt.ps)
			require.Len(t, slices, 3)
			for i, want := range tt.want {
				assert.Equal(t, want, slices[i].Value)
			}
		})
	}
}

func TestRenderParticipantsPie(t *testing.T) {
	slices := []PieSlice{
		{Label: "a", Value: 1, Color: ColorSpeaking},
		{Label: "b", Value: 0, Color: ColorNotSpeaking},
		{Label: "c", Value: 3, Color: ColorVideoOn},
	}
	list := RenderParticipantsPie(testSize, slices)

	assert.Equal(t, 2, list.Count(OpArc), "zero slice is skipped")
	assert.Equal(t, 2, list.Count(OpFill))

	var arcs []Command
	for _, c := range list {
		if c.Op == OpArc {
			arcs = append(arcs, c)
		}
	}
	span := func(c Command) float64 { return c.Args[4] - c.Args[3] }
	assert.InDelta(t, 2*math.Pi/4, span(arcs[0]), 1e-9)
	assert.InDelta(t, 2*math.Pi*3/4, span(arcs[1]), 1e-9)
	assert.InDelta(t, arcs[0].Args[4], arcs[1].Args[3], 1e-9, "wedges are contiguous")
}

func TestRenderParticipantsPie_ZeroTotal(t *testing.T) {
	list := RenderParticipantsPie(testSize, ParticipantBreakdown(nil))

	assert.Equal(t, 1, list.Count(OpArc))
	assert.Equal(t, 1, list.Count(OpStroke))
	assert.Zero(t, list.Count(OpFill))
}

func TestRenderLatencyGauge(t *testing.T) {
	tests := []struct {
		name     string
		rtt      float64
		max      float64
		fraction float64
		color    string
	}{
		{"good", 50, 500, 0.1, ColorGood},
		{"fair", 250, 500, 0.5, ColorFair},
		{"poor over max", 900, 500, 1, ColorPoor},
		{"zero max", 120, 0, 0, ColorFair},
		{"negative max", 120, -1, 0, ColorFair},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := RenderLatencyGauge(testSize, tt.rtt, tt.max)

			assert.Equal(t, []Op{
				OpClearRect,
				OpBeginPath, OpArc, OpStroke,
				OpBeginPath, OpArc, OpStroke,
				OpFillText,
			}, list.DrawOps())

			var arcs []Command
			var strokes []string
			for _, c := range list {
				switch c.Op {
				case OpArc:
					arcs = append(arcs, c)
				case OpSetStrokeStyle:
					strokes = append(strokes, c.Text)
				}
			}
			assert.InDelta(t, gaugeSpan, arcs[0].Args[4]-arcs[0].Args[3], 1e-9)
			assert.InDelta(t, gaugeSpan*tt.fraction, arcs[1].Args[4]-arcs[1].Args[3], 1e-9)
			assert.Equal(t, tt.color, strokes[len(strokes)-1])
		})
	}
}

func TestRenderers_InvalidSizeFallsBack(t *testing.T) {
	list := RenderQualityMeter(Size{Width: -1, Height: math.NaN()}, 3, 3)

	require.NotEmpty(t, list)
	assert.Equal(t, []float64{0, 0, DefaultSize.Width, DefaultSize.Height}, list[0].Args)
}

func TestRenderAll(t *testing.T) {
	set := RenderAll(ChartInput{Size: testSize, GaugeMax: DefaultGaugeMax})

	for _, name := range ChartNames() {
		assert.NotEmpty(t, set[name], name)
	}
	assert.Len(t, set, 4)
}

func TestReplay_RoundTrip(t *testing.T) {
	list := RenderAll(ChartInput{
		Size:     testSize,
		Samples:  samples(10, 20),
		Snapshot: &domain.Snapshot{Connection: &domain.ConnectionStats{RTT: 45}},
		GaugeMax: DefaultGaugeMax,
	})[ChartLatency]

	rec := &Recorder{}
	Replay(list, rec)

	assert.Equal(t, list, rec.Commands)
}

func TestReplay_SkipsMalformed(t *testing.T) {
	rec := &Recorder{}
	Replay(CommandList{
		{Op: OpFillRect, Args: []float64{1, 2}},
		{Op: OpMoveTo, Args: []float64{1, 2}},
		{Op: "bogus"},
	}, rec)

	assert.Equal(t, []Op{OpMoveTo}, rec.Commands.Ops())
}
