package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestSnapshotAccessorsDefaultToZero(t *testing.T) {
	var nilSnap *Snapshot
	assert.Equal(t, 0.0, nilSnap.TotalBandwidth())
	assert.Equal(t, 0, nilSnap.VideoQuality())
	assert.Equal(t, StateUnknown, nilSnap.State())

	empty := &Snapshot{}
	assert.Equal(t, 0.0, empty.RTT())
	assert.Equal(t, 0.0, empty.Jitter())
	assert.Equal(t, 0.0, empty.PacketLoss())
	assert.False(t, empty.HasVideo())
}

func TestSnapshotClampsOutOfRangeValues(t *testing.T) {
	s := &Snapshot{
		Video:      &MediaStats{Quality: 9},
		Audio:      &MediaStats{Quality: -2},
		Connection: &ConnectionStats{PacketLoss: 1.5, RTT: math.NaN(), State: "weird"},
	}
	assert.Equal(t, 5, s.VideoQuality())
	assert.Equal(t, 0, s.AudioQuality())
	assert.Equal(t, 1.0, s.PacketLoss())
	assert.Equal(t, 0.0, s.RTT())
	assert.Equal(t, StateUnknown, s.State())
}

func TestParticipantDisplay(t *testing.T) {
	tests := []struct {
		name      string
		p         Participant
		wantName  string
		wantGlyph string
	}{
		{"no name", Participant{ID: "1"}, "Unknown", "?"},
		{"blank name", Participant{ID: "2", Name: strPtr("  ")}, "Unknown", "?"},
		{"named", Participant{ID: "3", Name: strPtr("alice")}, "alice", "A"},
		{"unicode", Participant{ID: "4", Name: strPtr("émile")}, "émile", "É"},
		{"avatar", Participant{ID: "5", Name: strPtr("bob"), AvatarURL: strPtr("https://x/a.png")}, "bob", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantName, tt.p.DisplayName())
			assert.Equal(t, tt.wantGlyph, tt.p.AvatarGlyph())
		})
	}
}

func TestParseRangeToken(t *testing.T) {
	for _, r := range AllRanges() {
		got, err := ParseRangeToken(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
		assert.Greater(t, got.Window(), time.Duration(0))
	}

	_, err := ParseRangeToken("2h")
	assert.True(t, errors.Is(err, ErrInvalidRange))
	assert.Equal(t, Range1h, DefaultRange)
}

func TestStatusFilterMatches(t *testing.T) {
	speaker := Participant{IsSpeaking: true, HasAudio: true}
	muted := Participant{HasVideo: true}

	assert.True(t, FilterAll.Matches(muted))
	assert.True(t, FilterSpeaking.Matches(speaker))
	assert.False(t, FilterSpeaking.Matches(muted))
	assert.True(t, FilterVideo.Matches(muted))
	assert.True(t, FilterAudio.Matches(speaker))
	assert.True(t, FilterMuted.Matches(muted))
	assert.False(t, FilterMuted.Matches(speaker))

	_, err := ParseStatusFilter("sleeping")
	assert.ErrorIs(t, err, ErrInvalidStatusFilter)
	_, err = ParseTab("settings")
	assert.ErrorIs(t, err, ErrInvalidTab)
}

func TestHistoricalSessionDuration(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-90 * time.Second)
	h := &HistoricalSnapshot{SessionStart: &start}
	assert.Equal(t, 90*time.Second, h.SessionDuration(now))

	future := now.Add(time.Minute)
	h.SessionStart = &future
	assert.Equal(t, time.Duration(0), h.SessionDuration(now))

	var missing *HistoricalSnapshot
	assert.Equal(t, time.Duration(0), missing.SessionDuration(now))
	assert.Equal(t, 0, missing.Peak())
}
