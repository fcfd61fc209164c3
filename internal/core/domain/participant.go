package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const UnknownParticipantName = "Unknown"

// Participant is one member of the room as reported by the provider.
type Participant struct {
	ID         string  `json:"id"`
	Name       *string `json:"name,omitempty"`
	AvatarURL  *string `json:"avatarUrl,omitempty"`
	IsSpeaking bool    `json:"isSpeaking"`
	HasVideo   bool    `json:"hasVideo"`
	HasAudio   bool    `json:"hasAudio"`
	Quality    int     `json:"quality"`
	Latency    float64 `json:"latency"` // ms
}

// DisplayName returns the participant's name, or "Unknown" when it is
// missing or blank.
func (p Participant) DisplayName() string {
	if p.Name == nil || strings.TrimSpace(*p.Name) == "" {
		return UnknownParticipantName
	}
	return *p.Name
}

// HasAvatar reports whether a non-empty avatar URL is set.
func (p Participant) HasAvatar() bool {
	return p.AvatarURL != nil && strings.TrimSpace(*p.AvatarURL) != ""
}

// AvatarGlyph is the placeholder shown when there is no avatar image:
// the upper-cased first letter of the name, or "?" without a name.
// It is empty when an avatar URL is available.
func (p Participant) AvatarGlyph() string {
	if p.HasAvatar() {
		return ""
	}
	if p.Name == nil {
		return "?"
	}
	name := strings.TrimSpace(*p.Name)
	if name == "" {
		return "?"
	}
	r, _ := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r))
}

// QualityScore returns the clamped 0-5 score.
func (p Participant) QualityScore() int {
	return ClampQuality(p.Quality)
}

// LatencyMs returns the latency in ms, 0 when not finite.
func (p Participant) LatencyMs() float64 {
	return finite(p.Latency)
}

// IsMuted reports whether the participant has no audio track.
func (p Participant) IsMuted() bool {
	return !p.HasAudio
}

// ParticipantSnapshot is the room summary returned by the provider. The
// counters are reported independently of the list and are not reconciled.
type ParticipantSnapshot struct {
	ParticipantCount int           `json:"participantCount"`
	SpeakingCount    int           `json:"speakingCount"`
	VideoCount       int           `json:"videoCount"`
	Participants     []Participant `json:"participants"`
}
