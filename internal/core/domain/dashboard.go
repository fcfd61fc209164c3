package domain

import "fmt"

// Tab is a dashboard tab.
type Tab string

const (
	TabOverview     Tab = "overview"
	TabParticipants Tab = "participants"
	TabPerformance  Tab = "performance"
	TabHistory      Tab = "history"
)

// ParseTab validates s as a tab.
func ParseTab(s string) (Tab, error) {
	switch Tab(s) {
	case TabOverview, TabParticipants, TabPerformance, TabHistory:
		return Tab(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTab, s)
}

// StatusFilter narrows the participant list.
type StatusFilter string

const (
	FilterAll      StatusFilter = "all"
	FilterSpeaking StatusFilter = "speaking"
	FilterVideo    StatusFilter = "video"
	FilterAudio    StatusFilter = "audio"
	FilterMuted    StatusFilter = "muted"
)

// ParseStatusFilter validates s as a status filter.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch StatusFilter(s) {
	case FilterAll, FilterSpeaking, FilterVideo, FilterAudio, FilterMuted:
		return StatusFilter(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatusFilter, s)
}

// Matches reports whether p passes the status filter.
func (f StatusFilter) Matches(p Participant) bool {
	switch f {
	case FilterSpeaking:
		return p.IsSpeaking
	case FilterVideo:
		return p.HasVideo
	case FilterAudio:
		return p.HasAudio
	case FilterMuted:
		return p.IsMuted()
	default:
		return true
	}
}

// ModerationAction is mute or kick.
type ModerationAction string

const (
	ActionMute ModerationAction = "mute"
	ActionKick ModerationAction = "kick"
)

// ParseModerationAction validates s as a moderation action.
func ParseModerationAction(s string) (ModerationAction, error) {
	switch ModerationAction(s) {
	case ActionMute, ActionKick:
		return ModerationAction(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownModerationAction, s)
}

// QualityLevel is good, fair or poor.
type QualityLevel string

const (
	QualityGood QualityLevel = "good"
	QualityFair QualityLevel = "fair"
	QualityPoor QualityLevel = "poor"
)
