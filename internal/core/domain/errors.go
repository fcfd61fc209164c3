package domain

import "errors"

var (
	ErrRoomIDRequired          = errors.New("room id is required")
	ErrInvalidRoomID           = errors.New("invalid room id")
	ErrInvalidRange            = errors.New("invalid time range")
	ErrInvalidTab              = errors.New("invalid dashboard tab")
	ErrInvalidStatusFilter     = errors.New("invalid status filter")
	ErrAlertNotFound           = errors.New("alert not found")
	ErrPollerStarted           = errors.New("poller already started")
	ErrPollerStopped           = errors.New("poller stopped")
	ErrNotMounted              = errors.New("dashboard not mounted")
	ErrUnknownChart            = errors.New("unknown chart")
	ErrForbidden               = errors.New("admin privileges required")
	ErrParticipantNotFound     = errors.New("participant not found")
	ErrUnknownModerationAction = errors.New("unknown moderation action")
	ErrModerationUnavailable   = errors.New("no moderator configured")
	ErrProviderUnavailable     = errors.New("stats provider unavailable")
	ErrNoExportTarget          = errors.New("no export sink or artifact store configured")
	ErrExportNotFound          = errors.New("export not found")
)
