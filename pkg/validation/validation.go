package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxIDLength     = 128
	MaxSearchLength = 100
)

var (
	// IDRegex validates participant and export identifiers
	IDRegex = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

	// RoomIDRegex validates room identifiers. Room ids end up in export
	// file names, so only characters that survive unchanged are allowed.
	RoomIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]([a-zA-Z0-9._-]*[a-zA-Z0-9_-])?$`)

	// SubjectRegex validates token subjects
	SubjectRegex = regexp.MustCompile(`^[a-zA-Z0-9._@+-]+$`)
)

func validateID(id, field string) error {
	return validateIDWith(IDRegex, id, field)
}

func validateIDWith(re *regexp.Regexp, id, field string) error {
	if id == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%s is too long (max %d characters)", field, MaxIDLength)
	}
	if !re.MatchString(id) {
		return fmt.Errorf("invalid %s format", field)
	}
	return nil
}

// ValidateRoomID validates a room identifier
func ValidateRoomID(roomID string) error {
	return validateIDWith(RoomIDRegex, roomID, "room ID")
}

// ValidateParticipantID validates a participant identifier
func ValidateParticipantID(participantID string) error {
	return validateID(participantID, "participant ID")
}

// ValidateExportID validates a stored export id or file name
func ValidateExportID(id string) error {
	if err := validateID(id, "export ID"); err != nil {
		return err
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("invalid export ID format")
	}
	return nil
}

// ValidateSubject validates the subject of an issued token
func ValidateSubject(subject string) error {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return fmt.Errorf("subject is required")
	}
	if len(subject) > 64 {
		return fmt.Errorf("subject is too long (max 64 characters)")
	}
	if !SubjectRegex.MatchString(subject) {
		return fmt.Errorf("subject contains invalid characters")
	}
	return nil
}

// ValidateSearchQuery validates a participant search string. Empty is
// allowed and clears the filter.
func ValidateSearchQuery(q string) error {
	if !utf8.ValidString(q) {
		return fmt.Errorf("search query contains invalid characters")
	}
	if utf8.RuneCountInString(q) > MaxSearchLength {
		return fmt.Errorf("search query is too long (max %d characters)", MaxSearchLength)
	}
	for _, r := range q {
		if unicode.IsControl(r) {
			return fmt.Errorf("search query contains control characters")
		}
	}
	return nil
}

// ValidateURL validates URL format
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme (must be http or https)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
