package alert

import (
	"errors"
	"time"
)

// Kind identifies what happened. The presentation layer picks copy and
// styling from it; email fan-out filters on it.
type Kind string

const (
	KindScanSuccess        Kind = "scan_success"
	KindFetchFailure       Kind = "fetch_failure"
	KindEmptyMemberSet     Kind = "empty_member_set"
	KindCameraDenied       Kind = "camera_denied"
	KindCameraUnavailable  Kind = "camera_unavailable"
	KindMembershipExpiring Kind = "membership_expiring"
	KindMembershipExpired  Kind = "membership_expired"
	KindMemberSaved        Kind = "member_saved"
	KindMemberDeleted      Kind = "member_deleted"
)

// Level maps to the toast variant: info is the default toast,
// error is the destructive banner.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Domain errors
var (
	ErrEmptyKind    = errors.New("alert kind cannot be empty")
	ErrEmptyTitle   = errors.New("alert title cannot be empty")
	ErrInvalidLevel = errors.New("alert level must be one of: info, warning, error")
)

// defaultLevels holds the level each kind is raised at.
var defaultLevels = map[Kind]Level{
	KindScanSuccess:        LevelInfo,
	KindFetchFailure:       LevelError,
	KindEmptyMemberSet:     LevelError,
	KindCameraDenied:       LevelError,
	KindCameraUnavailable:  LevelError,
	KindMembershipExpiring: LevelWarning,
	KindMembershipExpired:  LevelWarning,
	KindMemberSaved:        LevelInfo,
	KindMemberDeleted:      LevelInfo,
}

// Alert is one user-visible notification (toast or banner).
type Alert struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	MemberID  string    `json:"memberId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// New builds an alert of the given kind at its default level.
func New(kind Kind, title, message string) Alert {
	level, ok := defaultLevels[kind]
	if !ok {
		level = LevelInfo
	}
	return Alert{Kind: kind, Level: level, Title: title, Message: message}
}

// Validate checks if the Alert has valid data.
// PRE: Alert struct is populated
// POST: Returns nil if valid, error otherwise
func (a *Alert) Validate() error {
	if a.Kind == "" {
		return ErrEmptyKind
	}
	if a.Title == "" {
		return ErrEmptyTitle
	}
	switch a.Level {
	case LevelInfo, LevelWarning, LevelError:
	default:
		return ErrInvalidLevel
	}
	return nil
}

// IsError reports whether the alert renders as a destructive banner.
func (a *Alert) IsError() bool {
	return a.Level == LevelError
}
