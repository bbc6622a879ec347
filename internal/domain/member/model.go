package member

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Max length constants for user-editable fields.
const (
	MinNameLength = 2
	MaxNameLength = 100
)

// DateLayout is the wire and storage format for membership dates.
const DateLayout = "2006-01-02"

// Domain errors
var (
	ErrNameTooShort     = errors.New("full name must be at least 2 characters")
	ErrNameTooLong      = errors.New("full name cannot exceed 100 characters")
	ErrMissingStartDate = errors.New("a start date is required")
	ErrMissingEndDate   = errors.New("an end date is required")
	ErrEndBeforeStart   = errors.New("end date must be after start date")
	ErrNotFound         = errors.New("member not found")
)

// Member is a registered person with a bounded membership window.
type Member struct {
	ID          string    `json:"id"`
	FullName    string    `json:"fullName"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	PortraitURL string    `json:"portraitUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Validate checks if the Member has valid data.
// PRE: Member struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: EndDate is strictly after StartDate (calendar days)
func (m *Member) Validate() error {
	name := strings.TrimSpace(m.FullName)
	if utf8.RuneCountInString(name) < MinNameLength {
		return ErrNameTooShort
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if m.StartDate.IsZero() {
		return ErrMissingStartDate
	}
	if m.EndDate.IsZero() {
		return ErrMissingEndDate
	}
	if !Day(m.EndDate).After(Day(m.StartDate)) {
		return ErrEndBeforeStart
	}
	return nil
}

// HasPortrait reports whether a stored portrait is linked to the member.
func (m *Member) HasPortrait() bool {
	return m.PortraitURL != ""
}

// Initial returns the first letter of the name, used as the avatar fallback.
func (m *Member) Initial() string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(m.FullName))
	if r == utf8.RuneError {
		return ""
	}
	return strings.ToUpper(string(r))
}

// ParseDate parses a YYYY-MM-DD membership date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}
