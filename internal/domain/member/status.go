package member

import (
	"fmt"
	"math"
	"time"
)

// MembershipStatus classifies a membership window relative to a given day.
type MembershipStatus string

const (
	StatusCurrent  MembershipStatus = "current"
	StatusExpiring MembershipStatus = "expiring"
	StatusExpired  MembershipStatus = "expired"
)

// ExpiringWindowDays is the last day count still reported as expiring.
const ExpiringWindowDays = 1

// Day strips the time-of-day from t, keeping its calendar date.
// The result is midnight UTC so days from different locations compare cleanly.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysRemaining returns the whole calendar days from today until end.
// Negative once end is in the past.
func DaysRemaining(end, today time.Time) int {
	diff := Day(end).Sub(Day(today))
	return int(math.Ceil(diff.Hours() / 24))
}

// Classify derives the membership status for an end date as seen on today.
// PRE: none
// POST: Pure function of the two calendar dates
func Classify(end, today time.Time) MembershipStatus {
	days := DaysRemaining(end, today)
	switch {
	case days < 0:
		return StatusExpired
	case days <= ExpiringWindowDays:
		return StatusExpiring
	default:
		return StatusCurrent
	}
}

// Status classifies the member's own window as seen on today.
func (m *Member) Status(today time.Time) MembershipStatus {
	return Classify(m.EndDate, today)
}

// StatusMessage renders the front-desk line shown under the member's name.
func StatusMessage(status MembershipStatus, days int) string {
	switch status {
	case StatusCurrent:
		return fmt.Sprintf("Membership active. Expires in %d days.", days)
	case StatusExpiring:
		if days == 1 {
			return "Membership expires tomorrow."
		}
		return "Membership expires today."
	case StatusExpired:
		return "Membership expired."
	}
	return ""
}
