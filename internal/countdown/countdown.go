// Package countdown computes how long a bidding window has left and renders it
// in the two forms shown to bidders and owners.
package countdown

import (
	"fmt"
	"strings"
)

// Style selects the rendering of a remaining duration.
type Style int

const (
	// StyleLetters renders "1h 1m 1s". Used by the bidder view.
	StyleLetters Style = iota
	// StyleColon renders "1:1:1" without zero padding. Used by the owner view.
	StyleColon
)

// ClosedColon is what the owner view shows once the end time is in the past.
const ClosedColon = "00:00:00"

// String returns the style name.
func (s Style) String() string {
	switch s {
	case StyleLetters:
		return "letters"
	case StyleColon:
		return "colon"
	default:
		return "unknown"
	}
}

// ParseStyle maps "letters" or "colon" to a Style. Empty means letters.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "letters":
		return StyleLetters, nil
	case "colon":
		return StyleColon, nil
	default:
		return StyleLetters, fmt.Errorf("countdown: unknown style %q", s)
	}
}

// Remaining returns the seconds left until end, never less than zero.
func Remaining(end, now int64) int64 {
	if now >= end {
		return 0
	}
	return end - now
}

// Closed reports whether the window ending at end is over at now.
func Closed(end, now int64) bool {
	return Remaining(end, now) == 0
}

// Format renders a duration in seconds. Negative input is treated as zero.
func Format(seconds int64, style Style) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	if style == StyleColon {
		return fmt.Sprintf("%d:%d:%d", h, m, s)
	}
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// View renders the time left between now and end. The colon style shows
// ClosedColon once end has passed; an end time equal to now renders "0:0:0".
func View(end, now int64, style Style) string {
	if style == StyleColon && end < now {
		return ClosedColon
	}
	return Format(Remaining(end, now), style)
}
