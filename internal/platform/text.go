package platform

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxMessageLength caps user visible error messages
const MaxMessageLength = 220

// Truncation marker appended to shortened messages
const TruncateSuffix = "…"

// Units used by FormatBytes
var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// ansiEscape matches terminal color and cursor sequences
var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// SanitizeText removes ANSI escape sequences and surrounding whitespace
func SanitizeText(text string) string {
	return strings.TrimSpace(ansiEscape.ReplaceAllString(text, ""))
}

// TruncateText sanitizes text and shortens it to at most limit runes.
// A limit <= 0 disables truncation.
func TruncateText(text string, limit int) string {
	clean := SanitizeText(text)
	if limit <= 0 {
		return clean
	}
	runes := []rune(clean)
	if len(runes) <= limit {
		return clean
	}
	return strings.TrimRight(string(runes[:limit-1]), " ") + TruncateSuffix
}

// FormatBytes renders a byte count as a human readable size. Negative values
// mean unknown.
func FormatBytes(n int64) string {
	if n < 0 {
		return "—"
	}
	x := float64(n)
	for _, unit := range byteUnits {
		if x < 1024.0 {
			return fmt.Sprintf("%.1f %s", x, unit)
		}
		x /= 1024.0
	}
	return fmt.Sprintf("%.1f PB", x)
}

// FormatSeconds renders a duration in seconds as h:mm:ss or m:ss. Negative
// values mean unknown.
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		return "—"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
