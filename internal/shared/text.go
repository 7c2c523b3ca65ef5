package shared

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

// FormatDuration renders a millisecond duration as m:ss, e.g. 222000 -> "3:42".
func FormatDuration(ms int) string {
	if ms <= 0 {
		return "0:00"
	}
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// TruncateDescription limits s to max runes. Truncated text keeps max-3 runes and ends in "...",
// so the result is exactly max runes long. max <= 0 disables truncation.
func TruncateDescription(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= len(ellipsis) {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-len(ellipsis)]) + ellipsis
}

// BuildDescription joins the trimmed source description and the attribution line with sep,
// then truncates the whole to max runes.
func BuildDescription(description, sep, sourceName, originalURL string, max int) string {
	attribution := fmt.Sprintf("Converted from %s playlist: %s", sourceName, originalURL)
	if d := strings.TrimSpace(description); d != "" {
		attribution = d + sep + attribution
	}
	return TruncateDescription(attribution, max)
}
