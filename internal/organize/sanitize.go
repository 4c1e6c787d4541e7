package organize

import (
	"strings"
	"unicode/utf8"

	"github.com/flytam/filenamify"
)

// MaxNameLength is the longest name, in characters, SanitizeName returns
const MaxNameLength = 100

// TruncationMarker is appended to names cut down to MaxNameLength
const TruncationMarker = "…"

var reservedChars = strings.NewReplacer(
	"<", "", ">", "", ":", "", `"`, "",
	"/", "", `\`, "", "|", "", "?", "", "*", "",
)

// SanitizeName turns an arbitrary title into a single path segment.
// The result never contains any of <>:"/\|?*, has no runs of
// whitespace, and is at most MaxNameLength characters. Applying it
// twice gives the same result as applying it once.
func SanitizeName(name string) string {
	s := reservedChars.Replace(name)

	// Control characters and reserved device names.
	if cleaned, err := filenamify.Filenamify(s, filenamify.Options{Replacement: " ", MaxLength: 4096}); err == nil {
		s = cleaned
	}

	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, ". ")

	if utf8.RuneCountInString(s) > MaxNameLength {
		runes := []rune(s)
		cut := strings.TrimRight(string(runes[:MaxNameLength-utf8.RuneCountInString(TruncationMarker)]), ". ")
		s = cut + TruncationMarker
	}
	return s
}
