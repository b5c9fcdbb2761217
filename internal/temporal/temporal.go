// Package temporal parses the loosely formatted timestamps found in POS
// report feeds into UTC wall-clock times.
package temporal

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog/log"
)

// StorageLayout is the canonical text form written to the database.
const StorageLayout = "2006-01-02 15:04:05"

// layouts is tried in order; the first layout that parses wins. The ISO
// layout's fraction is optional, so it also covers whole seconds.
var layouts = []string{
	"2006-01-02T15:04:05.999999999",
	"01-02-2006 03:04:05 PM",
	"01/02/2006 03:04:05 PM",
	"1-2-2006 3:04:05 PM",
	"1/2/2006 3:04:05 PM",
}

var spaceRun = regexp.MustCompile(`[\x{00A0}\s]+`)

// Layouts returns a copy of the ordered layout list.
func Layouts() []string {
	out := make([]string, len(layouts))
	copy(out, layouts)
	return out
}

// Normalize strips UTC markers and collapses whitespace runs, including
// non-breaking spaces, to a single space.
func Normalize(raw string) string {
	s := strings.ReplaceAll(raw, "Z", "")
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Parse converts raw into a UTC time. It reports false for blank input and
// for input no strategy understands; the latter is logged at warn level.
func Parse(raw string) (time.Time, bool) {
	s := Normalize(raw)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		log.Warn().Str("raw", raw).Err(err).Msg("temporal: unparseable timestamp")
		return time.Time{}, false
	}
	return t.UTC(), true
}

// ParsePtr is Parse for nullable record fields: nil means unknown.
func ParsePtr(raw string) *time.Time {
	t, ok := Parse(raw)
	if !ok {
		return nil
	}
	return &t
}

// Format renders t in StorageLayout, or "" when t is nil.
func Format(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(StorageLayout)
}
