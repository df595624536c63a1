// Package dates derives the 6-digit YYMMDD tag that templates every URL and
// output filename for a run.
package dates

import (
	"time"

	"dibbsget/pkg/errors"
)

// Timezone is the civil timezone the publisher uses for its daily file cycle.
const Timezone = "America/Los_Angeles"

// TagLayout is the time layout producing a YYMMDD tag.
const TagLayout = "060102"

// Resolve returns a validated date tag. A non-empty override must be exactly
// six ASCII digits; an empty override resolves to yesterday in the publisher
// timezone.
func Resolve(override string) (string, error) {
	return ResolveAt(override, time.Now())
}

// ResolveAt is Resolve with an explicit current instant, for deterministic
// resolution.
func ResolveAt(override string, now time.Time) (string, error) {
	if override != "" {
		if !validTag(override) {
			return "", errors.Format("date must be YYMMDD (6 digits), got %q", override)
		}
		return override, nil
	}

	loc, err := time.LoadLocation(Timezone)
	if err != nil {
		return "", errors.Format("load timezone %s: %v", Timezone, err)
	}
	yesterday := now.In(loc).AddDate(0, 0, -1)
	return yesterday.Format(TagLayout), nil
}

func validTag(tag string) bool {
	if len(tag) != 6 {
		return false
	}
	for _, c := range []byte(tag) {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
