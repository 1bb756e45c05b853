package encoding

import (
	"fmt"
	"strings"
	"time"

	"arcmigrate/internal/payload"
)

// DefaultActionDate stands in for a missing or empty action date.
const DefaultActionDate = "2100-01-01"

// MetadataTimeLayout is the creation_time format passed to the encoder.
const MetadataTimeLayout = "2006-01-02 15:04:05"

// CreationTime picks the creation time stamped on the transcoded file.
//
// The asset's action date wins when it is earlier than the capture date and
// its year lies in [minYear, now.Year()); it keeps the capture clock time.
// Otherwise the capture time is used when plausible, falling back to the
// action date with the capture clock.
func CreationTime(env *payload.Envelope, minYear int, now time.Time) (time.Time, error) {
	captured, err := env.CapturedAt()
	if err != nil {
		return time.Time{}, fmt.Errorf("parse captured time: %w", err)
	}
	actionText, ok := env.CustomString(payload.CustomActionDate)
	if !ok {
		actionText = DefaultActionDate
	}
	action, err := time.Parse(payload.DateLayout, strings.TrimSpace(actionText))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse action date %q: %w", actionText, err)
	}

	plausible := func(year int) bool {
		return year >= minYear && year < now.Year()
	}
	withCapturedClock := func(day time.Time) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(),
			captured.Hour(), captured.Minute(), captured.Second(), 0, time.UTC)
	}

	capturedDay := time.Date(captured.Year(), captured.Month(), captured.Day(), 0, 0, 0, 0, time.UTC)
	if action.Before(capturedDay) {
		if plausible(action.Year()) {
			return withCapturedClock(action), nil
		}
		return captured, nil
	}
	if plausible(captured.Year()) {
		return captured, nil
	}
	return withCapturedClock(action), nil
}
