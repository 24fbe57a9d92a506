package features

import (
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// mjdOffset is JD - MJD.
const mjdOffset = 2400000.5

// MJDToTime converts a modified Julian date to UTC, rounded to the
// millisecond. A float64 JD near the present resolves only tens of
// microseconds.
func MJDToTime(mjd float64) time.Time {
	return julian.JDToTime(mjd + mjdOffset).UTC().Round(time.Millisecond)
}

// TimeToMJD converts t to a modified Julian date.
func TimeToMJD(t time.Time) float64 {
	return julian.TimeToJD(t.UTC()) - mjdOffset
}

// CurrentMJD returns the MJD of now truncated to a whole day.
func CurrentMJD(now time.Time) float64 {
	return float64(int64(TimeToMJD(now)))
}
