package gpx

import (
	"errors"
	"time"

	"github.com/tkrajina/gpxgo/gpx"
)

// ErrNoTrackPoints is returned for GPX documents that parse but contain
// no usable track data.
var ErrNoTrackPoints = errors.New("gpx file contains no track points")

// Summary is the activity-level digest of a GPX track: when it started,
// how long it ran, and how far it went.
type Summary struct {
	Name        string
	StartTime   time.Time
	DurationSec int
	DistanceKM  float64
}

// Summarize parses raw GPX bytes and reduces the track to a Summary.
// Distance is the 2D track length; duration is wall time from the first
// point to the last.
func Summarize(data []byte) (Summary, error) {
	parsed, err := gpx.ParseBytes(data)
	if err != nil {
		return Summary{}, err
	}

	var (
		first, last   time.Time
		haveTimestamp bool
		meters        float64
		points        int
	)

	for _, track := range parsed.Tracks {
		meters += track.Length2D()
		for _, segment := range track.Segments {
			for _, point := range segment.Points {
				points++
				if point.Timestamp.IsZero() {
					continue
				}
				if !haveTimestamp || point.Timestamp.Before(first) {
					first = point.Timestamp
				}
				if !haveTimestamp || point.Timestamp.After(last) {
					last = point.Timestamp
				}
				haveTimestamp = true
			}
		}
	}

	if points == 0 {
		return Summary{}, ErrNoTrackPoints
	}

	summary := Summary{
		Name:       parsed.Name,
		DistanceKM: meters / 1000,
	}
	if summary.Name == "" && len(parsed.Tracks) > 0 {
		summary.Name = parsed.Tracks[0].Name
	}
	if haveTimestamp {
		summary.StartTime = first.UTC()
		summary.DurationSec = int(last.Sub(first).Seconds())
	}
	return summary, nil
}
