package locus

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

const earthRadius = 6371000.0 // metres

// GPX represents the root GPX document structure
type GPX struct {
	XMLName xml.Name `xml:"gpx"`
	Track   Track    `xml:"trk"`
	Routes  []Route  `xml:"rte"`
}

// Track represents a GPX track
type Track struct {
	Name         string       `xml:"name"`
	TrackSegment TrackSegment `xml:"trkseg"`
}

// TrackSegment represents a segment of a GPX track
type TrackSegment struct {
	TrackPoints []TrackPoint `xml:"trkpt"`
}

// Route represents a GPX route
type Route struct {
	Name        string       `xml:"name"`
	RoutePoints []TrackPoint `xml:"rtept"`
}

// TrackPoint represents a point in a GPX track or route
type TrackPoint struct {
	Lat       float64   `xml:"lat,attr"`
	Lon       float64   `xml:"lon,attr"`
	Elevation float64   `xml:"ele"`
	Time      time.Time `xml:"time"`
}

// ReadGPXFile reads and parses a GPX file, returning the track points
func ReadGPXFile(filename string) ([]TrackPoint, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPX file %s: %w", filename, err)
	}
	defer file.Close()

	points, err := ReadGPX(file)
	if err != nil {
		return nil, fmt.Errorf("GPX file %s: %w", filename, err)
	}
	return points, nil
}

// ReadGPX parses a GPX document. Track points win over route points.
func ReadGPX(r io.Reader) ([]TrackPoint, error) {
	var gpx GPX
	if err := xml.NewDecoder(r).Decode(&gpx); err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}

	points := gpx.Track.TrackSegment.TrackPoints
	if len(points) == 0 && len(gpx.Routes) > 0 {
		points = gpx.Routes[0].RoutePoints
	}
	if len(points) == 0 {
		return nil, ErrNoTrackPoints
	}
	return points, nil
}

// TrackSamples converts track points into samples in metres east (x) and
// north (y) of the first point. Theta is the heading towards the next
// point in radians, counter-clockwise from the x axis; the last point has
// no heading.
func TrackSamples(points []TrackPoint) []Sample {
	if len(points) == 0 {
		return nil
	}
	origin := points[0]
	samples := make([]Sample, len(points))
	for i, tp := range points {
		d := distance(origin.Lat, origin.Lon, tp.Lat, tp.Lon)
		b := bearing(origin.Lat, origin.Lon, tp.Lat, tp.Lon) * math.Pi / 180

		s := Sample{
			X: ptr(d * math.Sin(b)),
			Y: ptr(d * math.Cos(b)),
			Z: ptr(tp.Elevation),
		}
		if !tp.Time.IsZero() {
			s.Time = FormatISO8601(tp.Time)
		}
		if i < len(points)-1 {
			next := points[i+1]
			course := bearing(tp.Lat, tp.Lon, next.Lat, next.Lon) * math.Pi / 180
			s.Theta = ptr(math.Remainder(math.Pi/2-course, 2*math.Pi))
		}
		samples[i] = s
	}
	return samples
}

// GPXFetcher replays a GPX file instead of querying an endpoint. The file
// is read on every fetch.
type GPXFetcher struct {
	filename string
}

// NewGPXFetcher creates a fetcher for filename.
func NewGPXFetcher(filename string) *GPXFetcher {
	return &GPXFetcher{filename: filename}
}

// Fetch returns the samples of the file whose timestamps fall in
// [q.Start, q.End). Points without timestamps, or a query without bounds,
// are not filtered.
func (f *GPXFetcher) Fetch(ctx context.Context, q Query) ([]Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	points, err := ReadGPXFile(f.filename)
	if err != nil {
		return nil, err
	}

	samples := TrackSamples(points)
	if q.Start.IsZero() || q.End.IsZero() {
		return samples, nil
	}

	filtered := samples[:0]
	for i, tp := range points {
		if !tp.Time.IsZero() && (tp.Time.Before(q.Start) || !tp.Time.Before(q.End)) {
			continue
		}
		filtered = append(filtered, samples[i])
	}
	return filtered, nil
}

// distance calculates distance between two points using Haversine formula
func distance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// bearing calculates the bearing from point 1 to point 2 in degrees (0-360)
func bearing(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLonRad := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(deltaLonRad) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) - math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLonRad)

	b := math.Atan2(y, x) * 180 / math.Pi
	if b < 0 {
		b += 360
	}
	return b
}
