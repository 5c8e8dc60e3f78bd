package normalize

import (
	json "github.com/goccy/go-json"

	"garmin-connect-sync/internal/database"
	"garmin-connect-sync/internal/garmin"
)

// TrackPoint is one fix in the normalized track representation stored
// as gps_track_json.
type TrackPoint struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Timestamp *int64  `json:"timestamp,omitempty"`
}

// ApplyGPS resolves the payload variant and writes the normalized track
// onto the activity. An activity with zero usable points ends up with
// HasGPS=false, not an empty track.
func ApplyGPS(a *database.Activity, p *garmin.GPSPayload) {
	points := extractPoints(p)
	if len(points) == 0 {
		a.HasGPS = false
		return
	}

	a.HasGPS = true

	start := points[0]
	end := points[len(points)-1]
	a.StartLatitude = &start.Lat
	a.StartLongitude = &start.Lon
	a.EndLatitude = &end.Lat
	a.EndLongitude = &end.Lon

	applyBounds(a, p, points)

	if data, err := json.Marshal(points); err == nil {
		track := string(data)
		a.GPSTrackJSON = &track
	}
}

// extractPoints resolves the two upstream shapes into one ordered point
// sequence. The flat polyline wins when both are present because it
// carries the full track; the DTO may hold only start/end.
func extractPoints(p *garmin.GPSPayload) []TrackPoint {
	var points []TrackPoint

	switch {
	case len(p.Polyline) > 0:
		// Flat form: [timestamp, lat, lon] triples
		for _, triple := range p.Polyline {
			if len(triple) < 3 {
				continue
			}
			ts := int64(triple[0])
			points = appendFix(points, triple[1], triple[2], &ts)
		}

	case p.GeoPolylineDTO != nil && len(p.GeoPolylineDTO.Polyline) > 0:
		for _, gp := range p.GeoPolylineDTO.Polyline {
			points = appendFix(points, gp.Lat, gp.Lon, gp.Time)
		}

	case p.GeoPolylineDTO != nil:
		// Structured form with only endpoints
		if sp := p.GeoPolylineDTO.StartPoint; sp != nil {
			points = appendFix(points, sp.Lat, sp.Lon, sp.Time)
		}
		if ep := p.GeoPolylineDTO.EndPoint; ep != nil {
			points = appendFix(points, ep.Lat, ep.Lon, ep.Time)
		}
	}

	return points
}

// appendFix drops (0,0) points, which the device reports when it has no fix
func appendFix(points []TrackPoint, lat, lon float64, ts *int64) []TrackPoint {
	if lat == 0 && lon == 0 {
		return points
	}
	return append(points, TrackPoint{Lat: lat, Lon: lon, Timestamp: ts})
}

// applyBounds takes the source bounding box when the DTO carries one,
// otherwise computes it from the extracted points.
func applyBounds(a *database.Activity, p *garmin.GPSPayload, points []TrackPoint) {
	if dto := p.GeoPolylineDTO; dto != nil &&
		dto.MinLat != nil && dto.MaxLat != nil && dto.MinLon != nil && dto.MaxLon != nil {
		a.MinLatitude = dto.MinLat
		a.MaxLatitude = dto.MaxLat
		a.MinLongitude = dto.MinLon
		a.MaxLongitude = dto.MaxLon
		return
	}

	minLat, maxLat := points[0].Lat, points[0].Lat
	minLon, maxLon := points[0].Lon, points[0].Lon
	for _, pt := range points[1:] {
		if pt.Lat < minLat {
			minLat = pt.Lat
		}
		if pt.Lat > maxLat {
			maxLat = pt.Lat
		}
		if pt.Lon < minLon {
			minLon = pt.Lon
		}
		if pt.Lon > maxLon {
			maxLon = pt.Lon
		}
	}

	a.MinLatitude = &minLat
	a.MaxLatitude = &maxLat
	a.MinLongitude = &minLon
	a.MaxLongitude = &maxLon
}
