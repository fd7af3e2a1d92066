// Package geo provides the pure geometric primitives the dispatch engine
// relies on: great-circle distance, bounding-box prefiltering, service-area
// containment, travel-time estimation and gazetteer lookups. Every function
// is deterministic and side-effect free.
package geo

import "math"

const (
	earthRadiusMiles = 3958.8
	milesPerLatDeg   = 69.0

	// DefaultServiceRadiusMiles applies when an appraiser has no coverage
	// radius configured.
	DefaultServiceRadiusMiles = 25.0
)

type Point struct {
	Lat float64
	Lon float64
}

// Distance returns the great-circle distance between two points in miles,
// computed with the haversine formula.
func Distance(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(h))
}

// IsWithinServiceArea reports whether point lies inside the circular service
// area centered on home. A non-positive radius falls back to the default.
func IsWithinServiceArea(point, home Point, radiusMiles float64) bool {
	if radiusMiles <= 0 {
		radiusMiles = DefaultServiceRadiusMiles
	}
	return Distance(point, home) <= radiusMiles
}

// BoundingBox is an axis-aligned approximation of a circle, used for cheap
// prefiltering before precise distance checks.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// NewBoundingBox builds the box around center using locally-linearized
// degrees-per-mile. The longitude span widens with latitude.
func NewBoundingBox(center Point, radiusMiles float64) BoundingBox {
	latDelta := radiusMiles / milesPerLatDeg

	milesPerLonDeg := milesPerLatDeg * math.Cos(center.Lat*math.Pi/180)
	lonDelta := latDelta
	if milesPerLonDeg > 0 {
		lonDelta = radiusMiles / milesPerLonDeg
	}

	return BoundingBox{
		MinLat: center.Lat - latDelta,
		MaxLat: center.Lat + latDelta,
		MinLon: center.Lon - lonDelta,
		MaxLon: center.Lon + lonDelta,
	}
}

func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// EstimateTravelTime returns an estimated driving time in whole minutes
// using a tiered average-speed model. trafficFactor scales the speed down;
// 1.0 means normal conditions and non-positive values are treated as normal.
func EstimateTravelTime(from, to Point, trafficFactor float64) int {
	distance := Distance(from, to)

	var speedMph float64
	switch {
	case distance < 5:
		speedMph = 25
	case distance < 20:
		speedMph = 35
	default:
		speedMph = 55
	}

	if trafficFactor <= 0 {
		trafficFactor = 1.0
	}
	speedMph /= trafficFactor

	return int(math.Round(distance / speedMph * 60))
}
