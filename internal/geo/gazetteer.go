package geo

// Fixed gazetteer of county and metro-area centers. This is a static
// reference table, not service discovery; lookups reject points farther than
// the cutoff from every center.

const (
	countyCutoffMiles = 50.0
	metroCutoffMiles  = 75.0
)

type place struct {
	name   string
	center Point
}

var counties = []place{
	{"Travis County", Point{Lat: 30.2672, Lon: -97.7431}},
	{"Harris County", Point{Lat: 29.7604, Lon: -95.3698}},
	{"Bexar County", Point{Lat: 29.4241, Lon: -98.4936}},
	{"Dallas County", Point{Lat: 32.7767, Lon: -96.7970}},
	{"Maricopa County", Point{Lat: 33.4484, Lon: -112.0740}},
	{"Los Angeles County", Point{Lat: 34.0522, Lon: -118.2437}},
	{"Cook County", Point{Lat: 41.8781, Lon: -87.6298}},
	{"King County", Point{Lat: 47.6062, Lon: -122.3321}},
	{"Fulton County", Point{Lat: 33.7490, Lon: -84.3880}},
	{"Miami-Dade County", Point{Lat: 25.7617, Lon: -80.1918}},
}

var metroAreas = []place{
	{"Austin-Round Rock", Point{Lat: 30.2672, Lon: -97.7431}},
	{"Greater Houston", Point{Lat: 29.7604, Lon: -95.3698}},
	{"San Antonio-New Braunfels", Point{Lat: 29.4241, Lon: -98.4936}},
	{"Dallas-Fort Worth", Point{Lat: 32.7767, Lon: -96.7970}},
	{"Phoenix-Mesa", Point{Lat: 33.4484, Lon: -112.0740}},
	{"Greater Los Angeles", Point{Lat: 34.0522, Lon: -118.2437}},
	{"Chicagoland", Point{Lat: 41.8781, Lon: -87.6298}},
	{"Seattle-Tacoma", Point{Lat: 47.6062, Lon: -122.3321}},
	{"Metro Atlanta", Point{Lat: 33.7490, Lon: -84.3880}},
	{"Greater Miami", Point{Lat: 25.7617, Lon: -80.1918}},
}

// CountyForPoint returns the county whose center is nearest to p, or false
// when p is farther than the cutoff from every known county.
func CountyForPoint(p Point) (string, bool) {
	return nearest(p, counties, countyCutoffMiles)
}

// MetroAreaForPoint returns the metro area whose center is nearest to p, or
// false when p is farther than the cutoff from every known metro.
func MetroAreaForPoint(p Point) (string, bool) {
	return nearest(p, metroAreas, metroCutoffMiles)
}

func nearest(p Point, places []place, cutoffMiles float64) (string, bool) {
	bestName := ""
	bestDistance := cutoffMiles

	for _, candidate := range places {
		if d := Distance(p, candidate.center); d <= bestDistance {
			bestName = candidate.name
			bestDistance = d
		}
	}

	if bestName == "" {
		return "", false
	}
	return bestName, true
}
