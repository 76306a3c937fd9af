package geo

import (
	"math"

	"device-geocoder/internal/models"

	"github.com/golang/geo/s2"
)

const (
	// kmPerDegree approximates one degree of arc at the equator.
	kmPerDegree = 111.0
	// earthRadiusKm is the mean Earth radius.
	earthRadiusKm = 6371.0088
	// DefaultPrecision keeps ~0.11 m of resolution.
	DefaultPrecision = 6
	// minCos keeps the longitude correction finite at the poles.
	minCos = 1e-9
)

// RandomPointWithinRadius returns a point drawn uniformly by area from the disk of
// radiusKm around (lat, lon). Distances use the flat 111 km/degree approximation with a
// longitude correction for the center latitude.
func RandomPointWithinRadius(r Rand, lat, lon, radiusKm float64) models.Point {
	radiusDeg := radiusKm / kmPerDegree
	angle := r.Float64() * 2 * math.Pi
	dist := radiusDeg * math.Sqrt(r.Float64())

	cos := math.Cos(lat * math.Pi / 180)
	if math.Abs(cos) < minCos {
		cos = math.Copysign(minCos, cos)
	}

	return models.Point{
		Latitude:  clampLatitude(lat + dist*math.Cos(angle)),
		Longitude: wrapLongitude(lon + dist*math.Sin(angle)/cos),
	}
}

// Synthesizer scatters points around reference centers so devices sharing a district do
// not stack on one coordinate.
type Synthesizer struct {
	RadiusKm float64
	// Precision is the number of decimals kept. Negative disables rounding.
	Precision int
}

// NewSynthesizer returns a Synthesizer rounding to DefaultPrecision.
func NewSynthesizer(radiusKm float64) Synthesizer {
	return Synthesizer{RadiusKm: radiusKm, Precision: DefaultPrecision}
}

// Scatter returns a random point within s.RadiusKm of center.
func (s Synthesizer) Scatter(r Rand, center models.Point) models.Point {
	p := RandomPointWithinRadius(r, center.Latitude, center.Longitude, s.RadiusKm)
	if s.Precision >= 0 {
		p.Latitude = Round(p.Latitude, s.Precision)
		p.Longitude = Round(p.Longitude, s.Precision)
	}
	return p
}

// Round rounds v to digits decimal places.
func Round(v float64, digits int) float64 {
	f := math.Pow(10, float64(digits))
	return math.Round(v*f) / f
}

// DistanceKm is the great-circle distance between a and b.
func DistanceKm(a, b models.Point) float64 {
	la := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	lb := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return la.Distance(lb).Radians() * earthRadiusKm
}

func clampLatitude(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}

func wrapLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
