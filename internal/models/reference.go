package models

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ReferenceUnit is one row of the administrative reference table: a named province/city/district
// with a representative center coordinate.
type ReferenceUnit struct {
	ProvinceName    string  `json:"province_name"`
	CityName        string  `json:"city_name"`
	DistrictName    string  `json:"district_name"`
	CenterLatitude  float64 `json:"center_latitude"`
	CenterLongitude float64 `json:"center_longitude"`
}

// Center returns the unit's center as a Point.
func (u ReferenceUnit) Center() Point {
	return Point{Latitude: u.CenterLatitude, Longitude: u.CenterLongitude}
}
