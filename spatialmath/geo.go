package spatialmath

import (
	"github.com/golang/geo/r3"
	geo "github.com/kellydunn/golang-geo"
)

// GeoPointToPoint returns the position of point relative to origin in meters, X east and Y north.
// It projects about origin, which is accurate over the distances of a single flight.
func GeoPointToPoint(point, origin *geo.Point) r3.Vector {
	// GreatCircleDistance is in kilometers.
	east := 1e3 * origin.GreatCircleDistance(geo.NewPoint(origin.Lat(), point.Lng()))
	north := 1e3 * origin.GreatCircleDistance(geo.NewPoint(point.Lat(), origin.Lng()))
	if point.Lng() < origin.Lng() {
		east = -east
	}
	if point.Lat() < origin.Lat() {
		north = -north
	}
	return r3.Vector{X: east, Y: north}
}

// ValidLatLng reports whether lat and lng are degrees within range.
func ValidLatLng(lat, lng float64) bool {
	return Finite(lat, lng) && lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
