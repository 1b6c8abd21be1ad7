package spatialmath

import (
	"math"
	"testing"

	geo "github.com/kellydunn/golang-geo"
	"go.viam.com/test"
)

func TestGeoPointToPoint(t *testing.T) {
	origin := geo.NewPoint(40, -74)

	p := GeoPointToPoint(origin, origin)
	test.That(t, p.Norm(), test.ShouldAlmostEqual, 0)

	// One thousandth of a degree of latitude is about 111 meters everywhere.
	p = GeoPointToPoint(geo.NewPoint(40.001, -74), origin)
	test.That(t, p.X, test.ShouldAlmostEqual, 0)
	test.That(t, p.Y, test.ShouldAlmostEqual, 111.19, 0.05)

	p = GeoPointToPoint(geo.NewPoint(39.999, -74), origin)
	test.That(t, p.Y, test.ShouldAlmostEqual, -111.19, 0.05)

	// Longitude shrinks with the cosine of the latitude.
	p = GeoPointToPoint(geo.NewPoint(40, -73.999), origin)
	test.That(t, p.X, test.ShouldAlmostEqual, 111.19*math.Cos(40*math.Pi/180), 0.05)
	test.That(t, p.Y, test.ShouldAlmostEqual, 0)

	p = GeoPointToPoint(geo.NewPoint(40.001, -74.001), origin)
	test.That(t, p.X, test.ShouldBeLessThan, 0)
	test.That(t, p.Y, test.ShouldBeGreaterThan, 0)
}

func TestValidLatLng(t *testing.T) {
	test.That(t, ValidLatLng(40, -74), test.ShouldBeTrue)
	test.That(t, ValidLatLng(90, 180), test.ShouldBeTrue)
	test.That(t, ValidLatLng(91, 0), test.ShouldBeFalse)
	test.That(t, ValidLatLng(0, -181), test.ShouldBeFalse)
	test.That(t, ValidLatLng(math.NaN(), 0), test.ShouldBeFalse)
}
