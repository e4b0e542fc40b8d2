// Package geo computes straight-line distances between user and provider locations.
package geo

import "math"

// earthRadiusMiles is the mean Earth radius used by the Haversine formula.
const earthRadiusMiles = 3959

// minutesPerMile assumes an average travel speed of 15 mph.
const minutesPerMile = 4

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// DistanceMiles returns the great-circle distance between a and b in miles,
// rounded to one decimal place.
func DistanceMiles(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return math.Round(earthRadiusMiles*c*10) / 10
}

// ETAMinutes converts a distance into a rough travel time. It is a flat-speed
// heuristic, not a routing estimate.
func ETAMinutes(miles float64) int {
	return int(math.Round(miles * minutesPerMile))
}

func radians(deg float64) float64 {
	return deg * (math.Pi / 180)
}
