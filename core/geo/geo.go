// Package geo holds the distance and interpolation primitives used by
// scoring and movement. Coordinates are decimal degrees.
package geo

import (
	"math"

	"github.com/kilianp07/ers/core/model"
)

const (
	// EarthRadiusKm is the mean Earth radius used by DistanceKm.
	EarthRadiusKm = 6371.0
	// DefaultSpeedKmh is the average ambulance speed assumed by ETASeconds
	// when no routing provider answers.
	DefaultSpeedKmh = 40.0
)

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

// DistanceKm returns the great-circle distance between a and b.
func DistanceKm(a, b model.Point) float64 {
	lat1, lat2 := toRadians(a.Lat), toRadians(b.Lat)
	dLat := lat2 - lat1
	dLng := toRadians(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PlanarDegrees is the euclidean distance between a and b treating
// lat/lng as a flat plane.
func PlanarDegrees(a, b model.Point) float64 {
	return math.Hypot(b.Lat-a.Lat, b.Lng-a.Lng)
}

// MoveToward advances current by stepDegrees along the straight lat/lng
// line to target. When less than one step remains, target is returned
// exactly.
func MoveToward(current, target model.Point, stepDegrees float64) model.Point {
	remaining := PlanarDegrees(current, target)
	if remaining <= stepDegrees || remaining == 0 {
		return target
	}
	f := stepDegrees / remaining
	return model.Point{
		Lat: current.Lat + (target.Lat-current.Lat)*f,
		Lng: current.Lng + (target.Lng-current.Lng)*f,
	}
}

// ETASeconds converts a distance into travel time at avgSpeedKmh.
// A non positive speed yields 0.
func ETASeconds(distanceKm, avgSpeedKmh float64) float64 {
	if avgSpeedKmh <= 0 {
		return 0
	}
	return distanceKm / avgSpeedKmh * 3600
}
