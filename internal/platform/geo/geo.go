// Package geo provides distance calculations between geographic
// coordinates used by the doctor recommendation scorer.
package geo

import (
	"fmt"
	"math"
	"sort"
)

const earthRadiusKM = 6371

// Point is a WGS84 coordinate pair.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Distance returns the haversine distance between two points in
// kilometers, rounded to one decimal place.
func Distance(a, b Point) float64 {
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return math.Round(earthRadiusKM*c*10) / 10
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// FormatDistance renders a distance for display, switching to meters
// below one kilometer.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%d m", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1f km", km)
}

// Located is anything with a coordinate, sortable by distance from a
// reference point.
type Located interface {
	Coordinates() Point
}

// SortByDistance orders items ascending by distance from the reference
// point. The sort is stable so equidistant items keep their input order.
func SortByDistance[T Located](items []T, from Point) {
	sort.SliceStable(items, func(i, j int) bool {
		return Distance(from, items[i].Coordinates()) < Distance(from, items[j].Coordinates())
	})
}

// FilterWithin returns the items at most maxKM kilometers from the
// reference point.
func FilterWithin[T Located](items []T, from Point, maxKM float64) []T {
	var result []T
	for _, item := range items {
		if Distance(from, item.Coordinates()) <= maxKM {
			result = append(result, item)
		}
	}
	return result
}
