package aprs

import (
	"fmt"
	"strings"

	"github.com/golang/geo/s2"

	"aprsbridge/packet"
)

const earthRadiusKm = 6371.01

// GridSquareToPosition converts a Maidenhead locator ("EN91" or "EN91kl")
// to the position of its center.
func GridSquareToPosition(grid string) (packet.Position, error) {
	grid = strings.ToUpper(grid)
	if len(grid) < 4 {
		return packet.Position{}, fmt.Errorf("gridsquare too short: %s", grid)
	}
	if grid[0] < 'A' || grid[0] > 'R' || grid[1] < 'A' || grid[1] > 'R' ||
		grid[2] < '0' || grid[2] > '9' || grid[3] < '0' || grid[3] > '9' {
		return packet.Position{}, fmt.Errorf("invalid gridsquare: %s", grid)
	}

	// Field: 20 x 10 degrees
	lon := float64(grid[0]-'A')*20.0 - 180.0
	lat := float64(grid[1]-'A')*10.0 - 90.0

	// Square: 2 x 1 degrees
	lon += float64(grid[2]-'0') * 2.0
	lat += float64(grid[3] - '0')

	if len(grid) >= 6 {
		if grid[4] < 'A' || grid[4] > 'X' || grid[5] < 'A' || grid[5] > 'X' {
			return packet.Position{}, fmt.Errorf("invalid gridsquare subsquare: %s", grid)
		}
		// Subsquare: 5' x 2.5', centered
		lon += float64(grid[4]-'A')*(2.0/24.0) + 1.0/24.0
		lat += float64(grid[5]-'A')*(1.0/24.0) + 0.5/24.0
	} else {
		lon += 1.0
		lat += 0.5
	}

	return packet.Position{Lat: lat, Lon: lon}, nil
}

// DistanceKm returns the great-circle distance between two positions.
func DistanceKm(a, b packet.Position) float64 {
	from := s2.LatLngFromDegrees(a.Lat, a.Lon)
	to := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return from.Distance(to).Radians() * earthRadiusKm
}
