package aprs

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"aprsbridge/packet"
)

var (
	ErrNoCoordinates        = errors.New("no coordinates in payload")
	ErrCoordinateUnparsable = errors.New("coordinates could not be converted")
)

// posRegex finds an uncompressed DDMM.mm[NS] / DDDMM.mm[EW] pair anywhere
// in the text. The symbol table separator between the two halves may be
// a slash, a backslash, a space, or missing.
// 1: latitude (DDMM.mmH)
// 2: longitude (DDDMM.mmH)
var posRegex = regexp.MustCompile(`(\d{4}\.\d{2}[NS])[\\/ ]?(\d{5}\.\d{2}[EW])`)

// ExtractPosition scans APRS payload text for the first coordinate pair.
// Most payloads carry none and return ErrNoCoordinates.
func ExtractPosition(text string) (packet.Position, error) {
	m := posRegex.FindStringSubmatch(text)
	if m == nil {
		return packet.Position{}, ErrNoCoordinates
	}

	lat, err := parseDDM(m[1], 2, 'S')
	if err != nil {
		return packet.Position{}, fmt.Errorf("%w: latitude %q: %v", ErrCoordinateUnparsable, m[1], err)
	}
	lon, err := parseDDM(m[2], 3, 'W')
	if err != nil {
		return packet.Position{}, fmt.Errorf("%w: longitude %q: %v", ErrCoordinateUnparsable, m[2], err)
	}
	return packet.Position{Lat: lat, Lon: lon}, nil
}

// parseDDM converts degrees+decimal minutes with a trailing hemisphere
// letter into signed decimal degrees. degLen is 2 for latitude and 3 for
// longitude; negHemi is the hemisphere that flips the sign.
func parseDDM(s string, degLen int, negHemi byte) (float64, error) {
	if len(s) < degLen+2 {
		return 0, fmt.Errorf("too short")
	}
	hemi := s[len(s)-1]

	deg, err := strconv.ParseFloat(s[:degLen], 64)
	if err != nil {
		return 0, err
	}
	min, err := strconv.ParseFloat(s[degLen:len(s)-1], 64)
	if err != nil {
		return 0, err
	}

	dec := deg + min/60.0
	if hemi == negHemi {
		dec = -dec
	}
	return dec, nil
}
