package packet

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lestrrat-go/strftime"
)

// FrameType classifies an AX.25 frame by its control byte.
type FrameType int

const (
	TypeUnknown FrameType = iota // Anything that is not a UI frame
	TypeUI                       // Unnumbered Information (control 0x03)
)

func (t FrameType) String() string {
	if t == TypeUI {
		return "UI"
	}
	return "Unknown"
}

// Position is a point in signed decimal degrees.
type Position struct {
	Lat float64
	Lon float64
}

// Record holds one decoded AX.25/APRS frame. A Record is never modified
// after it has been handed to a publisher.
type Record struct {
	CapturedAt time.Time

	From string // Source callsign, CALL or CALL-SSID
	To   string // Destination callsign
	Via  string // Single digipeater hop, empty if none

	Type FrameType
	PID  byte

	Data    string // Printable text of the information field
	DataHex string // Lowercase hex of the raw information field

	Position *Position // nil when the payload carries no coordinates
}

// ProtocolID renders the PID byte as it appears on the wire, e.g. "0xf0".
func (r Record) ProtocolID() string {
	return fmt.Sprintf("0x%02x", r.PID)
}

// HasPosition reports whether coordinates were extracted.
func (r Record) HasPosition() bool {
	return r.Position != nil
}

var (
	dateFormat = mustPattern("%Y-%m-%d")
	timeFormat = mustPattern("%H:%M:%S")
)

func mustPattern(p string) *strftime.Strftime {
	f, err := strftime.New(p)
	if err != nil {
		panic(fmt.Sprintf("invalid strftime pattern %q: %v", p, err))
	}
	return f
}

// Date returns the capture date as YYYY-MM-DD.
func (r Record) Date() string {
	return dateFormat.FormatString(r.CapturedAt)
}

// Clock returns the capture time of day as HH:MM:SS.
func (r Record) Clock() string {
	return timeFormat.FormatString(r.CapturedAt)
}

// wireRecord is the flat JSON object sent to subscribers. Field order
// follows the browser client's expectations.
type wireRecord struct {
	Date      string   `json:"Date"`
	Time      string   `json:"Time"`
	From      string   `json:"From"`
	To        string   `json:"To"`
	Via       string   `json:"Via"`
	Type      string   `json:"Type"`
	PID       string   `json:"PID"`
	Data      string   `json:"Data"`
	DataHex   string   `json:"Data_Hex"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// MarshalJSON encodes the record in its subscriber wire form. Missing
// coordinates are written as null.
func (r Record) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		Date:    r.Date(),
		Time:    r.Clock(),
		From:    r.From,
		To:      r.To,
		Via:     r.Via,
		Type:    r.Type.String(),
		PID:     r.ProtocolID(),
		Data:    r.Data,
		DataHex: r.DataHex,
	}
	if r.Position != nil {
		lat, lon := r.Position.Lat, r.Position.Lon
		w.Latitude = &lat
		w.Longitude = &lon
	}
	return json.Marshal(w)
}
