package aprs

import (
	"aprsbridge/packet"
)

// Kind is the broad category of an APRS payload.
type Kind int

const (
	KindOther    Kind = iota // Status, telemetry, weather, anything else
	KindPosition             // Carries extractable coordinates
	KindMessage              // Addressed text message
)

// Classify sorts a decoded record into a payload category. A message is
// returned only for KindMessage.
func Classify(rec packet.Record) (Kind, *Message) {
	if rec.HasPosition() {
		return KindPosition, nil
	}
	if len(rec.Data) > 0 && rec.Data[0] == ':' {
		msg, err := ParseMessage(rec.From, rec.Data)
		if err == nil {
			return KindMessage, &msg
		}
	}
	return KindOther, nil
}
