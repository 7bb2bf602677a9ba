package aprs

import (
	"fmt"
	"strings"
)

// Message is an APRS text message addressed to another station.
type Message struct {
	From string
	To   string
	Body string
	ID   string
}

var telemetryKeywords = []string{
	"PARM",
	"UNIT",
	"EQNS",
	"BITS",
}

// IsTelemetry reports whether a message is most likely an automated
// telemetry definition rather than something a person typed.
func (m Message) IsTelemetry() bool {
	if m.From == m.To {
		return true
	}
	for _, kw := range telemetryKeywords {
		if strings.HasPrefix(m.Body, kw) {
			return true
		}
	}
	// National Weather Service bulletins
	return strings.Contains(m.From, "NWS")
}

// ParseMessage parses a message payload (data type ':').
// Format: :ADDRESSEE:message body{id
func ParseMessage(from, payload string) (Message, error) {
	if len(payload) == 0 || payload[0] != ':' {
		return Message{}, fmt.Errorf("not a message packet")
	}
	body := payload[1:]

	// addressee (9 chars, space padded) + ':' + at least one char
	if len(body) < 11 {
		return Message{}, fmt.Errorf("message packet too short")
	}

	msg := Message{From: from, To: strings.TrimSpace(body[0:9])}
	if msg.To == "" {
		return Message{}, fmt.Errorf("message recipient is blank")
	}
	if body[9] != ':' {
		return Message{}, fmt.Errorf("missing message body separator ':'")
	}

	text := body[10:]
	if idx := strings.LastIndex(text, "{"); idx > 0 {
		msg.Body = strings.TrimSpace(text[:idx])
		msg.ID = strings.TrimSpace(text[idx+1:])
	} else {
		msg.Body = strings.TrimSpace(text)
	}

	if msg.Body == "" {
		return Message{}, fmt.Errorf("message body is blank")
	}
	return msg, nil
}
