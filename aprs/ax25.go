package aprs

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"aprsbridge/packet"
)

// AX.25 layout constants. The control and PID bytes are read at a fixed
// offset directly after the destination address.
const (
	AddressLen = 7 // 6 callsign bytes + 1 SSID byte

	controlUI   byte = 0x03
	pidNoLayer3 byte = 0xF0

	controlOffset = 14
	minFrameLen   = controlOffset + 2
	payloadOffset = controlOffset + 2
	viaPayloadOff = controlOffset + AddressLen
)

var (
	ErrFrameTooShort = errors.New("frame too short for AX.25")
	ErrDecodePanic   = errors.New("frame decode aborted")
)

// DecodeCallsign decodes an AX.25 address field starting at offset.
// The first six bytes hold the callsign shifted left one bit; bytes that
// do not shift down to printable ASCII are skipped. Bits 1-4 of the
// seventh byte are the SSID, omitted from the result when zero.
// Bytes past the seventh and past the end of data are ignored.
func DecodeCallsign(data []byte, offset, length int) string {
	var callsign strings.Builder
	var ssid byte

	end := offset + min(length, AddressLen)
	for i := offset; i < end && i < len(data); i++ {
		if i < 0 {
			continue
		}
		if i == offset+6 {
			ssid = (data[i] & 0x1E) >> 1
			continue
		}
		char := data[i] >> 1
		if char >= ' ' && char <= '~' {
			callsign.WriteByte(char)
		}
	}

	call := strings.TrimRight(callsign.String(), " ")
	if ssid != 0 {
		return fmt.Sprintf("%s-%d", call, ssid)
	}
	return call
}

// DecodeAddress decodes a full 7-byte address field.
func DecodeAddress(data []byte, offset int) string {
	return DecodeCallsign(data, offset, AddressLen)
}

// Decode turns a raw AX.25 frame into a Record stamped with now.
// Frames shorter than 16 bytes yield ErrFrameTooShort. Decode never
// panics; any runtime failure is returned as ErrDecodePanic.
func Decode(frame []byte, now time.Time) (rec packet.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = packet.Record{}
			err = fmt.Errorf("%w: %v", ErrDecodePanic, r)
		}
	}()

	if len(frame) < minFrameLen {
		return rec, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(frame))
	}

	rec.CapturedAt = now
	rec.From = DecodeAddress(frame, 0)
	rec.To = DecodeAddress(frame, AddressLen)

	control := frame[controlOffset]
	rec.PID = frame[controlOffset+1]

	// A clear extension bit on the destination SSID byte means another
	// address follows. Only the first repeater is resolved.
	start := payloadOffset
	if frame[controlOffset-1]&0x01 == 0 {
		rec.Via = DecodeAddress(frame, controlOffset)
		start = viaPayloadOff
	}

	if control == controlUI {
		rec.Type = packet.TypeUI
	}

	var info []byte
	if start < len(frame) {
		info = frame[start:]
	}
	rec.Data = printableText(info)
	rec.DataHex = hex.EncodeToString(info)

	if pos, perr := ExtractPosition(rec.Data); perr == nil {
		rec.Position = &pos
	}

	return rec, nil
}

// printableText decodes b as UTF-8, dropping invalid sequences, keeps only
// printable ASCII and ASCII whitespace, and trims surrounding space.
func printableText(b []byte) string {
	s := string(b)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.Map(func(r rune) rune {
		if (r >= ' ' && r <= '~') || strings.ContainsRune("\t\n\r\v\f", r) {
			return r
		}
		return -1
	}, s)
	return strings.TrimSpace(s)
}

// IsAPRS reports whether a record has the UI/no-layer-3 shape that APRS
// traffic uses.
func IsAPRS(rec packet.Record) bool {
	return rec.Type == packet.TypeUI && rec.PID == pidNoLayer3
}
