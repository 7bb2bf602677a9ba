package aprs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"aprsbridge/packet"
)

// encodeAddress builds a 7-byte AX.25 address field. last sets the
// extension bit that terminates the address list.
func encodeAddress(call string, ssid byte, last bool) []byte {
	out := make([]byte, AddressLen)
	padded := fmt.Sprintf("%-6s", call)
	for i := 0; i < 6; i++ {
		out[i] = padded[i] << 1
	}
	out[6] = 0x60 | (ssid&0x0F)<<1
	if last {
		out[6] |= 0x01
	}
	return out
}

func buildFrame(src []byte, dst []byte, control, pid byte, info string) []byte {
	frame := append([]byte{}, src...)
	frame = append(frame, dst...)
	frame = append(frame, control, pid)
	return append(frame, info...)
}

var fixedNow = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func Test_DecodeCallsign(t *testing.T) {
	var data = encodeAddress("N0CALL", 1, false)
	assert.Equal(t, "N0CALL-1", DecodeAddress(data, 0))

	data = encodeAddress("APRS", 0, true)
	assert.Equal(t, "APRS", DecodeAddress(data, 0))

	data = encodeAddress("WB2OSZ", 15, true)
	assert.Equal(t, "WB2OSZ-15", DecodeAddress(data, 0))
}

func Test_DecodeCallsign_SkipsUnprintable(t *testing.T) {
	var data = encodeAddress("AB", 0, true)
	data[0] = 0x02 // shifts down to 0x01

	assert.Equal(t, "B", DecodeAddress(data, 0))
}

func Test_DecodeCallsign_Truncated(t *testing.T) {
	var data = encodeAddress("N0CALL", 7, true)

	assert.Equal(t, "N0C", DecodeCallsign(data[:3], 0, AddressLen))
	assert.Equal(t, "N0CALL", DecodeCallsign(data[:6], 0, AddressLen))
	assert.Equal(t, "", DecodeCallsign(data, 10, AddressLen))
}

func Test_DecodeCallsign_IgnoresBytesPastAddress(t *testing.T) {
	var data = append(encodeAddress("N0CALL", 3, true), encodeAddress("APRS", 0, true)...)
	assert.Equal(t, "N0CALL-3", DecodeCallsign(data, 0, len(data)))
	assert.Equal(t, "APRS", DecodeCallsign(data, AddressLen, 2*AddressLen))
}

func Test_DecodeCallsign_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var call = rapid.StringMatching(`[A-Z0-9]{1,6}`).Draw(t, "call")
		var ssid = rapid.ByteRange(0, 15).Draw(t, "ssid")
		var last = rapid.Bool().Draw(t, "last")

		var got = DecodeAddress(encodeAddress(call, ssid, last), 0)

		if ssid == 0 {
			assert.Equal(t, call, got)
		} else {
			assert.Equal(t, fmt.Sprintf("%s-%d", call, ssid), got)
		}
	})
}

func Test_Decode_RoundTrip(t *testing.T) {
	var frame = buildFrame(
		encodeAddress("N0CALL", 1, false),
		encodeAddress("APRS", 0, true),
		0x03, 0xf0, "test",
	)

	rec, err := Decode(frame, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, fixedNow, rec.CapturedAt)
	assert.Equal(t, "N0CALL-1", rec.From)
	assert.Equal(t, "APRS", rec.To)
	assert.Equal(t, "", rec.Via)
	assert.Equal(t, packet.TypeUI, rec.Type)
	assert.Equal(t, "0xf0", rec.ProtocolID())
	assert.Equal(t, "test", rec.Data)
	assert.Equal(t, "74657374", rec.DataHex)
	assert.Nil(t, rec.Position)
	assert.True(t, IsAPRS(rec))
}

func Test_Decode_Position(t *testing.T) {
	var frame = buildFrame(
		encodeAddress("N0CALL", 9, false),
		encodeAddress("APRS", 0, true),
		0x03, 0xf0, "!4903.50N/07201.75W-test",
	)

	rec, err := Decode(frame, fixedNow)
	require.NoError(t, err)
	require.NotNil(t, rec.Position)

	assert.InDelta(t, 49.0583, rec.Position.Lat, 1e-3)
	assert.InDelta(t, -72.0292, rec.Position.Lon, 1e-3)
}

func Test_Decode_NotUI(t *testing.T) {
	var frame = buildFrame(
		encodeAddress("N0CALL", 0, false),
		encodeAddress("APRS", 0, true),
		0x3f, 0xcf, "",
	)

	rec, err := Decode(frame, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, packet.TypeUnknown, rec.Type)
	assert.Equal(t, "0xcf", rec.ProtocolID())
	assert.Equal(t, "", rec.Data)
	assert.Equal(t, "", rec.DataHex)
	assert.False(t, IsAPRS(rec))
}

// The control/PID pair stays at offsets 14-15 even when a digipeater
// address occupies those bytes.
func Test_Decode_Digipeater(t *testing.T) {
	var frame = append([]byte{}, encodeAddress("N0CALL", 0, false)...)
	frame = append(frame, encodeAddress("APRS", 0, false)...)
	frame = append(frame, encodeAddress("WIDE1", 1, true)...)
	frame = append(frame, "hello"...)

	rec, err := Decode(frame, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "WIDE1-1", rec.Via)
	assert.Equal(t, "hello", rec.Data)
	assert.Equal(t, packet.TypeUnknown, rec.Type)
	assert.Equal(t, byte('I'<<1), rec.PID)
}

func Test_Decode_DigipeaterShortFrame(t *testing.T) {
	var frame = append([]byte{}, encodeAddress("N0CALL", 0, false)...)
	frame = append(frame, encodeAddress("APRS", 0, false)...)
	frame = append(frame, 0x03, 0xf0)

	rec, err := Decode(frame, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "", rec.Data)
	assert.Equal(t, "", rec.DataHex)
}

func Test_Decode_TooShort(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var frame = rapid.SliceOfN(rapid.Byte(), 0, minFrameLen-1).Draw(t, "frame")

		_, err := Decode(frame, fixedNow)
		assert.True(t, errors.Is(err, ErrFrameTooShort))
	})
}

func Test_Decode_NeverFailsOnLongFrames(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var frame = rapid.SliceOfN(rapid.Byte(), minFrameLen, 400).Draw(t, "frame")

		rec, err := Decode(frame, fixedNow)
		require.NoError(t, err)
		assert.Equal(t, strings.TrimSpace(rec.Data), rec.Data)
		for _, r := range rec.Data {
			assert.Less(t, r, rune(0x7f))
		}
	})
}

func Test_Decode_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var frame = rapid.SliceOfN(rapid.Byte(), 0, 200).Draw(t, "frame")

		rec1, err1 := Decode(frame, fixedNow)
		rec2, err2 := Decode(frame, fixedNow)

		assert.Equal(t, err1, err2)
		assert.Equal(t, rec1, rec2)
	})
}

func Test_printableText(t *testing.T) {
	assert.Equal(t, "abc", printableText([]byte("  abc\r\n")))
	assert.Equal(t, "ab", printableText([]byte{'a', 0xff, 0x00, 'b'}))
	assert.Equal(t, "caf", printableText([]byte("café")))
	assert.Equal(t, "a\tb", printableText([]byte("a\tb")))
	assert.Equal(t, "", printableText(nil))
}
