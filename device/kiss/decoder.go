package kiss

import (
	"bufio"
	"bytes"
	"io"
)

// KISS protocol constants
const (
	FEND  byte = 0xC0 // Frame End
	FESC  byte = 0xDB // Frame Escape
	TFEND byte = 0xDC // Transposed Frame End
	TFESC byte = 0xDD // Transposed Frame Escape

	cmdDataFrame byte = 0x00
)

// Decoder reads KISS frames from an io.Reader
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// ReadFrame reads a single, complete KISS frame, undoing FESC escaping.
// Empty frames (FEND FEND) are skipped.
func (d *Decoder) ReadFrame() ([]byte, error) {
	var frame bytes.Buffer
	inFrame := false

	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}

		switch b {
		case FEND:
			if inFrame && frame.Len() > 0 {
				return frame.Bytes(), nil
			}
			inFrame = true
		case FESC:
			if !inFrame {
				continue
			}
			b, err = d.r.ReadByte()
			if err != nil {
				return nil, err
			}
			switch b {
			case TFEND:
				frame.WriteByte(FEND)
			case TFESC:
				frame.WriteByte(FESC)
			default:
				// protocol error, keep the byte
				frame.WriteByte(b)
			}
		default:
			if inFrame {
				frame.WriteByte(b)
			}
		}
	}
}

// DataFrame splits a KISS frame into its port and AX.25 payload. ok is
// false for command frames and empty frames.
func DataFrame(frame []byte) (port int, ax25 []byte, ok bool) {
	if len(frame) < 2 || frame[0]&0x0F != cmdDataFrame {
		return 0, nil, false
	}
	return int(frame[0] >> 4), frame[1:], true
}

// Encode wraps an AX.25 frame as a KISS data frame for port.
func Encode(port int, ax25 []byte) []byte {
	out := make([]byte, 0, len(ax25)+4)
	out = append(out, FEND)
	// The type byte is escaped too: port 12 encodes as 0xC0.
	body := append([]byte{byte(port&0x0F)<<4 | cmdDataFrame}, ax25...)
	for _, b := range body {
		switch b {
		case FEND:
			out = append(out, FESC, TFEND)
		case FESC:
			out = append(out, FESC, TFESC)
		default:
			out = append(out, b)
		}
	}
	return append(out, FEND)
}
