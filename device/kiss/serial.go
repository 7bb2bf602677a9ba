package kiss

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// connectSerial opens a connection to a serial KISS TNC
func connectSerial(devicePath string, baud int) (io.ReadWriteCloser, error) {
	if devicePath == "" {
		return nil, fmt.Errorf("no device path (e.g., /dev/ttyUSB0 or COM3) provided for KISS serial")
	}
	if baud <= 0 {
		baud = 9600
	}

	port, err := serial.Open(devicePath, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", devicePath, err)
	}
	return port, nil
}
