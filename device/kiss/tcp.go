package kiss

import (
	"fmt"
	"net"
	"time"
)

const dialTimeout = 10 * time.Second

// connectTCP dials a KISS TNC at the given address (e.g., "192.168.1.30:8001")
func connectTCP(address string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to KISS TNC at %s: %w", address, err)
	}
	return conn, nil
}
