package web

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

// ServiceType is the DNS-SD type under which the feed is announced.
const ServiceType = "_aprs-ws._tcp"

// DefaultServiceName is "APRS bridge on <hostname>", or just "APRS bridge"
// if the hostname cannot be obtained.
func DefaultServiceName() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "APRS bridge"
	}
	// some systems return an FQDN
	hostname, _, _ = strings.Cut(hostname, ".")
	return "APRS bridge on " + hostname
}

// Announce advertises the websocket feed over mDNS until ctx is done.
func Announce(ctx context.Context, name, addr string, logger *log.Logger) error {
	if name == "" {
		name = DefaultServiceName()
	}
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("DNS-SD: parse address %s: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port == 0 {
		return fmt.Errorf("DNS-SD: need a fixed port, got %q", portStr)
	}

	sv, err := dnssd.NewService(dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
		Text: map[string]string{"path": feedPath},
	})
	if err != nil {
		return fmt.Errorf("DNS-SD: failed to create service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("DNS-SD: failed to create responder: %w", err)
	}
	if _, err := rp.Add(sv); err != nil {
		return fmt.Errorf("DNS-SD: failed to add service: %w", err)
	}

	logger.WithPrefix("dnssd").Info("announcing websocket feed", "name", name, "type", ServiceType, "port", port)

	if err := rp.Respond(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("DNS-SD: responder error: %w", err)
	}
	return nil
}
