package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Console modes
const (
	ConsoleTable   = "table"
	ConsoleMonitor = "monitor"
	ConsoleOff     = "off"
)

// Config holds all application configuration
type Config struct {
	Ingest    IngestConfig    `toml:"ingest" yaml:"ingest"`
	Web       WebConfig       `toml:"web" yaml:"web"`
	Broadcast BroadcastConfig `toml:"broadcast" yaml:"broadcast"`
	Interface InterfaceConfig `toml:"interface" yaml:"interface"`
	Station   StationConfig   `toml:"station" yaml:"station"`
	IGate     IGateConfig     `toml:"igate" yaml:"igate"`
	Map       MapConfig       `toml:"map" yaml:"map"`
	Console   ConsoleConfig   `toml:"console" yaml:"console"`
	Log       LogConfig       `toml:"log" yaml:"log"`
}

// IngestConfig is where demodulated AX.25 frames arrive over UDP.
type IngestConfig struct {
	UDPAddr string `toml:"udp_addr" yaml:"udp_addr"`
}

// WebConfig controls the HTTP/websocket server.
type WebConfig struct {
	Addr        string `toml:"addr" yaml:"addr"`
	StaticDir   string `toml:"static_dir" yaml:"static_dir"`
	Announce    bool   `toml:"announce" yaml:"announce"`
	ServiceName string `toml:"service_name" yaml:"service_name"`
}

// BroadcastConfig controls delivery to subscribers.
type BroadcastConfig struct {
	SendTimeout time.Duration `toml:"send_timeout" yaml:"send_timeout"`
}

// InterfaceConfig describes an optional KISS TNC frame source.
// Device is host:port for TCP or a serial device path.
type InterfaceConfig struct {
	Type   string `toml:"type" yaml:"type"`
	Device string `toml:"device" yaml:"device"`
	Baud   int    `toml:"baud" yaml:"baud"`
}

// StationConfig holds settings specific to the user's station
type StationConfig struct {
	Callsign   string `toml:"callsign" yaml:"callsign"`
	GridSquare string `toml:"gridsquare" yaml:"gridsquare"`
}

// IGateConfig enables forwarding of received APRS traffic to APRS-IS.
type IGateConfig struct {
	Enabled       bool          `toml:"enabled" yaml:"enabled"`
	Server        string        `toml:"server" yaml:"server"`
	Passcode      int           `toml:"passcode" yaml:"passcode"`
	RetryInterval time.Duration `toml:"retry_interval" yaml:"retry_interval"`
}

// MapConfig holds monitor map settings
type MapConfig struct {
	ShapeFile   string  `toml:"shapefile" yaml:"shapefile"`
	DefaultZoom float64 `toml:"defaultzoom" yaml:"defaultzoom"`
}

type ConsoleConfig struct {
	Mode string `toml:"mode" yaml:"mode"`
}

type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
	File  string `toml:"file" yaml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Ingest:    IngestConfig{UDPAddr: "0.0.0.0:9999"},
		Web:       WebConfig{Addr: "0.0.0.0:8080"},
		Broadcast: BroadcastConfig{SendTimeout: 5 * time.Second},
		Interface: InterfaceConfig{Baud: 9600},
		IGate:     IGateConfig{Server: "rotate.aprs2.net:14580", Passcode: -1, RetryInterval: 30 * time.Second},
		Console:   ConsoleConfig{Mode: ConsoleTable},
		Log:       LogConfig{Level: "info"},
	}
}

// LoadConfig reads the configuration from path. TOML is assumed unless
// the file ends in .yaml or .yml. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	conf := Default()
	if path == "" {
		return conf, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return conf, nil
	}
	if err != nil {
		return conf, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &conf)
	default:
		err = toml.Unmarshal(data, &conf)
	}
	if err != nil {
		return conf, fmt.Errorf("parse %s: %w", path, err)
	}

	return conf, conf.Validate()
}

// Validate checks values that would otherwise fail late at runtime.
func (c Config) Validate() error {
	if c.Ingest.UDPAddr == "" {
		return fmt.Errorf("ingest.udp_addr must be set")
	}
	if c.Broadcast.SendTimeout <= 0 {
		return fmt.Errorf("broadcast.send_timeout must be positive")
	}
	switch c.Console.Mode {
	case ConsoleTable, ConsoleMonitor, ConsoleOff:
	default:
		return fmt.Errorf("unknown console mode: %s", c.Console.Mode)
	}
	switch strings.ToUpper(c.Interface.Type) {
	case "":
	case "KISS":
		if c.Interface.Device == "" {
			return fmt.Errorf("interface.device must be set for KISS")
		}
	default:
		return fmt.Errorf("unknown interface type in config: %s", c.Interface.Type)
	}
	if c.IGate.Enabled {
		if c.Station.Callsign == "" {
			return fmt.Errorf("station.callsign must be set for igate")
		}
		if c.IGate.Server == "" {
			return fmt.Errorf("igate.server must be set")
		}
		if c.IGate.RetryInterval <= 0 {
			return fmt.Errorf("igate.retry_interval must be positive")
		}
	}
	return nil
}
