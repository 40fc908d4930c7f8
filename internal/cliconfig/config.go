// Package cliconfig holds the CLI-facing configuration for wolrelay: default
// values, TOML file loading, environment overrides and validation. Precedence
// is flags over environment over file over defaults, tracked through a
// changed-flags map.
package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lanward/wolrelay/internal/packet"
)

// DefaultWOLPort is the conventional Wake-on-LAN discard port.
const DefaultWOLPort = 9

// Config holds the full configuration surface of the relay.
type Config struct {
	// Outbound
	OutgoingPort int
	RepeatCount  int
	RepeatDelay  time.Duration
	SendBack     bool

	// Transports
	UDPEnabled bool
	UDPPort    int
	TCPEnabled bool
	TCPPort    int

	// Packet recognition
	ShapePattern   string
	ExtractPattern string

	// Debouncing
	DebounceEnabled bool
	DebounceWindow  time.Duration
	ExpireWindow    time.Duration
	SweepInterval   time.Duration

	// Adapter selection
	PrimaryAddr   string
	PrimaryOnly   bool
	IncomingAddrs []string
	OutgoingAddrs []string

	// Trust
	TrustedSources []string

	// Ambient
	MetricsAddr string
	LogLevel    string
}

// DefaultConfig returns a Config with default values: UDP on port 9, TCP
// disabled, one outbound copy per packet, debouncing on.
func DefaultConfig() Config {
	return Config{
		OutgoingPort:    DefaultWOLPort,
		RepeatCount:     1,
		RepeatDelay:     10 * time.Millisecond,
		UDPEnabled:      true,
		UDPPort:         DefaultWOLPort,
		TCPEnabled:      false,
		TCPPort:         DefaultWOLPort,
		DebounceEnabled: true,
		DebounceWindow:  time.Second,
		ExpireWindow:    5 * time.Minute,
		SweepInterval:   time.Minute,
		LogLevel:        "info",
	}
}

// Validate checks the configuration for errors. It does not mutate defaults;
// DefaultConfig already supplies them.
func (c *Config) Validate() error {
	if !c.UDPEnabled && !c.TCPEnabled {
		return fmt.Errorf("at least one of udp or tcp must be enabled")
	}
	if err := validPort("outgoing-port", c.OutgoingPort); err != nil {
		return err
	}
	if c.UDPEnabled {
		if err := validPort("udp-port", c.UDPPort); err != nil {
			return err
		}
	}
	if c.TCPEnabled {
		if err := validPort("tcp-port", c.TCPPort); err != nil {
			return err
		}
	}
	if c.RepeatCount < 1 {
		return fmt.Errorf("repeat count must be at least 1")
	}
	if c.DebounceEnabled {
		if c.DebounceWindow <= 0 {
			return fmt.Errorf("debounce window must be positive")
		}
		if c.ExpireWindow <= 0 {
			return fmt.Errorf("expire window must be positive")
		}
		if c.SweepInterval <= 0 {
			return fmt.Errorf("sweep interval must be positive")
		}
	}
	if _, err := packet.NewMatcher(c.ShapePattern, c.ExtractPattern); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("parse log level: %w", err)
		}
	}
	return nil
}

func validPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be in 1..65535, got %d", name, port)
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setStringSlice(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

func (s *configSetter) setSliceFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
