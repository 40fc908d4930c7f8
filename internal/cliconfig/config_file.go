package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to keep the TOML
// friendly, and pointers for booleans so "unset" is distinguishable.
type FileConfig struct {
	OutgoingPort int    `toml:"outgoing_port"`
	RepeatCount  int    `toml:"repeat_count"`
	RepeatDelay  string `toml:"repeat_delay"`
	SendBack     *bool  `toml:"send_back"`

	UDPEnabled *bool `toml:"udp_enabled"`
	UDPPort    int   `toml:"udp_port"`
	TCPEnabled *bool `toml:"tcp_enabled"`
	TCPPort    int   `toml:"tcp_port"`

	ShapePattern   string `toml:"shape_pattern"`
	ExtractPattern string `toml:"extract_pattern"`

	DebounceEnabled *bool  `toml:"debounce_enabled"`
	DebounceWindow  string `toml:"debounce_window"`
	ExpireWindow    string `toml:"expire_window"`
	SweepInterval   string `toml:"sweep_interval"`

	PrimaryAddr   string   `toml:"primary_adapter"`
	PrimaryOnly   *bool    `toml:"primary_only"`
	IncomingAddrs []string `toml:"incoming_adapters"`
	OutgoingAddrs []string `toml:"outgoing_adapters"`

	TrustedSources []string `toml:"trusted_sources"`

	MetricsAddr string `toml:"metrics_addr"`
	LogLevel    string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.wolrelay/config.toml when the user home
// directory is accessible, otherwise the empty string.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".wolrelay", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies file configuration to cfg, respecting flags that
// have been explicitly set.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setInt("outgoing-port", fc.OutgoingPort, &cfg.OutgoingPort)
	s.setInt("repeat", fc.RepeatCount, &cfg.RepeatCount)
	if err := s.setDuration("repeat-delay", fc.RepeatDelay, &cfg.RepeatDelay); err != nil {
		return err
	}
	s.setBool("send-back", fc.SendBack, &cfg.SendBack)

	s.setBool("udp", fc.UDPEnabled, &cfg.UDPEnabled)
	s.setInt("udp-port", fc.UDPPort, &cfg.UDPPort)
	s.setBool("tcp", fc.TCPEnabled, &cfg.TCPEnabled)
	s.setInt("tcp-port", fc.TCPPort, &cfg.TCPPort)

	s.setString("shape-pattern", fc.ShapePattern, &cfg.ShapePattern)
	s.setString("extract-pattern", fc.ExtractPattern, &cfg.ExtractPattern)

	s.setBool("debounce", fc.DebounceEnabled, &cfg.DebounceEnabled)
	if err := s.setDuration("debounce-window", fc.DebounceWindow, &cfg.DebounceWindow); err != nil {
		return err
	}
	if err := s.setDuration("expire-window", fc.ExpireWindow, &cfg.ExpireWindow); err != nil {
		return err
	}
	if err := s.setDuration("sweep-interval", fc.SweepInterval, &cfg.SweepInterval); err != nil {
		return err
	}

	s.setString("primary-adapter", fc.PrimaryAddr, &cfg.PrimaryAddr)
	s.setBool("primary-only", fc.PrimaryOnly, &cfg.PrimaryOnly)
	s.setStringSlice("incoming", fc.IncomingAddrs, &cfg.IncomingAddrs)
	s.setStringSlice("outgoing", fc.OutgoingAddrs, &cfg.OutgoingAddrs)
	s.setStringSlice("trusted", fc.TrustedSources, &cfg.TrustedSources)

	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
