package cliconfig

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.UDPEnabled {
		t.Error("UDPEnabled = false, want true")
	}
	if cfg.TCPEnabled {
		t.Error("TCPEnabled = true, want false")
	}
	if cfg.UDPPort != 9 || cfg.TCPPort != 9 || cfg.OutgoingPort != 9 {
		t.Errorf("ports = %d/%d/%d, want 9/9/9", cfg.UDPPort, cfg.TCPPort, cfg.OutgoingPort)
	}
	if cfg.RepeatCount != 1 {
		t.Errorf("RepeatCount = %d, want 1", cfg.RepeatCount)
	}
	if !cfg.DebounceEnabled {
		t.Error("DebounceEnabled = false, want true")
	}
	if cfg.DebounceWindow != time.Second {
		t.Errorf("DebounceWindow = %v, want 1s", cfg.DebounceWindow)
	}
	if cfg.SendBack {
		t.Error("SendBack = true, want false")
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config { return DefaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"tcp only", func(c *Config) { c.UDPEnabled = false; c.TCPEnabled = true }, false},
		{"no transport", func(c *Config) { c.UDPEnabled = false; c.TCPEnabled = false }, true},
		{"bad outgoing port", func(c *Config) { c.OutgoingPort = 0 }, true},
		{"bad udp port", func(c *Config) { c.UDPPort = 70000 }, true},
		{"bad tcp port ignored when disabled", func(c *Config) { c.TCPPort = 0 }, false},
		{"bad tcp port checked when enabled", func(c *Config) { c.TCPEnabled = true; c.TCPPort = 0 }, true},
		{"zero repeat", func(c *Config) { c.RepeatCount = 0 }, true},
		{"zero debounce window", func(c *Config) { c.DebounceWindow = 0 }, true},
		{"zero window ok when debounce off", func(c *Config) { c.DebounceEnabled = false; c.DebounceWindow = 0 }, false},
		{"bad shape pattern", func(c *Config) { c.ShapePattern = "(" }, true},
		{"custom shape pattern", func(c *Config) { c.ShapePattern = `^f{12}([0-9a-f]{12}){16}([0-9a-f]{2}){0,6}$` }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "noisy" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
