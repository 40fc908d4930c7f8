package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (WOLRELAY_*). Environment overrides the file but is overridden by flags.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	if err := s.setIntFromString("outgoing-port", os.Getenv("WOLRELAY_OUTGOING_PORT"), &cfg.OutgoingPort); err != nil {
		return err
	}
	if err := s.setIntFromString("repeat", os.Getenv("WOLRELAY_REPEAT_COUNT"), &cfg.RepeatCount); err != nil {
		return err
	}
	if err := s.setDuration("repeat-delay", os.Getenv("WOLRELAY_REPEAT_DELAY"), &cfg.RepeatDelay); err != nil {
		return err
	}
	s.setBoolFromString("send-back", os.Getenv("WOLRELAY_SEND_BACK"), &cfg.SendBack)

	s.setBoolFromString("udp", os.Getenv("WOLRELAY_UDP_ENABLED"), &cfg.UDPEnabled)
	if err := s.setIntFromString("udp-port", os.Getenv("WOLRELAY_UDP_PORT"), &cfg.UDPPort); err != nil {
		return err
	}
	s.setBoolFromString("tcp", os.Getenv("WOLRELAY_TCP_ENABLED"), &cfg.TCPEnabled)
	if err := s.setIntFromString("tcp-port", os.Getenv("WOLRELAY_TCP_PORT"), &cfg.TCPPort); err != nil {
		return err
	}

	s.setString("shape-pattern", os.Getenv("WOLRELAY_SHAPE_PATTERN"), &cfg.ShapePattern)
	s.setString("extract-pattern", os.Getenv("WOLRELAY_EXTRACT_PATTERN"), &cfg.ExtractPattern)

	s.setBoolFromString("debounce", os.Getenv("WOLRELAY_DEBOUNCE_ENABLED"), &cfg.DebounceEnabled)
	if err := s.setDuration("debounce-window", os.Getenv("WOLRELAY_DEBOUNCE_WINDOW"), &cfg.DebounceWindow); err != nil {
		return err
	}
	if err := s.setDuration("expire-window", os.Getenv("WOLRELAY_EXPIRE_WINDOW"), &cfg.ExpireWindow); err != nil {
		return err
	}
	if err := s.setDuration("sweep-interval", os.Getenv("WOLRELAY_SWEEP_INTERVAL"), &cfg.SweepInterval); err != nil {
		return err
	}

	s.setString("primary-adapter", os.Getenv("WOLRELAY_PRIMARY_ADAPTER"), &cfg.PrimaryAddr)
	s.setBoolFromString("primary-only", os.Getenv("WOLRELAY_PRIMARY_ONLY"), &cfg.PrimaryOnly)
	s.setSliceFromString("incoming", os.Getenv("WOLRELAY_INCOMING_ADAPTERS"), &cfg.IncomingAddrs)
	s.setSliceFromString("outgoing", os.Getenv("WOLRELAY_OUTGOING_ADAPTERS"), &cfg.OutgoingAddrs)
	s.setSliceFromString("trusted", os.Getenv("WOLRELAY_TRUSTED_SOURCES"), &cfg.TrustedSources)

	s.setString("metrics-addr", os.Getenv("WOLRELAY_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv("WOLRELAY_LOG_LEVEL"), &cfg.LogLevel)

	return nil
}
