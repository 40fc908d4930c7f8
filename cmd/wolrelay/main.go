package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/lanward/wolrelay"
	"github.com/lanward/wolrelay/internal/cliconfig"
	"github.com/lanward/wolrelay/internal/metrics"
	"github.com/lanward/wolrelay/internal/netif"
	"github.com/lanward/wolrelay/internal/relay"
)

const helpDescription = `
Relay Wake-on-LAN magic packets between network segments.

wolrelay listens for magic packets on the incoming adapters (UDP by default,
optionally TCP), validates them, debounces repeats for the same target, and
re-broadcasts each packet on the outgoing adapters so machines behind a
router or on another VLAN can still be woken.
`

var exampleUsage = strings.TrimSpace(`
  wolrelay
  wolrelay --udp-port 4009 --trusted 192.168.1.50
  wolrelay --config $HOME/.wolrelay/config.toml --tcp
  wolrelay wake 00:11:22:33:44:55
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	log := cliconfig.Logger()
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("wolrelay")
		os.Exit(1)
	}
}

// newRootCmd builds the CLI. Shared flags are persistent so subcommands
// (wake) accept the same overrides as the relay itself.
func newRootCmd() *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "wolrelay",
		Short:   "Relay Wake-on-LAN magic packets between network segments",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, watchPath, err := resolveConfig(cmd, &cfg, cfgPath)
			if err != nil {
				return err
			}
			log = loggerWithLevel(log, resolved.LogLevel)

			log.Info().Interface("config", resolved).Msg("configuration")

			opts := []wolrelay.Option{wolrelay.WithLogger(log)}
			if watchPath != "" {
				opts = append(opts, wolrelay.WithConfigWatcher(watchPath))
			}

			r, err := wolrelay.New(toLibConfig(resolved), opts...)
			if err != nil {
				return fmt.Errorf("create relay: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			if err := r.Start(ctx); err != nil {
				return fmt.Errorf("start relay: %w", err)
			}

			doneCh := make(chan struct{})
			go func() {
				ticker := time.NewTicker(100 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						status := r.Status()
						if status == wolrelay.StateStopped || status == wolrelay.StateCrashed {
							close(doneCh)
							return
						}
					}
				}
			}()

			select {
			case <-sigCh:
				log.Info().Msg("received signal, stopping...")
			case <-doneCh:
				if r.Status() == wolrelay.StateCrashed {
					log.Error().Msg("relay crashed")
				}
				return nil
			}

			if err := r.Stop(); err != nil {
				return fmt.Errorf("stop relay: %w", err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.wolrelay/config.toml)")

	root.PersistentFlags().IntVar(&cfg.OutgoingPort, "outgoing-port", cfg.OutgoingPort, "UDP destination port for relayed packets")
	root.PersistentFlags().IntVar(&cfg.RepeatCount, "repeat", cfg.RepeatCount, "copies of each packet sent per adapter")
	root.PersistentFlags().DurationVar(&cfg.RepeatDelay, "repeat-delay", cfg.RepeatDelay, "pause between repeated copies")
	root.PersistentFlags().BoolVar(&cfg.SendBack, "send-back", cfg.SendBack, "also broadcast on the adapter a packet arrived on")

	root.PersistentFlags().BoolVar(&cfg.UDPEnabled, "udp", cfg.UDPEnabled, "listen for magic packets over UDP")
	root.PersistentFlags().IntVar(&cfg.UDPPort, "udp-port", cfg.UDPPort, "UDP listen port")
	root.PersistentFlags().BoolVar(&cfg.TCPEnabled, "tcp", cfg.TCPEnabled, "listen for magic packets over TCP")
	root.PersistentFlags().IntVar(&cfg.TCPPort, "tcp-port", cfg.TCPPort, "TCP listen port")

	root.PersistentFlags().StringVar(&cfg.ShapePattern, "shape-pattern", cfg.ShapePattern, "regex over the packet's hex encoding that recognizes a magic packet")
	root.PersistentFlags().StringVar(&cfg.ExtractPattern, "extract-pattern", cfg.ExtractPattern, "regex capturing the six hardware address octets")

	root.PersistentFlags().BoolVar(&cfg.DebounceEnabled, "debounce", cfg.DebounceEnabled, "suppress repeats for the same target")
	root.PersistentFlags().DurationVar(&cfg.DebounceWindow, "debounce-window", cfg.DebounceWindow, "minimum interval between relays for one target")
	root.PersistentFlags().DurationVar(&cfg.ExpireWindow, "expire-window", cfg.ExpireWindow, "age after which debounce entries are evicted")
	root.PersistentFlags().DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "how often expired debounce entries are swept")

	root.PersistentFlags().StringVar(&cfg.PrimaryAddr, "primary-adapter", cfg.PrimaryAddr, "IPv4 address of the primary adapter")
	root.PersistentFlags().BoolVar(&cfg.PrimaryOnly, "primary-only", cfg.PrimaryOnly, "restrict listening and broadcasting to the primary adapter")
	root.PersistentFlags().StringSliceVar(&cfg.IncomingAddrs, "incoming", cfg.IncomingAddrs, "adapter addresses to listen on (default: all)")
	root.PersistentFlags().StringSliceVar(&cfg.OutgoingAddrs, "outgoing", cfg.OutgoingAddrs, "adapter addresses to broadcast on (default: all)")
	root.PersistentFlags().StringSliceVar(&cfg.TrustedSources, "trusted", cfg.TrustedSources, "source IPs allowed to trigger a relay (default: all)")

	root.PersistentFlags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address to serve Prometheus metrics on (empty: disabled)")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (trace, debug, info, warn, error)")

	root.AddCommand(newWakeCmd(&cfg, &cfgPath, &log))

	return root
}

// resolveConfig applies file and environment overrides beneath explicitly
// set flags, validates the result, and reports which file to watch.
func resolveConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) (cliconfig.Config, string, error) {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	watchPath := ""
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return cliconfig.Config{}, "", fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return cliconfig.Config{}, "", err
		}
		watchPath = cfgFile
	}

	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return cliconfig.Config{}, "", err
	}

	if err := cfg.Validate(); err != nil {
		return cliconfig.Config{}, "", err
	}
	return *cfg, watchPath, nil
}

func loggerWithLevel(log zerolog.Logger, level string) zerolog.Logger {
	if level == "" {
		return log
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return log
	}
	return log.Level(lvl)
}

func toLibConfig(cfg cliconfig.Config) wolrelay.Config {
	return wolrelay.Config{
		OutgoingPort:    cfg.OutgoingPort,
		RepeatCount:     cfg.RepeatCount,
		RepeatDelay:     cfg.RepeatDelay,
		SendBack:        cfg.SendBack,
		UDPEnabled:      cfg.UDPEnabled,
		UDPPort:         cfg.UDPPort,
		TCPEnabled:      cfg.TCPEnabled,
		TCPPort:         cfg.TCPPort,
		ShapePattern:    cfg.ShapePattern,
		ExtractPattern:  cfg.ExtractPattern,
		DebounceEnabled: cfg.DebounceEnabled,
		DebounceWindow:  cfg.DebounceWindow,
		ExpireWindow:    cfg.ExpireWindow,
		SweepInterval:   cfg.SweepInterval,
		PrimaryAddr:     cfg.PrimaryAddr,
		PrimaryOnly:     cfg.PrimaryOnly,
		IncomingAddrs:   cfg.IncomingAddrs,
		OutgoingAddrs:   cfg.OutgoingAddrs,
		TrustedSources:  cfg.TrustedSources,
		MetricsAddr:     cfg.MetricsAddr,
	}
}

// newWakeCmd builds the one-shot wake subcommand. It broadcasts a magic
// packet for the given hardware address on the outgoing adapters and exits.
func newWakeCmd(cfg *cliconfig.Config, cfgPath *string, log *zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:     "wake <hardware-addr>",
		Short:   "Broadcast a magic packet for the given hardware address",
		Example: "  wolrelay wake 00:11:22:33:44:55",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, _, err := resolveConfig(cmd, cfg, *cfgPath)
			if err != nil {
				return err
			}
			logger := loggerWithLevel(*log, resolved.LogLevel)

			adapters, err := netif.Discover(logger)
			if err != nil {
				return fmt.Errorf("discover adapters: %w", err)
			}
			views := netif.BuildViews(adapters, netif.FilterConfig{
				PrimaryAddr:   resolved.PrimaryAddr,
				PrimaryOnly:   resolved.PrimaryOnly,
				IncomingAddrs: resolved.IncomingAddrs,
				OutgoingAddrs: resolved.OutgoingAddrs,
			})
			if len(views.Outgoing) == 0 {
				return wolrelay.ErrNoAdapters
			}

			sender := relay.NewSender(resolved.OutgoingPort, resolved.RepeatCount, resolved.RepeatDelay, metrics.New(), logger)
			if err := sender.ForwardHardwareAddr(args[0], views.Outgoing); err != nil {
				return err
			}
			logger.Info().Str("hw_addr", args[0]).Int("adapters", len(views.Outgoing)).Msg("magic packet sent")
			return nil
		},
	}
}
