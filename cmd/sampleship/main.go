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

	"github.com/orion-sense/sampleship/internal/cliconfig"
	"github.com/orion-sense/sampleship/pkg/log"
	ship "github.com/orion-sense/sampleship/pkg/sampleship"
)

const helpDescription = `
Durable store-and-forward transmitter for fixed-window telemetry samples.

Every capture is committed to a local disk buffer before transmission and
delivered at-least-once to the receiver over mutually authenticated TLS.
Samples that exhaust their retry budget are quarantined on disk for
inspection with "sampleship errors".
`

var exampleUsage = strings.TrimSpace(`
  sampleship --device-id raspi-01 --receiver-endpoint https://receiver:8443 \
      --cert-file certs/device.pem --key-file certs/device.key --ca-file certs/ca.pem
  sampleship --config /etc/sampleship/config.toml --once
  sampleship errors list
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()

	root := &cobra.Command{
		Use:     "sampleship",
		Short:   "Durable store-and-forward telemetry transmitter",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Config file first (default ~/.sampleship/config.toml), then
			// environment, then flag overrides.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger.Info().
				Str("device_id", cfg.DeviceID).
				Str("receiver", cfg.ReceiverEndpoint).
				Str("buffer_dir", cfg.BufferDir).
				Str("error_dir", cfg.ErrorDir).
				Int("max_attempts", cfg.MaxAttempts).
				Msg("configuration")

			return run(cmd.Context(), cfg, logger)
		},
	}

	flags := root.Flags()
	flags.StringVar(&cfgPath, "config", "", "path to config file (default ~/.sampleship/config.toml)")
	flags.StringVar(&cfg.DeviceID, "device-id", cfg.DeviceID, "device identifier prefixing every sample id")
	flags.StringVar(&cfg.ReceiverEndpoint, "receiver-endpoint", cfg.ReceiverEndpoint, "receiver base URL (https)")
	flags.StringVar(&cfg.CertFile, "cert-file", cfg.CertFile, "device certificate (PEM)")
	flags.StringVar(&cfg.KeyFile, "key-file", cfg.KeyFile, "device private key (PEM)")
	flags.StringVar(&cfg.CAFile, "ca-file", cfg.CAFile, "receiver trusted root (PEM)")
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "root directory for durable state")
	flags.StringVar(&cfg.BufferDir, "buffer-dir", cfg.BufferDir, "pending-delivery queue directory (default <data-dir>/buffer)")
	flags.StringVar(&cfg.ErrorDir, "error-dir", cfg.ErrorDir, "quarantine directory (default <data-dir>/errors)")
	flags.StringVar(&cfg.InboxDir, "inbox-dir", cfg.InboxDir, "watch this directory for capture handover files")
	flags.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "send attempt budget per sample")
	flags.DurationVar(&cfg.BaseBackoff, "base-backoff", cfg.BaseBackoff, "initial retry delay")
	flags.DurationVar(&cfg.MaxBackoff, "max-backoff", cfg.MaxBackoff, "retry delay cap")
	flags.DurationVar(&cfg.SendTimeout, "send-timeout", cfg.SendTimeout, "per-attempt send timeout")
	flags.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "idle queue polling interval")
	flags.BoolVar(&cfg.Once, "once", cfg.Once, "drain buffered samples and exit")

	root.AddCommand(newErrorsCommand(&cfg, &cfgPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

// run builds and supervises the transmitter until the context is canceled.
func run(ctx context.Context, cfg cliconfig.Config, logger zerolog.Logger) error {
	libCfg := ship.Config{
		DeviceID:         cfg.DeviceID,
		ReceiverEndpoint: cfg.ReceiverEndpoint,
		CertFile:         cfg.CertFile,
		KeyFile:          cfg.KeyFile,
		CAFile:           cfg.CAFile,
		DataDir:          cfg.DataDir,
		BufferDir:        cfg.BufferDir,
		ErrorDir:         cfg.ErrorDir,
		InboxDir:         cfg.InboxDir,
		MaxAttempts:      cfg.MaxAttempts,
		BaseBackoff:      cfg.BaseBackoff,
		MaxBackoff:       cfg.MaxBackoff,
		SendTimeout:      cfg.SendTimeout,
		PollInterval:     cfg.PollInterval,
		Once:             cfg.Once,
	}

	t, err := ship.New(libCfg, ship.WithLogger(log.NewZerologAdapterWithLogger(logger)))
	if err != nil {
		return err
	}
	if err := t.Start(ctx); err != nil {
		return err
	}

	if cfg.Once {
		t.Wait()
		return nil
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	return t.Stop()
}
