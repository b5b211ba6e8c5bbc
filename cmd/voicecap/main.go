package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lisuiheng/voicecap/audio"
	"github.com/lisuiheng/voicecap/core"
	"github.com/lisuiheng/voicecap/logger"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "voicecap",
	Short: "Capture microphone audio to a compressed stream",
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record from the default input device",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		return runRecord(cmd.Context(), cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("voicecap v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default searches ./config.yaml, ./config/config.yaml, /etc/voicecap/config.yaml)")

	f := recordCmd.Flags()
	f.Int("sample-rate", core.DefaultSampleRate, "capture sample rate in Hz")
	f.Int("bit-rate", core.DefaultBitRate, "encoder bit rate in bits/sec")
	f.Int("channels", core.DefaultChannels, "number of capture channels")
	f.String("backend", "malgo", "capture backend (malgo, portaudio)")
	f.StringP("output", "o", "recording.ogg", "output file path or ws:// URL")
	f.String("format", "ogg", "file output format (ogg, raw: packets prefixed with a 2-byte big-endian length)")
	f.Duration("duration", 10*time.Second, "recording duration, 0 records until interrupted")
	f.String("log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runRecord(parent context.Context, cfg Config) error {
	if parent == nil {
		parent = context.Background()
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.Logger()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var backend audio.Backend = audio.NewMalgoBackend(log)
	if cfg.Audio.Backend == "portaudio" {
		backend = audio.NewPortAudioBackend(log)
	}

	recorder := core.NewRecorder(cfg.Audio.CaptureConfig,
		core.WithBackend(backend),
		core.WithEncoder(audio.NewOpusEncoder(log)),
		core.WithLogger(log),
	)
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Error("Failed to close recorder", "error", err)
		}
	}()

	if err := recorder.Initialize(); err != nil {
		return err
	}

	sink, err := newSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Error("Failed to close sink", "kind", sink.Kind(), "error", err)
		}
	}()

	recorder.OnPeakMeter(func(v float32) {
		log.Debug("Peak", "value", v)
	})
	recorder.OnError(func(err error) {
		logger.Warn("Capture error", "error", err)
	})

	if err := recorder.StartCapture(sink); err != nil {
		return err
	}
	log.Info("Recording",
		"output", cfg.Output.Target,
		"sink", sink.Kind(),
		"duration", cfg.Output.Duration)

	var timeout <-chan time.Time
	if cfg.Output.Duration > 0 {
		timer := time.NewTimer(cfg.Output.Duration)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		logger.Info("Received signal, stopping", "cause", context.Cause(ctx))
	case <-timeout:
		logger.Debug("Recording duration reached", "duration", cfg.Output.Duration)
	}

	recorder.StopCapture()
	logger.Info("Recording finished", "output", cfg.Output.Target)
	return nil
}
