package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"voicesplit/ai"
	"voicesplit/internal/config"
)

// Код выхода 2 для некорректного ввода, 1 для остальных ошибок
const (
	exitFailure = 1
	exitInput   = 2
)

var (
	v          = config.New()
	cfg        *config.Config
	configFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, ai.ErrInput) || errors.Is(err, ai.ErrInvalidConfig) {
			os.Exit(exitInput)
		}
		os.Exit(exitFailure)
	}
}

func newRootCmd() *cobra.Command {
	v = config.New()
	configFile = ""

	root := &cobra.Command{
		Use:          "voicesplit",
		Short:        "Local speaker diarization for recorded conversations",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "YAML config file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("data", "data", "Directory for results")
	flags.String("models", "", "Directory for downloaded models (default: data/../models)")

	root.AddCommand(
		newDiarizeCmd(),
		newAlignCmd(),
		newFormatCmd(),
		newServeCmd(),
		newModelsCmd(),
	)
	return root
}

// addDiarizationFlags флаги параметров диаризации, общие для diarize и serve
func addDiarizationFlags(cmd *cobra.Command) {
	d := ai.DefaultDiarizationConfig()
	f := cmd.Flags()
	f.Int("aggressiveness", d.VADAggressiveness, "VAD aggressiveness 0-3")
	f.Int("frame-ms", d.FrameMs, "VAD frame duration: 10, 20 or 30 ms")
	f.Float64("min-speech", d.MinSpeechDuration, "Drop speech intervals shorter than this (seconds)")
	f.Float64("merge-gap", d.MergeGap, "Merge speech intervals closer than this (seconds)")
	f.Int("speakers", d.NumSpeakers, "Number of speakers (0 = estimate)")
	f.Int("max-speakers", d.MaxSpeakers, "Upper bound for estimated speakers")
	f.Int("min-cluster-size", d.MinClusterSize, "Minimum intervals per speaker cluster")
	f.Uint64("seed", d.Seed, "Clustering random seed")
	f.String("vad", d.VADBackend, "VAD backend: auto, energy, silero, sherpa")
	f.String("vad-model", "", "Silero VAD ONNX model path")
}

func loadConfig(cmd *cobra.Command) error {
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	if err := config.BindFlags(v, cmd.InheritedFlags()); err != nil {
		return err
	}

	loaded, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	cfg = loaded

	setupLogging(cfg.LogLevel)
	return nil
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	lvl := zerolog.InfoLevel
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	if l, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && level != "" {
		lvl = l
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(lvl).
		With().Timestamp().Logger()
}

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ai.ErrInput, fmt.Sprintf(format, args...))
}
