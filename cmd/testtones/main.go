// Генератор синтетического диалога для проверки диаризации:
// 5 с тона 200 Гц, 1 с тишины, 5 с тона 1200 Гц.
// Каждый тон должен попасть к своему спикеру.
//
// Запуск: go run ./cmd/testtones -out /tmp/dialogue.wav
//         go run ./cmd/testtones -out /tmp/dialogue.mp3 -check
//
// С -check файл сразу диаризуется энергетическим VAD и печатается таймлайн.

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"voicesplit/ai"
	"voicesplit/audio"
)

func main() {
	out := flag.String("out", "/tmp/voicesplit_dialogue.wav", "Output file (.wav or .mp3)")
	check := flag.Bool("check", false, "Diarize the written file and print the timeline")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	signal := audio.TwoToneDialogue(audio.TargetSampleRate)
	if err := write(*out, signal); err != nil {
		log.Fatal().Err(err).Str("path", *out).Msg("failed to write fixture")
	}
	log.Info().
		Str("path", *out).
		Float64("duration", float64(len(signal))/audio.TargetSampleRate).
		Msg("fixture written")

	if !*check {
		return
	}

	cfg := ai.DefaultDiarizationConfig()
	cfg.VADBackend = ai.VADBackendEnergy
	cfg.NumSpeakers = 2
	cfg.MinClusterSize = 1

	d, err := ai.NewDiarizer(cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create diarizer")
	}
	defer d.Close()

	segments, err := d.SegmentSpeakers(*out)
	if err != nil {
		log.Fatal().Err(err).Msg("diarization failed")
	}
	fmt.Println(ai.FormatSpeakerTimeline(segments))
}

func write(path string, samples []float32) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		w, err := audio.NewMP3Writer(path, audio.ExportSampleRate, 1)
		if err != nil {
			return err
		}
		if err := w.Write(audio.Resample(samples, audio.TargetSampleRate, audio.ExportSampleRate)); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	default:
		return audio.WriteWAV(path, samples, audio.TargetSampleRate, 1)
	}
}
