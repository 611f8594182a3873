package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"voicesplit/ai"
	"voicesplit/audio"
	"voicesplit/internal/api"
	"voicesplit/internal/service"
	"voicesplit/models"
	"voicesplit/store"
)

func newDiarizeCmd() *cobra.Command {
	var transcriptPath, format, samplesDir string

	cmd := &cobra.Command{
		Use:   "diarize <audio>",
		Short: "Split a recording into speaker segments",
		Long: "Detects speech, clusters it by speaker and prints the speaker timeline.\n" +
			"With --transcript, the transcript segments are labeled with speakers instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			transcript, err := readTranscript(transcriptPath)
			if err != nil {
				return err
			}

			diarizer, err := newDiarizer(cmd.Context())
			if err != nil {
				return err
			}
			defer diarizer.Close()

			pipeline, err := ai.NewAudioPipeline(diarizer)
			if err != nil {
				return err
			}

			result, procErr := pipeline.Process(cmd.Context(), args[0], transcript)
			if err := writeResult(cmd.OutOrStdout(), result, format); err != nil {
				return err
			}
			if procErr != nil {
				return procErr
			}

			if samplesDir != "" && len(result.SpeakerSegments) > 0 {
				paths, err := exportSamples(args[0], samplesDir, result.SpeakerSegments)
				if err != nil {
					return fmt.Errorf("failed to export speaker samples: %w", err)
				}
				for label, path := range paths {
					log.Info().Str("speaker", label).Str("path", path).Msg("speaker sample written")
				}
			}
			return nil
		},
	}

	addDiarizationFlags(cmd)
	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "Transcript JSON (array of segments or {\"segments\": [...]})")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text, json, yaml")
	cmd.Flags().StringVar(&samplesDir, "samples", "", "Write one MP3 sample per speaker into this directory")
	return cmd
}

func newAlignCmd() *cobra.Command {
	var transcriptPath, speakersPath, format string
	var alternate bool

	cmd := &cobra.Command{
		Use:   "align",
		Short: "Label transcript segments with speakers",
		Long: "Assigns each transcript segment the speaker with the largest time overlap.\n" +
			"With --alternate, speakers alternate on pauses longer than 2 seconds instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			if transcriptPath == "" {
				return usageError("--transcript is required")
			}
			if !alternate && speakersPath == "" {
				return usageError("either --speakers or --alternate is required")
			}

			transcript, err := readTranscript(transcriptPath)
			if err != nil {
				return err
			}

			var labeled []ai.LabeledSegment
			if alternate {
				labeled = ai.AlternateSpeakersOnPause(transcript)
			} else {
				data, err := os.ReadFile(speakersPath)
				if err != nil {
					return fmt.Errorf("%w: %v", ai.ErrInput, err)
				}
				speakers, err := ai.ParseSpeakerSegments(data)
				if err != nil {
					return err
				}
				labeled = ai.AlignTranscript(transcript, speakers)
			}

			return writeLabeled(cmd.OutOrStdout(), labeled, format)
		},
	}

	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "Transcript JSON")
	cmd.Flags().StringVar(&speakersPath, "speakers", "", "Speaker segments JSON")
	cmd.Flags().BoolVar(&alternate, "alternate", false, "Alternate speakers on long pauses (no diarization)")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text, json, yaml")
	return cmd
}

func newFormatCmd() *cobra.Command {
	var labeledPath, speakersPath string

	cmd := &cobra.Command{
		Use:   "format",
		Short: "Render a labeled transcript or a speaker timeline as text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case labeledPath != "":
				data, err := os.ReadFile(labeledPath)
				if err != nil {
					return fmt.Errorf("%w: %v", ai.ErrInput, err)
				}
				labeled, err := ai.ParseLabeledSegments(data)
				if err != nil {
					return err
				}
				return writeLabeled(cmd.OutOrStdout(), labeled, formatText)

			case speakersPath != "":
				data, err := os.ReadFile(speakersPath)
				if err != nil {
					return fmt.Errorf("%w: %v", ai.ErrInput, err)
				}
				speakers, err := ai.ParseSpeakerSegments(data)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ai.FormatSpeakerTimeline(speakers))
				return nil

			default:
				return usageError("either --labeled or --speakers is required")
			}
		},
	}

	cmd.Flags().StringVar(&labeledPath, "labeled", "", "Labeled transcript JSON")
	cmd.Flags().StringVar(&speakersPath, "speakers", "", "Speaker segments JSON (renders the timeline)")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the diarization job server (WebSocket, gRPC, REST)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info().Str("data", cfg.DataDir).Str("models", cfg.ModelsDir).Msg("voicesplit backend starting")

			st, err := store.NewStore(cfg.DataDir)
			if err != nil {
				return err
			}
			modelMgr, err := models.NewManager(cfg.ModelsDir)
			if err != nil {
				return err
			}

			diarizer, err := newDiarizer(ctx)
			if err != nil {
				return err
			}
			defer diarizer.Close()

			pipeline, err := ai.NewAudioPipeline(diarizer)
			if err != nil {
				return err
			}

			svc := service.NewDiarizationService(st, pipeline, cfg.Workers, cfg.QueueSize)
			svc.SampleSeconds = cfg.SampleSeconds
			server := api.NewServer(cfg, st, modelMgr, svc)

			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			return server.Start(ctx)
		},
	}

	addDiarizationFlags(cmd)
	cmd.Flags().String("port", "8080", "HTTP port")
	cmd.Flags().String("grpc-addr", "", "gRPC address (unix:/path, npipe:\\\\.\\pipe\\name or host:port)")
	cmd.Flags().Int("workers", 2, "Parallel diarization jobs")
	return cmd
}

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage VAD models",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known models and their state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := models.NewManager(cfg.ModelsDir)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPATH")
			for _, state := range mgr.GetAllModelsState() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", state.ID, state.Name, state.Status, state.Path)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "download [id]",
		Short: "Download a model (default: " + models.DefaultVADModelID + ")",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := models.DefaultVADModelID
			if len(args) == 1 {
				id = args[0]
			}
			mgr, err := models.NewManager(cfg.ModelsDir)
			if err != nil {
				return err
			}
			mgr.SetProgressCallback(func(modelID string, progress float64, status models.ModelStatus, err error) {
				log.Info().Str("model", modelID).Float64("progress", progress).Str("status", string(status)).Msg("download")
			})
			path, err := mgr.EnsureModel(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	return cmd
}

// newDiarizer создаёт диаризатор по конфигурации. Для модельных VAD путь к
// модели берётся из models, при явном выборе бэкенда модель скачивается.
func newDiarizer(ctx context.Context) (*ai.Diarizer, error) {
	dcfg := cfg.Diarization
	if dcfg.VADModelPath == "" && dcfg.VADBackend != ai.VADBackendEnergy {
		mgr, err := models.NewManager(cfg.ModelsDir)
		if err != nil {
			return nil, err
		}
		switch {
		case mgr.IsModelDownloaded(models.DefaultVADModelID):
			dcfg.VADModelPath = mgr.GetModelPath(models.DefaultVADModelID)
		case dcfg.VADBackend == ai.VADBackendSilero || dcfg.VADBackend == ai.VADBackendSherpa:
			path, err := mgr.EnsureModel(ctx, models.DefaultVADModelID)
			if err != nil {
				return nil, err
			}
			dcfg.VADModelPath = path
		}
	}
	return ai.NewDiarizer(dcfg, nil)
}

func readTranscript(path string) ([]ai.TranscriptSegment, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrInput, err)
	}
	return ai.ParseTranscript(data)
}

func exportSamples(audioPath, dir string, segments []ai.SpeakerSegment) (map[string]string, error) {
	samples, err := audio.LoadMono16k(audioPath)
	if err != nil {
		return nil, err
	}
	clips := make([]audio.Clip, len(segments))
	for i, seg := range segments {
		clips[i] = audio.Clip{Label: seg.Speaker, Start: seg.Start, End: seg.End}
	}
	return audio.ExportSpeakerSamples(dir, samples, audio.TargetSampleRate, clips, cfg.SampleSeconds)
}

// sortedSpeakers метки спикеров в алфавитном порядке
func sortedSpeakers(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
