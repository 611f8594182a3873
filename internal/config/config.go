package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"voicesplit/ai"
)

// EnvPrefix префикс переменных окружения (VOICESPLIT_DIARIZATION_NUM_SPEAKERS и т.п.)
const EnvPrefix = "VOICESPLIT"

type ServerConfig struct {
	Port     string `mapstructure:"port" yaml:"port"`
	GRPCAddr string `mapstructure:"grpc_addr" yaml:"grpc_addr"` // пусто = unix socket / named pipe по умолчанию
}

type Config struct {
	Diarization ai.DiarizationConfig `mapstructure:"diarization" yaml:"diarization"`
	Server      ServerConfig         `mapstructure:"server" yaml:"server"`

	DataDir   string `mapstructure:"data_dir" yaml:"data_dir"`
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir"` // по умолчанию dataDir/../models
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`

	Workers       int     `mapstructure:"workers" yaml:"workers"`
	QueueSize     int     `mapstructure:"queue_size" yaml:"queue_size"`
	SampleSeconds float64 `mapstructure:"sample_seconds" yaml:"sample_seconds"` // длина MP3 фрагмента спикера
}

// flagKeys соответствие имён флагов CLI ключам конфигурации
var flagKeys = map[string]string{
	"aggressiveness":   "diarization.vad_aggressiveness",
	"frame-ms":         "diarization.frame_ms",
	"min-speech":       "diarization.min_speech_duration",
	"merge-gap":        "diarization.merge_gap",
	"speakers":         "diarization.num_speakers",
	"max-speakers":     "diarization.max_speakers",
	"min-cluster-size": "diarization.min_cluster_size",
	"seed":             "diarization.seed",
	"vad":              "diarization.vad_backend",
	"vad-model":        "diarization.vad_model_path",
	"port":             "server.port",
	"grpc-addr":        "server.grpc_addr",
	"data":             "data_dir",
	"models":           "models_dir",
	"log-level":        "log_level",
	"workers":          "workers",
}

// New создаёт viper с умолчаниями и чтением переменных окружения
func New() *viper.Viper {
	v := viper.New()

	d := ai.DefaultDiarizationConfig()
	v.SetDefault("diarization.vad_aggressiveness", d.VADAggressiveness)
	v.SetDefault("diarization.frame_ms", d.FrameMs)
	v.SetDefault("diarization.min_speech_duration", d.MinSpeechDuration)
	v.SetDefault("diarization.merge_gap", d.MergeGap)
	v.SetDefault("diarization.num_speakers", d.NumSpeakers)
	v.SetDefault("diarization.max_speakers", d.MaxSpeakers)
	v.SetDefault("diarization.min_cluster_size", d.MinClusterSize)
	v.SetDefault("diarization.seed", d.Seed)
	v.SetDefault("diarization.vad_backend", d.VADBackend)
	v.SetDefault("diarization.vad_model_path", "")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.grpc_addr", "")
	v.SetDefault("data_dir", "data")
	v.SetDefault("models_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("workers", 2)
	v.SetDefault("queue_size", 64)
	v.SetDefault("sample_seconds", 10.0)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags привязывает известные флаги из набора к ключам конфигурации.
// Флаги, которых нет в наборе, пропускаются.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load читает конфигурацию: умолчания, YAML файл (если указан), окружение, флаги
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.ModelsDir == "" {
		cfg.ModelsDir = filepath.Join(filepath.Dir(cfg.DataDir), "models")
	}
	if cfg.Diarization.VADBackend == "" {
		cfg.Diarization.VADBackend = ai.VADBackendAuto
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет параметры сервиса и диаризации
func (c *Config) Validate() error {
	if err := c.Diarization.Validate(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", ai.ErrInvalidConfig, c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue size must be >= 1, got %d", ai.ErrInvalidConfig, c.QueueSize)
	}
	if c.DataDir == "" {
		return errors.New("data directory is required")
	}
	return nil
}
