package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultWorldSize       = 1
	defaultCoordinatorAddr = "127.0.0.1:9560"
	defaultReportDirectory = "."
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
	defaultLogFileEnabled  = false
	defaultLogDirectory    = "log"
	defaultLogFilename     = "tracefunnel.log"
	defaultLogMaxSizeMB    = 100
	defaultLogMaxBackups   = 3
	defaultLogMaxAgeDays   = 7

	// Environment variable prefix
	envPrefix = "TRACEFUNNEL"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Comm   CommConfig   `mapstructure:"comm"`
	Report ReportConfig `mapstructure:"report"`
	Log    LogConfig    `mapstructure:"log"`
}

type AppConfig struct {
	// Name distinguishes participants and names the run log file.
	Name string `mapstructure:"name"`
	// Run is recorded in the run log header.
	Run string `mapstructure:"run"`
}

type CommConfig struct {
	Rank            int    `mapstructure:"rank"`
	Size            int    `mapstructure:"size"`
	CoordinatorAddr string `mapstructure:"coordinatorAddr"`
}

type ReportConfig struct {
	Directory string      `mapstructure:"directory"`
	Kafka     KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LogConfig struct {
	Level              string `mapstructure:"level"`
	Format             string `mapstructure:"format"`
	FileLoggingEnabled bool   `mapstructure:"fileLoggingEnabled"`
	Directory          string `mapstructure:"directory"`
	Filename           string `mapstructure:"filename"`
	MaxSize            int    `mapstructure:"maxSize"`    // Max size in MB
	MaxBackups         int    `mapstructure:"maxBackups"` // Max backup files
	MaxAge             int    `mapstructure:"maxAge"`     // Max days to retain
	Compress           bool   `mapstructure:"compress"`
}

// Load initializes viper, reads config, applies defaults, unmarshals, and
// validates.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	configureViper(v, configPath)
	setDefaults(v)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshallingConfig, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configureViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("comm.rank", 0)
	v.SetDefault("comm.size", defaultWorldSize)
	v.SetDefault("comm.coordinatorAddr", defaultCoordinatorAddr)
	v.SetDefault("report.directory", defaultReportDirectory)
	v.SetDefault("report.kafka.enabled", false)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("log.fileLoggingEnabled", defaultLogFileEnabled)
	v.SetDefault("log.directory", defaultLogDirectory)
	v.SetDefault("log.filename", defaultLogFilename)
	v.SetDefault("log.maxSize", defaultLogMaxSizeMB)
	v.SetDefault("log.maxBackups", defaultLogMaxBackups)
	v.SetDefault("log.maxAge", defaultLogMaxAgeDays)
	v.SetDefault("log.compress", false)
}

func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return ErrConfigFileMissing
		}
		return fmt.Errorf("%w: %w", ErrReadingConfigFile, err)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Comm.Size < 1 {
		return ErrInvalidWorldSize
	}
	if cfg.Comm.Rank < 0 || cfg.Comm.Rank >= cfg.Comm.Size {
		return ErrInvalidRank
	}
	if cfg.Comm.Size > 1 && cfg.Comm.CoordinatorAddr == "" {
		return ErrEmptyCoordinatorAddr
	}
	if cfg.Report.Kafka.Enabled {
		if len(cfg.Report.Kafka.Brokers) == 0 {
			return ErrEmptyKafkaBrokers
		}
		if cfg.Report.Kafka.Topic == "" {
			return ErrEmptyKafkaTopic
		}
	}
	return nil
}
