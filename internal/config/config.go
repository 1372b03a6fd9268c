package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Logger  LoggerConfig
	MQTT    MQTTConfig
	Mirror  MirrorConfig
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Listen       string // Address to listen on (e.g., ":8087" or "0.0.0.0:8087")
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StorageConfig contains snapshot storage settings
type StorageConfig struct {
	DataPath     string // Base directory for snapshots
	SchedulePath string // Path to the schedule file (config.json)
}

// LoggerConfig contains logging settings
type LoggerConfig struct {
	Level  string
	Format string // "text" or "json"
}

// MQTTConfig contains optional MQTT event bridge settings
type MQTTConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	ClientID string
	Topic    string
}

// MirrorConfig contains optional S3/MinIO snapshot mirror settings
type MirrorConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// yamlConfig represents the structure of chronocam.yaml
type yamlConfig struct {
	API struct {
		Listen string `yaml:"listen"`
	} `yaml:"api"`
	Storage struct {
		DataPath     string `yaml:"data_path"`
		SchedulePath string `yaml:"schedule_path"`
	} `yaml:"storage"`
	MQTT struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		ClientID string `yaml:"client_id"`
		Topic    string `yaml:"topic"`
	} `yaml:"mqtt"`
	Mirror struct {
		Enabled   bool   `yaml:"enabled"`
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"mirror"`
}

// Load returns configuration with defaults
func Load() *Config {
	dataPath := getEnv("CHRONOCAM_DATA_PATH", "./data")

	cfg := &Config{
		Server: ServerConfig{
			Listen:       ":8087", // Default listen address
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			DataPath:     dataPath,
			SchedulePath: filepath.Join(dataPath, "config.json"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("CHRONOCAM_LOG_LEVEL", "info"),
			Format: getEnv("CHRONOCAM_LOG_FORMAT", "json"),
		},
		MQTT: MQTTConfig{
			Host:     getEnv("MQTT_HOST", "localhost"),
			Port:     getEnvInt("MQTT_PORT", 1883),
			Username: os.Getenv("MQTT_USERNAME"),
			Password: os.Getenv("MQTT_PASSWORD"),
			ClientID: getEnv("MQTT_CLIENT_ID", "chronocam"),
			Topic:    getEnv("MQTT_TOPIC", "chronocam/events"),
		},
		Mirror: MirrorConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    getEnv("MINIO_BUCKET", "chronocam-snapshots"),
			UseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",
		},
	}

	// Load from chronocam.yaml if exists
	configSource := "default"
	if err := loadYAML(cfg); err == nil {
		configSource = "chronocam.yaml"
	}

	// Environment variable overrides everything
	if envListen := os.Getenv("CHRONOCAM_API_LISTEN"); envListen != "" {
		cfg.Server.Listen = envListen
		configSource = "environment variable CHRONOCAM_API_LISTEN"
	}

	// Validate listen address
	if err := validateListen(cfg.Server.Listen); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Invalid listen address '%s': %v\n", cfg.Server.Listen, err)
		fmt.Fprintf(os.Stderr, "Using default: :8087\n")
		cfg.Server.Listen = ":8087"
		configSource = "default (validation failed)"
	}

	// Log configuration source
	fmt.Printf("INFO: API listen address '%s' loaded from %s\n", cfg.Server.Listen, configSource)

	return cfg
}

// loadYAML attempts to load configuration from chronocam.yaml
func loadYAML(cfg *Config) error {
	data, err := os.ReadFile("./chronocam.yaml")
	if err != nil {
		return err
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return fmt.Errorf("failed to parse chronocam.yaml: %w", err)
	}

	if yamlCfg.API.Listen != "" {
		cfg.Server.Listen = yamlCfg.API.Listen
	}
	if yamlCfg.Storage.DataPath != "" {
		cfg.Storage.DataPath = yamlCfg.Storage.DataPath
		cfg.Storage.SchedulePath = filepath.Join(yamlCfg.Storage.DataPath, "config.json")
	}
	if yamlCfg.Storage.SchedulePath != "" {
		cfg.Storage.SchedulePath = yamlCfg.Storage.SchedulePath
	}

	if yamlCfg.MQTT.Enabled {
		cfg.MQTT.Enabled = true
		if yamlCfg.MQTT.Host != "" {
			cfg.MQTT.Host = yamlCfg.MQTT.Host
		}
		if yamlCfg.MQTT.Port != 0 {
			cfg.MQTT.Port = yamlCfg.MQTT.Port
		}
		if yamlCfg.MQTT.Username != "" {
			cfg.MQTT.Username = yamlCfg.MQTT.Username
		}
		if yamlCfg.MQTT.Password != "" {
			cfg.MQTT.Password = yamlCfg.MQTT.Password
		}
		if yamlCfg.MQTT.ClientID != "" {
			cfg.MQTT.ClientID = yamlCfg.MQTT.ClientID
		}
		if yamlCfg.MQTT.Topic != "" {
			cfg.MQTT.Topic = yamlCfg.MQTT.Topic
		}
	}

	if yamlCfg.Mirror.Enabled {
		cfg.Mirror.Enabled = true
		if yamlCfg.Mirror.Endpoint != "" {
			cfg.Mirror.Endpoint = yamlCfg.Mirror.Endpoint
		}
		if yamlCfg.Mirror.AccessKey != "" {
			cfg.Mirror.AccessKey = yamlCfg.Mirror.AccessKey
		}
		if yamlCfg.Mirror.SecretKey != "" {
			cfg.Mirror.SecretKey = yamlCfg.Mirror.SecretKey
		}
		if yamlCfg.Mirror.Bucket != "" {
			cfg.Mirror.Bucket = yamlCfg.Mirror.Bucket
		}
		cfg.Mirror.UseSSL = yamlCfg.Mirror.UseSSL
	}

	return nil
}

// validateListen validates the listen address format and port range
func validateListen(listen string) error {
	if listen == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	// Parse the listen address
	parts := strings.Split(listen, ":")
	if len(parts) < 2 {
		return fmt.Errorf("invalid format, expected ':port' or 'host:port', got '%s'", listen)
	}

	// Get port (last part)
	portStr := parts[len(parts)-1]
	if portStr == "" {
		return fmt.Errorf("port cannot be empty")
	}

	// Validate port number
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number '%s': %w", portStr, err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of valid range (1-65535)", port)
	}

	return nil
}

// SetupLogger configures the global logger
func (c *Config) SetupLogger() *slog.Logger {
	var level slog.Level
	switch c.Logger.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if c.Logger.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
