package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type AdmissionConfig struct {
	HousekeepingInterval int `yaml:"housekeeping_interval_ms"`
	LockStaleAfter       int `yaml:"lock_stale_after_ms"`
}

type StoryConfig struct {
	DailyLimit  int     `yaml:"daily_limit"`
	Endpoint    string  `yaml:"endpoint"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type ImageConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

type TTSConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Endpoint         string `yaml:"endpoint"`
	AppID            string `yaml:"app_id"`
	AccessKey        string `yaml:"access_key"`
	ResourceID       string `yaml:"resource_id"`
	AppKey           string `yaml:"app_key"`
	Format           string `yaml:"format"`
	SampleRate       int    `yaml:"sample_rate"`
	HandshakeTimeout int    `yaml:"handshake_timeout_ms"`
	SessionTimeout   int    `yaml:"session_timeout_ms"`
}

type MediaConfig struct {
	Dir     string `yaml:"dir"`
	BaseURL string `yaml:"base_url"`
}

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Store       StoreConfig     `yaml:"store"`
	Admission   AdmissionConfig `yaml:"admission"`
	Story       StoryConfig     `yaml:"story"`
	Image       ImageConfig     `yaml:"image"`
	TTS         TTSConfig       `yaml:"tts"`
	Media       MediaConfig     `yaml:"media"`
}

func Default() Config {
	return Config{
		ServiceName: "ink-core",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Store: StoreConfig{
			Path: "./data/ink.db",
		},
		Admission: AdmissionConfig{
			HousekeepingInterval: 10 * 60 * 1000,
			LockStaleAfter:       15 * 60 * 1000,
		},
		Story: StoryConfig{
			DailyLimit:  5,
			Endpoint:    "https://api.deepseek.com",
			Model:       "deepseek-chat",
			MaxTokens:   1000,
			Temperature: 0.8,
		},
		Image: ImageConfig{
			Enabled: false,
		},
		TTS: TTSConfig{
			Enabled:          false,
			Endpoint:         "wss://openspeech.bytedance.com/api/v3/sami/podcasttts",
			ResourceID:       "volc.service_type.10050",
			AppKey:           "aGjiRDfUWi",
			Format:           "mp3",
			SampleRate:       24000,
			HandshakeTimeout: 10 * 1000,
			SessionTimeout:   5 * 60 * 1000,
		},
		Media: MediaConfig{
			Dir:     "./data/media",
			BaseURL: "/media",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "INK_SERVICE_NAME")
	overrideString(&cfg.Environment, "INK_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "INK_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "INK_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "INK_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "INK_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "INK_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Enabled, "INK_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "INK_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "INK_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "INK_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "INK_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "INK_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "INK_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "INK_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "INK_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Store.Path, "INK_STORE_PATH")
	overrideBool(&cfg.Store.VacuumOnStart, "INK_STORE_VACUUM_ON_START")
	overrideInt(&cfg.Admission.HousekeepingInterval, "INK_ADMISSION_HOUSEKEEPING_INTERVAL_MS")
	overrideInt(&cfg.Admission.LockStaleAfter, "INK_ADMISSION_LOCK_STALE_AFTER_MS")
	overrideInt(&cfg.Story.DailyLimit, "INK_STORY_DAILY_LIMIT")
	overrideString(&cfg.Story.Endpoint, "INK_STORY_ENDPOINT")
	overrideString(&cfg.Story.APIKey, "INK_STORY_API_KEY")
	overrideString(&cfg.Story.Model, "INK_STORY_MODEL")
	overrideInt(&cfg.Story.MaxTokens, "INK_STORY_MAX_TOKENS")
	overrideFloat(&cfg.Story.Temperature, "INK_STORY_TEMPERATURE")
	overrideBool(&cfg.Image.Enabled, "INK_IMAGE_ENABLED")
	overrideString(&cfg.Image.Endpoint, "INK_IMAGE_ENDPOINT")
	overrideString(&cfg.Image.APIKey, "INK_IMAGE_API_KEY")
	overrideString(&cfg.Image.Model, "INK_IMAGE_MODEL")
	overrideBool(&cfg.TTS.Enabled, "INK_TTS_ENABLED")
	overrideString(&cfg.TTS.Endpoint, "INK_TTS_ENDPOINT")
	overrideString(&cfg.TTS.AppID, "INK_TTS_APP_ID")
	overrideString(&cfg.TTS.AccessKey, "INK_TTS_ACCESS_KEY")
	overrideString(&cfg.TTS.ResourceID, "INK_TTS_RESOURCE_ID")
	overrideString(&cfg.TTS.AppKey, "INK_TTS_APP_KEY")
	overrideString(&cfg.TTS.Format, "INK_TTS_FORMAT")
	overrideInt(&cfg.TTS.SampleRate, "INK_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.HandshakeTimeout, "INK_TTS_HANDSHAKE_TIMEOUT_MS")
	overrideInt(&cfg.TTS.SessionTimeout, "INK_TTS_SESSION_TIMEOUT_MS")
	overrideString(&cfg.Media.Dir, "INK_MEDIA_DIR")
	overrideString(&cfg.Media.BaseURL, "INK_MEDIA_BASE_URL")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if cfg.Admission.HousekeepingInterval <= 0 {
		return errors.New("admission.housekeeping_interval_ms must be positive")
	}
	if cfg.Admission.LockStaleAfter <= 0 {
		return errors.New("admission.lock_stale_after_ms must be positive")
	}
	if cfg.Story.DailyLimit < 0 {
		return errors.New("story.daily_limit must be >= 0")
	}
	if cfg.Story.MaxTokens < 0 {
		return errors.New("story.max_tokens must be >= 0")
	}
	if cfg.Image.Enabled && cfg.Image.Endpoint == "" {
		return errors.New("image.endpoint must be set when image generation is enabled")
	}
	if cfg.TTS.Enabled {
		if cfg.TTS.Endpoint == "" {
			return errors.New("tts.endpoint must not be empty when tts is enabled")
		}
		if cfg.TTS.SampleRate <= 0 {
			return errors.New("tts.sample_rate must be positive")
		}
		if cfg.TTS.SessionTimeout <= 0 {
			return errors.New("tts.session_timeout_ms must be positive")
		}
	}
	if cfg.Media.Dir == "" {
		return errors.New("media.dir must not be empty")
	}
	if !strings.HasPrefix(cfg.Media.BaseURL, "/") && !strings.Contains(cfg.Media.BaseURL, "://") {
		return errors.New("media.base_url must be an absolute path or URL")
	}
	return nil
}
