package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderGemini   = "gemini"
	ProviderMock     = "mock"
	ProviderLLM      = "llm"
	ProviderGoogle   = "google"
	ProviderRealtime = "realtime"
)

type Config struct {
	Server         ServerConfig         `yaml:"server"`
	LLM            LLMConfig            `yaml:"llm"`
	STT            STTConfig            `yaml:"stt"`
	SpeechToSpeech SpeechToSpeechConfig `yaml:"speech_to_speech"`
	Realtime       RealtimeConfig       `yaml:"realtime"`
	Mongo          MongoConfig          `yaml:"mongo"`
	Redis          RedisConfig          `yaml:"redis"`
	Auth           AuthConfig           `yaml:"auth"`
	Audio          AudioConfig          `yaml:"audio"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Env             string        `yaml:"env"`
	DefaultLanguage string        `yaml:"default_language"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LLMConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	AudioModel string `yaml:"audio_model"`
}

type STTConfig struct {
	Provider string `yaml:"provider"`
}

type SpeechToSpeechConfig struct {
	Provider string `yaml:"provider"`
}

type RealtimeConfig struct {
	APIKey             string        `yaml:"api_key"`
	URL                string        `yaml:"url"`
	Model              string        `yaml:"model"`
	TranscriptionModel string        `yaml:"transcription_model"`
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	Temperature        float64       `yaml:"temperature"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	HistoryTTL time.Duration `yaml:"history_ttl"`
}

type AuthConfig struct {
	Enabled      bool          `yaml:"enabled"`
	JWTSecret    string        `yaml:"jwt_secret"`
	ClientSecret string        `yaml:"client_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

type AudioConfig struct {
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Env:             "production",
			DefaultLanguage: "ko",
			ShutdownTimeout: 10 * time.Second,
		},
		LLM:            LLMConfig{Provider: ProviderGemini},
		STT:            STTConfig{Provider: ProviderLLM},
		SpeechToSpeech: SpeechToSpeechConfig{Provider: ProviderLLM},
		Realtime: RealtimeConfig{
			TranscriptionModel: "gpt-4o-mini-transcribe",
			HandshakeTimeout:   60 * time.Second,
			Temperature:        0.8,
		},
		Mongo: MongoConfig{Database: "triolingo"},
		Redis: RedisConfig{HistoryTTL: 24 * time.Hour},
		Auth:  AuthConfig{TokenTTL: 24 * time.Hour},
		Audio: AudioConfig{
			IdleTimeout:     10 * time.Minute,
			CleanupInterval: time.Minute,
		},
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE
// (if set), then applies environment overrides and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	env := envReader{lookup: lookup}

	env.stringVar("PORT", &c.Server.Port)
	env.stringVar("APP_ENV", &c.Server.Env)
	env.stringVar("DEFAULT_LANGUAGE", &c.Server.DefaultLanguage)
	env.durationVar("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	env.stringVar("LLM_PROVIDER", &c.LLM.Provider)
	env.stringVar("GEMINI_API_KEY", &c.LLM.APIKey)
	env.stringVar("GEMINI_MODEL", &c.LLM.Model)
	env.stringVar("GEMINI_AUDIO_MODEL", &c.LLM.AudioModel)

	env.stringVar("STT_PROVIDER", &c.STT.Provider)
	env.stringVar("SPEECH_TO_SPEECH_PROVIDER", &c.SpeechToSpeech.Provider)

	env.stringVar("OPENAI_API_KEY", &c.Realtime.APIKey)
	env.stringVar("REALTIME_URL", &c.Realtime.URL)
	env.stringVar("REALTIME_MODEL", &c.Realtime.Model)
	env.stringVar("REALTIME_TRANSCRIPTION_MODEL", &c.Realtime.TranscriptionModel)
	env.durationVar("REALTIME_HANDSHAKE_TIMEOUT", &c.Realtime.HandshakeTimeout)
	env.floatVar("REALTIME_TEMPERATURE", &c.Realtime.Temperature)

	env.stringVar("MONGODB_URI", &c.Mongo.URI)
	env.stringVar("MONGODB_DATABASE", &c.Mongo.Database)

	env.stringVar("REDIS_ADDR", &c.Redis.Addr)
	env.stringVar("REDIS_PASSWORD", &c.Redis.Password)
	env.intVar("REDIS_DB", &c.Redis.DB)
	env.durationVar("HISTORY_TTL", &c.Redis.HistoryTTL)

	env.boolVar("AUTH_ENABLED", &c.Auth.Enabled)
	env.stringVar("JWT_SECRET", &c.Auth.JWTSecret)
	env.stringVar("AUTH_CLIENT_SECRET", &c.Auth.ClientSecret)
	env.durationVar("AUTH_TOKEN_TTL", &c.Auth.TokenTTL)

	env.durationVar("AUDIO_SESSION_IDLE_TIMEOUT", &c.Audio.IdleTimeout)
	env.durationVar("AUDIO_CLEANUP_INTERVAL", &c.Audio.CleanupInterval)

	return errors.Join(env.errs...)
}

// Validate rejects combinations the server cannot start with
func (c *Config) Validate() error {
	var errs []error

	switch c.LLM.Provider {
	case ProviderGemini:
		if c.LLM.APIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	case ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown LLM provider %q", c.LLM.Provider))
	}

	switch c.STT.Provider {
	case ProviderLLM, ProviderGoogle, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown STT provider %q", c.STT.Provider))
	}

	switch c.SpeechToSpeech.Provider {
	case ProviderLLM:
	case ProviderRealtime:
		if c.Realtime.APIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the realtime speech-to-speech provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown speech-to-speech provider %q", c.SpeechToSpeech.Provider))
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required when auth is enabled"))
	}
	if c.Audio.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid audio session idle timeout %v", c.Audio.IdleTimeout))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether verbose development logging should be used
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// RealtimeEnabled reports whether streaming endpoints can reach an upstream
func (c *Config) RealtimeEnabled() bool {
	return c.Realtime.APIKey != ""
}

type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (r *envReader) stringVar(key string, dst *string) {
	if v, ok := r.lookup(key); ok && v != "" {
		*dst = v
	}
}

func (r *envReader) intVar(key string, dst *int) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (r *envReader) floatVar(key string, dst *float64) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = f
}

func (r *envReader) boolVar(key string, dst *bool) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}

func (r *envReader) durationVar(key string, dst *time.Duration) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}
