// Package config loads bot settings from an optional YAML file and the
// environment. Environment values win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SessionMemory = "memory"
	SessionBolt   = "bolt"

	STTOpenAI  = "openai"
	STTWhisper = "whisper"
)

type Config struct {
	OpenAIKey     string `yaml:"openai_api_key"`
	TelegramToken string `yaml:"telegram_bot_token"`
	AssistantID   string `yaml:"assistant_id"`

	DatabaseURL   string `yaml:"database_url"`
	SessionStore  string `yaml:"session_store"`
	SessionDBPath string `yaml:"session_db_path"`

	AmplitudeKey string `yaml:"amplitude_api_key"`
	SocksProxy   string `yaml:"socks_proxy"`

	STT    STTConfig    `yaml:"stt"`
	Speech SpeechConfig `yaml:"speech"`
	Run    RunConfig    `yaml:"run"`

	VisionModel   string `yaml:"vision_model"`
	KnowledgeFile string `yaml:"knowledge_file"`

	HTTPAddr      string `yaml:"http_addr"`
	WebhookURL    string `yaml:"webhook_url"`
	BusURL        string `yaml:"bus_url"`
	ControlSocket string `yaml:"control_socket"`
	Workers       int    `yaml:"workers"`
}

type STTConfig struct {
	Backend      string `yaml:"backend"`
	WhisperModel string `yaml:"whisper_model"`
	Language     string `yaml:"language"`
}

type SpeechConfig struct {
	VoiceReplies bool   `yaml:"voice_replies"`
	Model        string `yaml:"model"`
	Voice        string `yaml:"voice"`
}

// RunConfig bounds assistant run polling.
type RunConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxPollInterval time.Duration `yaml:"max_poll_interval"`
	Timeout         time.Duration `yaml:"timeout"`
}

func Default() *Config {
	return &Config{
		DatabaseURL:   "./data/values.db",
		SessionStore:  SessionMemory,
		SessionDBPath: "./data/sessions.db",
		STT: STTConfig{
			Backend:      STTOpenAI,
			WhisperModel: "models/ggml-medium.bin",
			Language:     "ru",
		},
		Speech: SpeechConfig{
			VoiceReplies: true,
			Model:        "tts-1",
			Voice:        "alloy",
		},
		Run: RunConfig{
			PollInterval:    time.Second,
			MaxPollInterval: 5 * time.Second,
			Timeout:         2 * time.Minute,
		},
		VisionModel:   "gpt-4o-mini",
		HTTPAddr:      ":8080",
		ControlSocket: "/tmp/valuebot.sock",
		Workers:       8,
	}
}

// Load builds the config from defaults, the YAML file at path (if any) and
// the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.OpenAIKey, "OPENAI_API_KEY")
	setString(&c.TelegramToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.AssistantID, "ASSISTANT_ID")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.SessionStore, "SESSION_STORE")
	setString(&c.SessionDBPath, "SESSION_DB_PATH")
	setString(&c.AmplitudeKey, "AMPLITUDE_API_KEY")
	setString(&c.SocksProxy, "SOCKS_PROXY")
	setString(&c.STT.Backend, "STT_BACKEND")
	setString(&c.STT.WhisperModel, "WHISPER_MODEL")
	setString(&c.STT.Language, "STT_LANGUAGE")
	setString(&c.Speech.Model, "TTS_MODEL")
	setString(&c.Speech.Voice, "TTS_VOICE")
	setString(&c.VisionModel, "VISION_MODEL")
	setString(&c.KnowledgeFile, "KNOWLEDGE_FILE")
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.WebhookURL, "WEBHOOK_URL")
	setString(&c.BusURL, "BUS_URL")
	setString(&c.ControlSocket, "CONTROL_SOCKET")

	return errors.Join(
		setBool(&c.Speech.VoiceReplies, "VOICE_REPLIES"),
		setDuration(&c.Run.PollInterval, "RUN_POLL_INTERVAL"),
		setDuration(&c.Run.MaxPollInterval, "RUN_POLL_MAX_INTERVAL"),
		setDuration(&c.Run.Timeout, "RUN_TIMEOUT"),
		setInt(&c.Workers, "WORKERS"),
	)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	var errs []error
	if c.OpenAIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY not set"))
	}
	if c.TelegramToken == "" && c.BusURL == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN not set"))
	}
	if c.AssistantID == "" {
		errs = append(errs, errors.New("ASSISTANT_ID not set"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL cannot be empty"))
	}
	switch c.SessionStore {
	case SessionMemory:
	case SessionBolt:
		if c.SessionDBPath == "" {
			errs = append(errs, errors.New("SESSION_DB_PATH required for bolt sessions"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE %q: want memory or bolt", c.SessionStore))
	}
	switch c.STT.Backend {
	case STTOpenAI, STTWhisper:
	default:
		errs = append(errs, fmt.Errorf("STT_BACKEND %q: want openai or whisper", c.STT.Backend))
	}
	if c.Run.PollInterval <= 0 || c.Run.MaxPollInterval < c.Run.PollInterval {
		errs = append(errs, errors.New("RUN_POLL_INTERVAL must be > 0 and <= RUN_POLL_MAX_INTERVAL"))
	}
	if c.Run.Timeout <= 0 {
		errs = append(errs, errors.New("RUN_TIMEOUT must be > 0"))
	}
	if c.WebhookURL != "" && c.HTTPAddr == "" {
		errs = append(errs, errors.New("WEBHOOK_URL requires HTTP_ADDR to serve the webhook"))
	}
	if c.Workers <= 0 {
		errs = append(errs, errors.New("WORKERS must be > 0"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		return fmt.Errorf("%s: invalid bool %q", key, v)
	}
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// setDuration accepts Go durations ("1500ms") or plain seconds ("2").
func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	v = strings.TrimSpace(v)
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(secs * float64(time.Second))
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
