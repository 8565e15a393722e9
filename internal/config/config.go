package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	Gemini     GeminiConfig
	Nessie     NessieConfig
	ElevenLabs ElevenLabsConfig
	Mongo      MongoConfig
	Redis      RedisConfig
	Policy     PolicyConfig
}

type GeminiConfig struct {
	APIKey       string
	Model        string
	MaxToolTurns int
}

type NessieConfig struct {
	APIKey         string
	BaseURL        string
	AccountID      string
	BalanceTimeout time.Duration
	BillTimeout    time.Duration
}

// Configured reports whether the sandbox credentials and demo account are present.
func (c NessieConfig) Configured() bool {
	return c.APIKey != "" && c.AccountID != ""
}

type ElevenLabsConfig struct {
	APIKey       string
	BaseURL      string
	VoiceID      string
	TTSModel     string
	STTModel     string
	OutputFormat string
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

const (
	PolicyModeGuarded = "guarded"
	PolicyModeLegacy  = "legacy"
)

type PolicyConfig struct {
	Mode               string
	ConfirmationSecret string
	ConfirmationTTL    time.Duration
}

// LoadEnv loads variables from a .env file in the working directory, if present.
func LoadEnv() error {
	err := godotenv.Load(".env")
	if err != nil {
		log.Printf("No .env file loaded: %v", err)
		return err
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("GEMINI_MAX_TOOL_TURNS", 4)

	v.SetDefault("NESSIE_API_BASE", "http://api.nessieisreal.com")
	v.SetDefault("NESSIE_BALANCE_TIMEOUT", "6s")
	v.SetDefault("NESSIE_BILL_TIMEOUT", "8s")

	v.SetDefault("ELEVENLABS_API_BASE", "https://api.elevenlabs.io")
	v.SetDefault("ELEVENLABS_VOICE_ID", "JBFqnCBsd6RMkjVDRZzb")
	v.SetDefault("ELEVENLABS_TTS_MODEL", "eleven_multilingual_v2")
	v.SetDefault("ELEVENLABS_STT_MODEL", "scribe_v2")
	v.SetDefault("ELEVENLABS_OUTPUT_FORMAT", "mp3_44100_128")

	v.SetDefault("MONGODB_DATABASE", "VoiceBanking")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("POLICY_MODE", PolicyModeGuarded)
	v.SetDefault("CONFIRMATION_TTL", "10m")
}

// Load builds the configuration from the process environment.
func Load() *Config {
	return FromViper(viper.New())
}

// FromViper builds the configuration from the given viper instance, with env overrides enabled.
func FromViper(v *viper.Viper) *Config {
	setDefaults(v)
	v.AutomaticEnv()

	mode := strings.ToLower(strings.TrimSpace(v.GetString("POLICY_MODE")))
	if mode != PolicyModeLegacy {
		mode = PolicyModeGuarded
	}

	maxTurns := v.GetInt("GEMINI_MAX_TOOL_TURNS")
	if maxTurns < 1 {
		maxTurns = 1
	}

	return &Config{
		Port:      v.GetString("PORT"),
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
		Gemini: GeminiConfig{
			APIKey:       v.GetString("GEMINI_API_KEY"),
			Model:        v.GetString("GEMINI_MODEL"),
			MaxToolTurns: maxTurns,
		},
		Nessie: NessieConfig{
			APIKey:         v.GetString("NESSIE_API_KEY"),
			BaseURL:        strings.TrimRight(v.GetString("NESSIE_API_BASE"), "/"),
			AccountID:      v.GetString("DEMO_ACCOUNT_ID"),
			BalanceTimeout: v.GetDuration("NESSIE_BALANCE_TIMEOUT"),
			BillTimeout:    v.GetDuration("NESSIE_BILL_TIMEOUT"),
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:       v.GetString("ELEVENLABS_API_KEY"),
			BaseURL:      strings.TrimRight(v.GetString("ELEVENLABS_API_BASE"), "/"),
			VoiceID:      v.GetString("ELEVENLABS_VOICE_ID"),
			TTSModel:     v.GetString("ELEVENLABS_TTS_MODEL"),
			STTModel:     v.GetString("ELEVENLABS_STT_MODEL"),
			OutputFormat: v.GetString("ELEVENLABS_OUTPUT_FORMAT"),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Policy: PolicyConfig{
			Mode:               mode,
			ConfirmationSecret: v.GetString("CONFIRMATION_SECRET"),
			ConfirmationTTL:    v.GetDuration("CONFIRMATION_TTL"),
		},
	}
}

// JSONLogs reports whether the service logger should emit JSON.
func (c *Config) JSONLogs() bool {
	return !strings.EqualFold(c.LogFormat, "text")
}
