package sys

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Token        string
	GuildID      string
	DatabasePath string
	OwnerIDs     []string
	Silent       bool

	Voice VoiceConfig
}

// VoiceConfig holds the playback tunables. Durations are read from the
// environment in seconds unless the variable name says otherwise.
type VoiceConfig struct {
	CacheTTL             time.Duration
	MaxResolutions       int
	Workers              int
	ProviderRate         float64
	QueueLoadLimit       int
	IdleDisconnectDelay  time.Duration
	SessionIdleThreshold time.Duration
	ReaperPeriod         time.Duration
	PollInterval         time.Duration
	QueueDisplayLimit    int
	ResolveTimeout       time.Duration
	InterruptClip        string
	YtdlpSocketTimeout   int
	YtdlpRetries         int
}

var GlobalConfig *Config

// DefaultVoiceConfig returns the tunables used when the environment is silent.
func DefaultVoiceConfig() VoiceConfig {
	return VoiceConfig{
		CacheTTL:             3600 * time.Second,
		MaxResolutions:       5,
		Workers:              8,
		ProviderRate:         0,
		QueueLoadLimit:       20,
		IdleDisconnectDelay:  240 * time.Second,
		SessionIdleThreshold: 900 * time.Second,
		ReaperPeriod:         300 * time.Second,
		PollInterval:         500 * time.Millisecond,
		QueueDisplayLimit:    10,
		ResolveTimeout:       30 * time.Second,
		YtdlpSocketTimeout:   10,
		YtdlpRetries:         3,
	}
}

// LoadConfig initializes the configuration from environment variables.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		folder := "."
		if info, err := os.Stat("data"); err == nil && info.IsDir() {
			folder = "./data"
		}
		dbPath = filepath.Join(folder, GetProjectName()+".db")
	}

	silent, _ := strconv.ParseBool(os.Getenv("SILENT"))

	ownerIDsStr := os.Getenv("OWNER_IDS")
	var ownerIDs []string
	if ownerIDsStr != "" {
		ownerIDs = strings.Split(ownerIDsStr, ",")
		for i := range ownerIDs {
			ownerIDs[i] = strings.TrimSpace(ownerIDs[i])
		}
	}

	cfg := &Config{
		Token:        os.Getenv("DISCORD_TOKEN"),
		GuildID:      os.Getenv("GUILD_ID"),
		DatabasePath: dbPath,
		OwnerIDs:     ownerIDs,
		Silent:       silent,
		Voice:        loadVoiceConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Silent {
		SetSilentMode(true)
	}

	GlobalConfig = cfg
	return cfg, nil
}

func loadVoiceConfig() VoiceConfig {
	v := DefaultVoiceConfig()
	v.CacheTTL = envSeconds("VOICE_CACHE_TTL", v.CacheTTL)
	v.MaxResolutions = envInt("VOICE_MAX_RESOLUTIONS", v.MaxResolutions)
	v.Workers = envInt("VOICE_WORKERS", v.Workers)
	v.ProviderRate = envFloat("VOICE_PROVIDER_RATE", v.ProviderRate)
	v.QueueLoadLimit = envInt("VOICE_QUEUE_LOAD_LIMIT", v.QueueLoadLimit)
	v.IdleDisconnectDelay = envSeconds("VOICE_IDLE_DISCONNECT", v.IdleDisconnectDelay)
	v.SessionIdleThreshold = envSeconds("VOICE_SESSION_IDLE", v.SessionIdleThreshold)
	v.ReaperPeriod = envSeconds("VOICE_REAPER_PERIOD", v.ReaperPeriod)
	v.PollInterval = time.Duration(envInt("VOICE_POLL_INTERVAL_MS", int(v.PollInterval/time.Millisecond))) * time.Millisecond
	v.QueueDisplayLimit = envInt("VOICE_QUEUE_DISPLAY", v.QueueDisplayLimit)
	v.ResolveTimeout = envSeconds("VOICE_RESOLVE_TIMEOUT", v.ResolveTimeout)
	v.InterruptClip = os.Getenv("VOICE_INTERRUPT_CLIP")
	v.YtdlpSocketTimeout = envInt("YTDLP_SOCKET_TIMEOUT", v.YtdlpSocketTimeout)
	v.YtdlpRetries = envInt("YTDLP_RETRIES", v.YtdlpRetries)
	return v
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		LogWarn(MsgConfigInvalidValue, key, raw, def)
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		LogWarn(MsgConfigInvalidValue, key, raw, def)
		return def
	}
	return f
}

func envSeconds(key string, def time.Duration) time.Duration {
	return time.Duration(envInt(key, int(def/time.Second))) * time.Second
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf(MsgConfigMissingToken)
	}
	if c.GuildID != "" && (len(c.GuildID) < 17 || len(c.GuildID) > 20) {
		return fmt.Errorf("invalid GUILD_ID: must be a valid Snowflake")
	}
	return nil
}

func GetProjectName() string {
	exePath, err := os.Executable()
	projectName := "bot"
	if err == nil {
		projectName = filepath.Base(exePath)
		projectName = strings.TrimSuffix(projectName, ".exe")

		if projectName == "main" || strings.HasPrefix(projectName, "go_build_") {
			if modData, err := os.ReadFile("go.mod"); err == nil {
				lines := strings.Split(string(modData), "\n")
				if len(lines) > 0 && strings.HasPrefix(lines[0], "module ") {
					parts := strings.Split(lines[0], "/")
					projectName = strings.TrimSpace(parts[len(parts)-1])
				}
			}
		}
	}
	return projectName
}
