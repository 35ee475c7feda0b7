// Package config loads and validates vvspeak's configuration from a
// config file plus VVSPEAK_-prefixed environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/shouni/vvspeak/pkg/voicevox"
)

// VoiceVox holds every VoiceVox.* key from §6 of the external interface.
type VoiceVox struct {
	BaseURL               string
	DefaultSpeaker        int
	ConnectionTimeout     time.Duration
	AutoStartEngine       bool
	EnginePath            string
	EngineArguments       []string
	StartupTimeoutSeconds int
	KeepEngineRunning     bool
}

// Cache holds every Cache.* key.
type Cache struct {
	Directory                 string
	ExpirationDays            int
	MaxSizeGB                 float64
	UseExecutableBaseDirectory bool
}

// Audio holds every Audio.* key.
type Audio struct {
	OutputDevice          int
	Volume                float64
	PrepareDevice         bool
	PreparationDurationMs int
	PreparationVolume     float64
}

// Filler holds every Filler.* key.
type Filler struct {
	Enabled     bool
	Directory   string
	FillerTexts []string
}

// Config is the fully validated, merged configuration for one run.
type Config struct {
	VoiceVox VoiceVox
	Cache    Cache
	Audio    Audio
	Filler   Filler
}

var defaultFillerTexts = []string{
	"えーっと",
	"そうですね",
	"少々お待ちください",
	"ちょっと考えますね",
	"うーん",
	"なるほど",
}

// Load reads configPath (if non-empty) plus any VVSPEAK_-prefixed
// environment variables into a Config, applying the defaults from §6, and
// validates the result. A ConfigError aborts before any component is
// constructed, per the fatal-before-any-work policy.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("voicevox.baseurl", "http://127.0.0.1:50021")
	v.SetDefault("voicevox.defaultspeaker", 1)
	v.SetDefault("voicevox.connectiontimeout", 10)
	v.SetDefault("voicevox.autostartengine", true)
	v.SetDefault("voicevox.enginepath", "")
	v.SetDefault("voicevox.enginearguments", []string{})
	v.SetDefault("voicevox.startuptimeoutseconds", 30)
	v.SetDefault("voicevox.keepenginerunning", true)

	v.SetDefault("cache.directory", "cache/audio")
	v.SetDefault("cache.expirationdays", 30)
	v.SetDefault("cache.maxsizegb", 1.0)
	v.SetDefault("cache.useexecutablebasedirectory", true)

	v.SetDefault("audio.outputdevice", -1)
	v.SetDefault("audio.volume", 1.0)
	v.SetDefault("audio.preparedevice", false)
	v.SetDefault("audio.preparationdurationms", 120)
	v.SetDefault("audio.preparationvolume", 0.02)

	v.SetDefault("filler.enabled", true)
	v.SetDefault("filler.directory", "cache/filler")
	v.SetDefault("filler.fillertexts", defaultFillerTexts)

	v.SetEnvPrefix("VVSPEAK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, &voicevox.ConfigError{Key: "config file", Reason: err.Error()}
		}
	}

	cfg := &Config{
		VoiceVox: VoiceVox{
			BaseURL:               v.GetString("voicevox.baseurl"),
			DefaultSpeaker:        v.GetInt("voicevox.defaultspeaker"),
			ConnectionTimeout:     time.Duration(v.GetInt("voicevox.connectiontimeout")) * time.Second,
			AutoStartEngine:       v.GetBool("voicevox.autostartengine"),
			EnginePath:            v.GetString("voicevox.enginepath"),
			EngineArguments:       v.GetStringSlice("voicevox.enginearguments"),
			StartupTimeoutSeconds: v.GetInt("voicevox.startuptimeoutseconds"),
			KeepEngineRunning:     v.GetBool("voicevox.keepenginerunning"),
		},
		Cache: Cache{
			Directory:                  v.GetString("cache.directory"),
			ExpirationDays:             v.GetInt("cache.expirationdays"),
			MaxSizeGB:                  v.GetFloat64("cache.maxsizegb"),
			UseExecutableBaseDirectory: v.GetBool("cache.useexecutablebasedirectory"),
		},
		Audio: Audio{
			OutputDevice:          v.GetInt("audio.outputdevice"),
			Volume:                v.GetFloat64("audio.volume"),
			PrepareDevice:         v.GetBool("audio.preparedevice"),
			PreparationDurationMs: v.GetInt("audio.preparationdurationms"),
			PreparationVolume:     v.GetFloat64("audio.preparationvolume"),
		},
		Filler: Filler{
			Enabled:     v.GetBool("filler.enabled"),
			Directory:   v.GetString("filler.directory"),
			FillerTexts: v.GetStringSlice("filler.fillertexts"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveDir anchors a relative cache/filler directory to the running
// executable's directory when useExecutableBaseDirectory is set, so the
// tool finds its cache next to the binary regardless of the caller's
// current working directory. An absolute dir is returned unchanged.
func ResolveDir(dir string, useExecutableBaseDirectory bool) (string, error) {
	if !useExecutableBaseDirectory || filepath.IsAbs(dir) {
		return dir, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return "", &voicevox.ConfigError{Key: "Cache.UseExecutableBaseDirectory", Reason: err.Error()}
	}
	return filepath.Join(filepath.Dir(exe), dir), nil
}

func (c *Config) validate() error {
	if c.VoiceVox.ConnectionTimeout <= 0 {
		return &voicevox.ConfigError{Key: "VoiceVox.ConnectionTimeout", Reason: "must be positive"}
	}
	if c.VoiceVox.StartupTimeoutSeconds <= 0 {
		return &voicevox.ConfigError{Key: "VoiceVox.StartupTimeoutSeconds", Reason: "must be positive"}
	}
	if c.Cache.MaxSizeGB <= 0 {
		return &voicevox.ConfigError{Key: "Cache.MaxSizeGB", Reason: "must be greater than zero"}
	}
	if c.Cache.ExpirationDays < 0 {
		return &voicevox.ConfigError{Key: "Cache.ExpirationDays", Reason: "cannot be negative"}
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 2.0 {
		return &voicevox.ConfigError{Key: "Audio.Volume", Reason: fmt.Sprintf("must be within [0.0, 2.0], got %.2f", c.Audio.Volume)}
	}
	if len(c.Filler.FillerTexts) > 0 && (len(c.Filler.FillerTexts) < 1 || len(c.Filler.FillerTexts) > 100) {
		return &voicevox.ConfigError{Key: "Filler.FillerTexts", Reason: "expected a small list of filler texts"}
	}
	return nil
}
