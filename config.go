package focusforge

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DatabasePathKey          = "FOCUSFORGE_DB_PATH"
	SettingsPathKey          = "FOCUSFORGE_SETTINGS_PATH"
	AmbientPathKey           = "FOCUSFORGE_AMBIENT_PATH"
	AlertPathKey             = "FOCUSFORGE_ALERT_PATH"
	LogPathKey               = "FOCUSFORGE_LOG_PATH"
	LogLevelKey              = "FOCUSFORGE_LOG_LEVEL"
	DiscordTokenKey          = "FOCUSFORGE_DISCORD_TOKEN"
	DiscordGuildIDKey        = "FOCUSFORGE_DISCORD_GUILD_ID"
	DiscordVoiceChannelIDKey = "FOCUSFORGE_DISCORD_VOICE_CHANNEL_ID"
	DiscordTextChannelIDKey  = "FOCUSFORGE_DISCORD_TEXT_CHANNEL_ID"
)

type Config struct {
	DatabasePath string
	AmbientPath  string
	AlertPath    string
	LogPath      string
	LogLevel     string

	Discord DiscordConfig

	// Pomodoro seeds the store when no settings have been saved yet.
	Pomodoro PomodoroSettings
}

type DiscordConfig struct {
	Token          string
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
}

// VoiceEnabled reports whether ambient audio should be streamed to Discord.
func (c DiscordConfig) VoiceEnabled() bool {
	return c.Token != "" && c.GuildID != "" && c.VoiceChannelID != ""
}

type settingsFile struct {
	Pomodoro struct {
		WorkMinutes               int `yaml:"work_minutes"`
		ShortBreakMinutes         int `yaml:"short_break_minutes"`
		LongBreakMinutes          int `yaml:"long_break_minutes"`
		WorkPhasesBeforeLongBreak int `yaml:"work_phases_before_long_break"`
	} `yaml:"pomodoro"`
}

func LoadConfig(isProd bool) (Config, error) {
	if isProd {
		_ = godotenv.Load(".env")
	} else {
		_ = godotenv.Load(".env.dev")
	}

	config := Config{
		DatabasePath: os.Getenv(DatabasePathKey),
		AmbientPath:  os.Getenv(AmbientPathKey),
		AlertPath:    os.Getenv(AlertPathKey),
		LogPath:      os.Getenv(LogPathKey),
		LogLevel:     os.Getenv(LogLevelKey),
		Discord: DiscordConfig{
			Token:          os.Getenv(DiscordTokenKey),
			GuildID:        os.Getenv(DiscordGuildIDKey),
			VoiceChannelID: os.Getenv(DiscordVoiceChannelIDKey),
			TextChannelID:  os.Getenv(DiscordTextChannelIDKey),
		},
		Pomodoro: DefaultPomodoroSettings(),
	}

	if config.DatabasePath == "" {
		config.DatabasePath = "focusforge.db"
	}
	if config.LogPath == "" {
		config.LogPath = "focusforge.log"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	if path := os.Getenv(SettingsPathKey); path != "" {
		settings, err := loadSettingsFile(path, config.Pomodoro)
		if err != nil {
			return Config{}, err
		}
		config.Pomodoro = settings
	}

	return config, nil
}

// loadSettingsFile overlays non-zero values from the YAML file onto def.
func loadSettingsFile(path string, def PomodoroSettings) (PomodoroSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PomodoroSettings{}, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	var f settingsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return PomodoroSettings{}, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	s := def
	if v := f.Pomodoro.WorkMinutes; v != 0 {
		s.WorkDuration = v
	}
	if v := f.Pomodoro.ShortBreakMinutes; v != 0 {
		s.ShortBreakDuration = v
	}
	if v := f.Pomodoro.LongBreakMinutes; v != 0 {
		s.LongBreakDuration = v
	}
	if v := f.Pomodoro.WorkPhasesBeforeLongBreak; v != 0 {
		s.WorkPhasesBeforeLongBreak = v
	}
	return s.Normalize(), nil
}
