package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/asistente-voz/vozterm/internal/api"
	"github.com/asistente-voz/vozterm/internal/speech"
)

// Profile holds the settings for one backend and one voice setup.
type Profile struct {
	BaseURL       string  `json:"base_url"`
	Token         string  `json:"token,omitempty"`
	WakeWord      string  `json:"wake_word"`
	AutoSpeak     bool    `json:"auto_speak"`
	VoiceName     string  `json:"voice_name,omitempty"`
	VoiceRate     float64 `json:"voice_rate,omitempty"`
	SpeakCommand  string  `json:"speak_command,omitempty"`
	ListenCommand string  `json:"listen_command,omitempty"`
	LogLevel      string  `json:"log_level,omitempty"`
}

type Config struct {
	Profiles       map[string]Profile `json:"profiles"`
	ActiveProfile  string             `json:"active_profile"`
	currentProfile *Profile
}

func LoadConfig() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	if err := ensureConfigDir(configPath); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config, err := loadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := config.setCurrentProfile(); err != nil {
		return nil, fmt.Errorf("failed to set current profile: %w", err)
	}

	return config, nil
}

// GetBaseURL returns the profile's backend origin, empty when unset. The
// API client owns the default fallback.
func (c *Config) GetBaseURL() string {
	if c.currentProfile == nil {
		return ""
	}
	return c.currentProfile.BaseURL
}

func (c *Config) GetToken() string {
	if c.currentProfile == nil {
		return ""
	}
	return c.currentProfile.Token
}

func (c *Config) GetWakeWord() string {
	if c.currentProfile == nil || c.currentProfile.WakeWord == "" {
		return speech.DefaultWakeWord
	}
	return c.currentProfile.WakeWord
}

func (c *Config) GetAutoSpeak() bool {
	return c.currentProfile != nil && c.currentProfile.AutoSpeak
}

func (c *Config) GetVoiceName() string {
	if c.currentProfile == nil {
		return ""
	}
	return c.currentProfile.VoiceName
}

func (c *Config) GetVoiceRate() float64 {
	if c.currentProfile == nil || c.currentProfile.VoiceRate <= 0 {
		return 1.0
	}
	return c.currentProfile.VoiceRate
}

func (c *Config) GetSpeakCommand() string {
	if c.currentProfile == nil {
		return ""
	}
	return c.currentProfile.SpeakCommand
}

func (c *Config) GetListenCommand() string {
	if c.currentProfile == nil {
		return ""
	}
	return c.currentProfile.ListenCommand
}

func (c *Config) GetLogLevel() string {
	if c.currentProfile == nil || c.currentProfile.LogLevel == "" {
		return "info"
	}
	return c.currentProfile.LogLevel
}

// SetToken stores the session token on the active profile. Callers must
// Save afterwards to persist it.
func (c *Config) SetToken(token string) {
	if c.currentProfile == nil {
		return
	}
	c.currentProfile.Token = token
	profile := c.Profiles[c.ActiveProfile]
	profile.Token = token
	c.Profiles[c.ActiveProfile] = profile
}

func getConfigPath() (string, error) {
	var configDir string

	// Use VOZTERM_HOME if set, otherwise use the user's home directory
	if vozHome := os.Getenv("VOZTERM_HOME"); vozHome != "" {
		configDir = vozHome
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = homeDir
	}

	return filepath.Join(configDir, ".vozterm", "config.json"), nil
}

// LogPath resolves the log file location next to the config file.
func LogPath() (string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(configPath), "vozterm.log"), nil
}

func ensureConfigDir(configPath string) error {
	configDir := filepath.Dir(configPath)
	return os.MkdirAll(configDir, 0755)
}

func loadConfigFile(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return createDefaultConfig(configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

func createDefaultConfig(configPath string) (*Config, error) {
	config := &Config{
		Profiles: map[string]Profile{
			"default": {
				BaseURL:   api.DefaultBaseURL,
				WakeWord:  speech.DefaultWakeWord,
				AutoSpeak: true,
				VoiceRate: 1.0,
			},
		},
		ActiveProfile: "default",
	}

	if err := saveConfig(config, configPath); err != nil {
		return nil, err
	}

	return config, nil
}

func saveConfig(config *Config, configPath string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

func (c *Config) Save() error {
	configPath, err := getConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	return saveConfig(c, configPath)
}

func (c *Config) setCurrentProfile() error {
	if c.Profiles == nil {
		return fmt.Errorf("no profiles defined")
	}

	profile, exists := c.Profiles[c.ActiveProfile]
	if !exists {
		// If the active profile doesn't exist, fall back to any existing one
		for name, p := range c.Profiles {
			c.ActiveProfile = name
			profile = p
			exists = true
			break
		}
	}

	if !exists {
		return fmt.Errorf("no valid profiles found")
	}

	c.currentProfile = &profile
	return nil
}
