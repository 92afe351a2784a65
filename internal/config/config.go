// Package config loads and persists the Momentum configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config is the persistent application configuration
type Config struct {
	// Anthropic settings for idea generation
	Ideas IdeasConfig `json:"ideas"`

	// Twilio settings for WhatsApp delivery
	Twilio TwilioConfig `json:"twilio"`

	// Alert gating rules
	Alerts AlertConfig `json:"alerts"`

	// Trend feed sources
	Feeds []FeedConfig `json:"feeds"`

	// Keywords describing the creator's niche; used for base scoring
	ProfileKeywords []string `json:"profile_keywords"`

	// DBPath overrides the default database location
	DBPath string `json:"db_path,omitempty"`
}

// IdeasConfig holds the idea-generation provider settings
type IdeasConfig struct {
	APIKey string `json:"api_key,omitempty"`
	Model  string `json:"model,omitempty"`
}

// TwilioConfig holds delivery credentials
type TwilioConfig struct {
	AccountSID string `json:"account_sid,omitempty"`
	AuthToken  string `json:"auth_token,omitempty"`
	From       string `json:"from,omitempty"` // e.g. "whatsapp:+14155238886"
	To         string `json:"to,omitempty"`
}

// AlertConfig holds the gating rules for golden moment alerts
type AlertConfig struct {
	MaxPerDay        int    `json:"max_per_day"`        // trailing 24h cap
	MinGapHours      int    `json:"min_gap_hours"`      // spacing between alerts
	FreshnessHours   int    `json:"freshness_hours"`    // candidate eligibility window
	GoldenThreshold  float64 `json:"golden_threshold"`  // weighted score to qualify
	NoPostHours      int    `json:"no_post_hours"`      // suppress if creator posted within this window
	WindowHours      []int  `json:"window_hours"`       // hours of day alerts may fire
	WindowDays       []int  `json:"window_days"`        // weekdays alerts may fire (0=Sunday)
	Timezone         string `json:"timezone"`
	CheckIntervalMin int    `json:"check_interval_min"` // opportunity tick interval
}

// FeedConfig describes one RSS trend source
type FeedConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Ideas: IdeasConfig{
			Model: "claude-sonnet-4-5-20250929",
		},
		Alerts: AlertConfig{
			MaxPerDay:        2,
			MinGapHours:      3,
			FreshnessHours:   6,
			GoldenThreshold:  90,
			NoPostHours:      20,
			WindowHours:      []int{18, 19, 20, 21},
			WindowDays:       []int{0, 1, 2, 3, 4}, // Sun-Thu
			Timezone:         "Asia/Jerusalem",
			CheckIntervalMin: 30,
		},
		Feeds: []FeedConfig{
			{Name: "Google Trends", URL: "https://trends.google.com/trending/rss?geo=IL"},
		},
		ProfileKeywords: []string{"music", "couple", "story", "reaction", "trend"},
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".momentum", "config.json")
}

// DefaultDBPath returns the default database location
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".momentum", "momentum.db")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	path := ConfigPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.AutoPopulateFromEnv()
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.AutoPopulateFromEnv()

	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // Restrictive permissions for credentials
}

// AutoPopulateFromEnv fills in credentials from environment variables.
// Values already present in the config file win over the environment.
func (c *Config) AutoPopulateFromEnv() {
	if c.Ideas.APIKey == "" {
		c.Ideas.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.Twilio.AccountSID == "" {
		c.Twilio.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if c.Twilio.AuthToken == "" {
		c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if c.Twilio.From == "" {
		c.Twilio.From = os.Getenv("MOMENTUM_WHATSAPP_FROM")
	}
	if c.Twilio.To == "" {
		c.Twilio.To = os.Getenv("MOMENTUM_WHATSAPP_TO")
	}
}

// DatabasePath returns the configured database path, or the default.
func (c *Config) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return DefaultDBPath()
}
