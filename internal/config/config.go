// Package config loads and validates the bridge's config.json file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Endpoint holds the connection details for one side of the bridge.
type Endpoint struct {
	Host    string `json:"host"`
	CDNHost string `json:"cdn_host"`
	Token   string `json:"token"`
}

// Bridge is one configured channel pair.
type Bridge struct {
	DiscordChannelID  string `json:"discord_channel_id"`
	SpacebarChannelID string `json:"spacebar_channel_id"`
}

// Database holds the pair-store backend configuration. When PostgresHost is
// empty the SQLite backend is used (two files under DirPath); otherwise both
// endpoints use Postgres databases on the same host.
type Database struct {
	DirPath          string `json:"dir_path"`
	PostgresHost     string `json:"postgresql_host"`
	PostgresUser     string `json:"postgresql_user"`
	PostgresPassword string `json:"postgresql_password"`
	CleanupDays      int    `json:"cleanup_days"`
	PairLifetimeDays int    `json:"pair_lifetime_days"`
}

// CustomStatusEmoji mirrors Discord's activity emoji shape.
type CustomStatusEmoji struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

// Config is the root config.json shape.
type Config struct {
	Discord            Endpoint           `json:"discord"`
	Spacebar           Endpoint           `json:"spacebar"`
	DiscordGuildID     string             `json:"discord_guild_id"`
	SpacebarGuildID    string             `json:"spacebar_guild_id"`
	Bridges            []Bridge           `json:"bridges"`
	CustomStatus       *string            `json:"custom_status"`
	CustomStatusEmoji  *CustomStatusEmoji `json:"custom_status_emoji"`
	Database           Database           `json:"database"`
}

// Load reads and validates config.json at path, applying defaults for
// unset database retention windows.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Database.PairLifetimeDays == 0 {
		cfg.Database.PairLifetimeDays = 30
	}
	if cfg.Database.CleanupDays == 0 {
		cfg.Database.CleanupDays = 7
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord.token is required")
	}
	if c.Spacebar.Token == "" {
		return fmt.Errorf("spacebar.token is required")
	}
	if len(c.Bridges) == 0 {
		return fmt.Errorf("bridges must contain at least one channel pair")
	}
	for i, b := range c.Bridges {
		if b.DiscordChannelID == "" || b.SpacebarChannelID == "" {
			return fmt.Errorf("bridges[%d]: both channel ids are required", i)
		}
	}
	if c.Database.PostgresHost == "" && c.Database.DirPath == "" {
		return fmt.Errorf("database.dir_path is required when postgresql_host is unset")
	}
	if c.Database.CleanupDays >= c.Database.PairLifetimeDays {
		return fmt.Errorf("database.cleanup_days (%d) must be less than pair_lifetime_days (%d)",
			c.Database.CleanupDays, c.Database.PairLifetimeDays)
	}
	return nil
}

// PairID returns the table/pair identifier "pair_<src>_<tgt>" used both as a
// SQL table name and as a lookup key.
func PairID(src, tgt string) string {
	return fmt.Sprintf("pair_%s_%s", src, tgt)
}
