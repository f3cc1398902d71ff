package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Settings Settings       `mapstructure:"settings"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: "./data/shelfstream.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Settings: DefaultSettings(),
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.shelfstream")
	}

	v.SetEnvPrefix("SHELFSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.path", "./data/shelfstream.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")

	def := DefaultSettings()
	v.SetDefault("settings.tmdb.token", def.TMDB.Token)
	v.SetDefault("settings.tmdb.language", def.TMDB.Language)
	v.SetDefault("settings.tmdb.proxy", def.TMDB.Proxy)
	v.SetDefault("settings.tmdb.timeout_seconds", def.TMDB.TimeoutSeconds)
	v.SetDefault("settings.emby.enabled", def.Emby.Enabled)
	v.SetDefault("settings.emby.server_url", def.Emby.ServerURL)
	v.SetDefault("settings.emby.api_key", def.Emby.APIKey)
	v.SetDefault("settings.emby.check_before_scrape", def.Emby.CheckBeforeScrape)
	v.SetDefault("settings.naming.series_folder", def.Naming.SeriesFolder)
	v.SetDefault("settings.naming.season_folder", def.Naming.SeasonFolder)
	v.SetDefault("settings.naming.episode_file", def.Naming.EpisodeFile)
	v.SetDefault("settings.download.poster", def.Download.Poster)
	v.SetDefault("settings.download.thumb", def.Download.Thumb)
	v.SetDefault("settings.download.backdrop", def.Download.Backdrop)
	v.SetDefault("settings.metadata.scrape_title", def.Metadata.ScrapeTitle)
	v.SetDefault("settings.metadata.scrape_plot", def.Metadata.ScrapePlot)
	v.SetDefault("settings.metadata.nfo_enabled", def.Metadata.NFOEnabled)
	v.SetDefault("settings.organize.library_dir", def.Organize.LibraryDir)
	v.SetDefault("settings.organize.metadata_dir", def.Organize.MetadataDir)
	v.SetDefault("settings.organize.min_file_size_mb", def.Organize.MinFileSizeMB)
	v.SetDefault("settings.jobs.retention_days", def.Jobs.RetentionDays)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
