package config

// Settings holds runtime-editable application settings. Unlike the
// bootstrap Config these can change while the server runs; services
// read them per call through a Store.
type Settings struct {
	TMDB     TMDBSettings     `json:"tmdb" mapstructure:"tmdb"`
	Emby     EmbySettings     `json:"emby" mapstructure:"emby"`
	Organize OrganizeSettings `json:"organize" mapstructure:"organize"`
	Download DownloadSettings `json:"download" mapstructure:"download"`
	Naming   NamingSettings   `json:"naming" mapstructure:"naming"`
	Metadata MetadataSettings `json:"metadata" mapstructure:"metadata"`
	Jobs     JobSettings      `json:"jobs" mapstructure:"jobs"`
}

// TMDBSettings configures the metadata client.
type TMDBSettings struct {
	Token          string `json:"token" mapstructure:"token"`
	Language       string `json:"language" mapstructure:"language"`
	Proxy          string `json:"proxy" mapstructure:"proxy"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// EmbySettings configures the media-server conflict check.
type EmbySettings struct {
	Enabled           bool   `json:"enabled" mapstructure:"enabled"`
	ServerURL         string `json:"server_url" mapstructure:"server_url"`
	APIKey            string `json:"api_key" mapstructure:"api_key"`
	CheckBeforeScrape bool   `json:"check_before_scrape" mapstructure:"check_before_scrape"`
}

// OrganizeSettings configures file placement.
type OrganizeSettings struct {
	LibraryDir           string   `json:"library_dir" mapstructure:"library_dir"`
	MetadataDir          string   `json:"metadata_dir" mapstructure:"metadata_dir"`
	MinFileSizeMB        int      `json:"min_file_size_mb" mapstructure:"min_file_size_mb"`
	ExtWhitelist         []string `json:"ext_whitelist" mapstructure:"ext_whitelist"`
	NameBlacklist        []string `json:"name_blacklist" mapstructure:"name_blacklist"`
	SanitizeList         []string `json:"sanitize_list" mapstructure:"sanitize_list"`
	OverwriteVideo       bool     `json:"overwrite_video" mapstructure:"overwrite_video"`
	OverwriteImage       bool     `json:"overwrite_image" mapstructure:"overwrite_image"`
	DeleteMetadataOnFail bool     `json:"delete_metadata_on_fail" mapstructure:"delete_metadata_on_fail"`
}

// DownloadSettings configures artwork downloads.
type DownloadSettings struct {
	Poster   bool `json:"poster" mapstructure:"poster"`
	Thumb    bool `json:"thumb" mapstructure:"thumb"`
	Backdrop bool `json:"backdrop" mapstructure:"backdrop"`
}

// NamingSettings holds the placement templates.
type NamingSettings struct {
	SeriesFolder string `json:"series_folder" mapstructure:"series_folder"`
	SeasonFolder string `json:"season_folder" mapstructure:"season_folder"`
	EpisodeFile  string `json:"episode_file" mapstructure:"episode_file"`
}

// MetadataSettings controls NFO generation.
type MetadataSettings struct {
	ScrapeTitle bool `json:"scrape_title" mapstructure:"scrape_title"`
	ScrapePlot  bool `json:"scrape_plot" mapstructure:"scrape_plot"`
	NFOEnabled  bool `json:"nfo_enabled" mapstructure:"nfo_enabled"`
}

// JobSettings controls the manual job queue.
type JobSettings struct {
	RetentionDays int `json:"retention_days" mapstructure:"retention_days"`
}

// DefaultSettings returns the baseline runtime settings.
func DefaultSettings() Settings {
	return Settings{
		TMDB: TMDBSettings{
			Token:          EmbeddedTMDBKey,
			Language:       "zh-CN",
			TimeoutSeconds: 30,
		},
		Emby: EmbySettings{
			CheckBeforeScrape: true,
		},
		Organize: OrganizeSettings{
			MinFileSizeMB: 100,
		},
		Download: DownloadSettings{
			Poster: true,
			Thumb:  true,
		},
		Naming: NamingSettings{
			SeriesFolder: "{title} ({year}) [tmdbid-{tmdb_id}]",
			SeasonFolder: "Season {season}",
			EpisodeFile:  "{title} - S{season:02d}E{episode:02d} - {episode_title}",
		},
		Metadata: MetadataSettings{
			ScrapeTitle: true,
			ScrapePlot:  true,
			NFOEnabled:  true,
		},
		Jobs: JobSettings{
			RetentionDays: 30,
		},
	}
}
