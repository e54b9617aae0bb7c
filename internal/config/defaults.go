package config

const (
	defaultConfigPath             = "~/.config/keepsake/config.toml"
	defaultBaseDir                = "~/archive"
	defaultDataDir                = "~/.local/share/keepsake"
	defaultTemplatesDir           = "~/.config/keepsake/templates"
	defaultDatabaseName           = "keepsake.db"
	defaultRegistryName           = "duplicates.json"
	defaultDownloaderBinary       = "yt-dlp"
	defaultNamingTemplate         = "%(title)s [%(id)s].%(ext)s"
	defaultDownloadTimeout        = 3600
	defaultMetadataTimeout        = 120
	defaultCheckIntervalMinutes   = 60
	defaultRequestsPerMinute      = 30
	defaultWatchIntervalMinutes   = 60
	defaultLivenessTimeoutSeconds = 5
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			BaseDir:      defaultBaseDir,
			DataDir:      defaultDataDir,
			TemplatesDir: defaultTemplatesDir,
		},
		Downloader: Downloader{
			Binary:                 defaultDownloaderBinary,
			NamingTemplate:         defaultNamingTemplate,
			TimeoutSeconds:         defaultDownloadTimeout,
			MetadataTimeoutSeconds: defaultMetadataTimeout,
		},
		Subscriptions: Subscriptions{
			CheckIntervalMinutes: defaultCheckIntervalMinutes,
			RequestsPerMinute:    defaultRequestsPerMinute,
			WatchIntervalMinutes: defaultWatchIntervalMinutes,
		},
		Liveness: Liveness{
			TimeoutSeconds: defaultLivenessTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
