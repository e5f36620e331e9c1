package config

const (
	defaultFileWatcherDelay    = 8
	defaultMaxBackdrops        = 3
	defaultMetadataRefreshDays = 30
	defaultTMDBBaseURL         = "https://api.themoviedb.org/3"
	defaultTMDBLanguage        = "en-US"
	defaultFanartBaseURL       = "https://webservice.fanart.tv/v3"
)

// NeedsRefresh error policies.
const (
	PolicyFailClosed = "fail_closed"
	PolicyFailOpen   = "fail_open"
)

// Default returns a ServerConfig populated with repository defaults.
func Default() ServerConfig {
	return ServerConfig{
		FileWatcherDelay:        defaultFileWatcherDelay,
		EnableRealtimeMonitor:   true,
		EnableInternetProviders: true,
		MaxBackdrops:            defaultMaxBackdrops,
		MetadataRefreshDays:     defaultMetadataRefreshDays,
		NeedsRefreshErrorPolicy: PolicyFailClosed,
		TMDB: TMDB{
			BaseURL:  defaultTMDBBaseURL,
			Language: defaultTMDBLanguage,
		},
		Fanart: Fanart{
			BaseURL: defaultFanartBaseURL,
		},
	}
}
