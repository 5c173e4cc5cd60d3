// Package config defines service configuration structures and loading hooks.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":3030".
	Addr string `koanf:"addr"`

	// BeatmapsPath is the local directory for .osu files.
	BeatmapsPath string `koanf:"beatmaps_path"`

	// BeatmapsServiceURL enables remote beatmap fetching when non-empty.
	BeatmapsServiceURL string `koanf:"beatmaps_service_url"`

	// CacheSize bounds the in-memory beatmap cache.
	CacheSize int `koanf:"cache_size"`

	// ResultCacheSize bounds the fingerprint result cache; 0 disables it.
	ResultCacheSize int `koanf:"result_cache_size"`

	// EngineURL points at the difficulty-calculator sidecar.
	EngineURL string `koanf:"engine_url"`

	// DatabaseDSN is the MySQL data source name.
	DatabaseDSN string `koanf:"database_dsn"`

	// RedisAddr, RedisPassword, and RedisDB configure the redis client
	// shared by the pub/sub bus and the ranking store.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// RecalcPassedObjects forwards the derived passed-object count during
	// bulk recalculation.
	RecalcPassedObjects bool `koanf:"recalc_passed_objects"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":3030",
		BeatmapsPath:    ".data/osu",
		CacheSize:       1000,
		ResultCacheSize: 10_000,
		EngineURL:       "http://127.0.0.1:8085",
		DatabaseDSN:     "omajinai:omajinai@tcp(127.0.0.1:3306)/bancho",
		RedisAddr:       "127.0.0.1:6379",
	}
}
