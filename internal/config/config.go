package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	Storage    StorageConfig
	Fetch      FetchConfig
	Separation SeparationConfig
	FFmpeg     FFmpegConfig
	Callback   CallbackConfig
	Spotify    SpotifyConfig
	Publish    PublishConfig
	Paths      PathsConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	SeparatePerHour int
	SearchPerMin    int
}

// StorageConfig holds credentials for the S3-compatible artifact store.
type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	URLExpiryHours  int
}

// FetchConfig configures the external media-fetch tool (yt-dlp).
type FetchConfig struct {
	BinPath     string
	Proxy       string
	CookiesFile string
}

// SeparationConfig configures the external stem-separation engine.
type SeparationConfig struct {
	BinPath string
	Model   string
	Device  string
	Shifts  int
}

type FFmpegConfig struct {
	BinPath string
}

// CallbackConfig configures outbound webhook delivery.
type CallbackConfig struct {
	APIKey    string
	QueueSize int
}

type SpotifyConfig struct {
	ClientID         string
	ClientSecret     string
	PlaylistCacheTTL int // minutes
}

type PublishConfig struct {
	Concurrency int
}

// PathsConfig holds the local working directory roots. Each task works in its
// own subdirectory underneath these.
type PathsConfig struct {
	DownloadDir string
	OutputDir   string
	UploadDir   string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")
	readSecret("CALLBACK_API_KEY")
	readSecret("SPOTIFY_CLIENT_ID")
	readSecret("SPOTIFY_CLIENT_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = viper.BindEnv("storage.region", "STORAGE_REGION")
	_ = viper.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = viper.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("storage.bucket_name", "STORAGE_BUCKET_NAME")
	_ = viper.BindEnv("storage.url_expiry_hours", "STORAGE_URL_EXPIRY_HOURS")
	_ = viper.BindEnv("fetch.bin_path", "FETCH_BIN_PATH")
	_ = viper.BindEnv("fetch.proxy", "FETCH_PROXY")
	_ = viper.BindEnv("fetch.cookies_file", "FETCH_COOKIES_FILE")
	_ = viper.BindEnv("separation.bin_path", "SEPARATION_BIN_PATH")
	_ = viper.BindEnv("separation.model", "SEPARATION_MODEL")
	_ = viper.BindEnv("separation.device", "SEPARATION_DEVICE")
	_ = viper.BindEnv("separation.shifts", "SEPARATION_SHIFTS")
	_ = viper.BindEnv("ffmpeg.bin_path", "FFMPEG_BIN_PATH")
	_ = viper.BindEnv("callback.api_key", "CALLBACK_API_KEY")
	_ = viper.BindEnv("callback.queue_size", "CALLBACK_QUEUE_SIZE")
	_ = viper.BindEnv("spotify.client_id", "SPOTIFY_CLIENT_ID")
	_ = viper.BindEnv("spotify.client_secret", "SPOTIFY_CLIENT_SECRET")
	_ = viper.BindEnv("spotify.playlist_cache_ttl", "SPOTIFY_PLAYLIST_CACHE_TTL")
	_ = viper.BindEnv("publish.concurrency", "PUBLISH_CONCURRENCY")
	_ = viper.BindEnv("paths.download_dir", "DOWNLOAD_DIR")
	_ = viper.BindEnv("paths.output_dir", "OUTPUT_DIR")
	_ = viper.BindEnv("paths.upload_dir", "UPLOAD_DIR")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("ratelimit.separate_per_hour", 20)
	viper.SetDefault("ratelimit.search_per_min", 30)

	// Storage defaults
	viper.SetDefault("storage.region", "auto")
	viper.SetDefault("storage.bucket_name", "mp3files")
	viper.SetDefault("storage.url_expiry_hours", 1)

	// External tool defaults
	viper.SetDefault("fetch.bin_path", "yt-dlp")
	viper.SetDefault("fetch.cookies_file", "yt_dlp_cookies.txt")
	viper.SetDefault("separation.bin_path", "demucs")
	viper.SetDefault("separation.model", "htdemucs_6s")
	viper.SetDefault("separation.device", "cpu")
	viper.SetDefault("separation.shifts", 2)
	viper.SetDefault("ffmpeg.bin_path", "ffmpeg")

	// Callback defaults
	viper.SetDefault("callback.queue_size", 256)

	// Spotify defaults
	viper.SetDefault("spotify.playlist_cache_ttl", 15)

	// Publisher defaults
	viper.SetDefault("publish.concurrency", 5)

	// Working directory defaults
	viper.SetDefault("paths.download_dir", "temp_downloads")
	viper.SetDefault("paths.output_dir", "separated_output")
	viper.SetDefault("paths.upload_dir", "temp_uploads")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		RateLimit: RateLimitConfig{
			SeparatePerHour: viper.GetInt("ratelimit.separate_per_hour"),
			SearchPerMin:    viper.GetInt("ratelimit.search_per_min"),
		},
		Storage: StorageConfig{
			Endpoint:        viper.GetString("storage.endpoint"),
			Region:          viper.GetString("storage.region"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: viper.GetString("storage.secret_access_key"),
			BucketName:      viper.GetString("storage.bucket_name"),
			URLExpiryHours:  viper.GetInt("storage.url_expiry_hours"),
		},
		Fetch: FetchConfig{
			BinPath:     viper.GetString("fetch.bin_path"),
			Proxy:       viper.GetString("fetch.proxy"),
			CookiesFile: viper.GetString("fetch.cookies_file"),
		},
		Separation: SeparationConfig{
			BinPath: viper.GetString("separation.bin_path"),
			Model:   viper.GetString("separation.model"),
			Device:  viper.GetString("separation.device"),
			Shifts:  viper.GetInt("separation.shifts"),
		},
		FFmpeg: FFmpegConfig{
			BinPath: viper.GetString("ffmpeg.bin_path"),
		},
		Callback: CallbackConfig{
			APIKey:    viper.GetString("callback.api_key"),
			QueueSize: viper.GetInt("callback.queue_size"),
		},
		Spotify: SpotifyConfig{
			ClientID:         viper.GetString("spotify.client_id"),
			ClientSecret:     viper.GetString("spotify.client_secret"),
			PlaylistCacheTTL: viper.GetInt("spotify.playlist_cache_ttl"),
		},
		Publish: PublishConfig{
			Concurrency: viper.GetInt("publish.concurrency"),
		},
		Paths: PathsConfig{
			DownloadDir: viper.GetString("paths.download_dir"),
			OutputDir:   viper.GetString("paths.output_dir"),
			UploadDir:   viper.GetString("paths.upload_dir"),
		},
	}

	return cfg, nil
}
