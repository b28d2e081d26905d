package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	FFmpegPath  string
	FFprobePath string

	// Default output audio parameters, overridable per request.
	SampleRate   int
	Channels     int
	AudioCodec   string
	AudioBitrate string // e.g., "192k"

	// Transition and filter defaults.
	SilenceSeconds      float64
	FadeSeconds         float64
	CompressionPreset   string
	CompressionEnabled  bool
	SwooshURL           string
	StagingRoot         string // Parent of the per-run staging directories; empty means os.TempDir()
	FetchConcurrency    int
	FetchTimeout        time.Duration
	DiscoveryMaxResults int
	OutputFolder        string // Default remote folder for merged shows
	ChunkCleanupPrefix  string // Remote prefix of intermediate chunks removed after a merge

	// MinIO配置
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioRegion     string
	MinioUseSSL     bool
	MinioPublicURL  string // Base URL used to build public object links
	PresignedExpiry time.Duration

	// Redis配置
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MySQL配置
	DBEnabled  bool
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret  string
	ServerAddr string

	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() *Config {
	ffmpegPath := getEnv("FFMPEG_PATH", "ffmpeg")
	useSSL := getEnvBool("MINIO_USE_SSL", false)
	endpoint := getEnv("MINIO_ENDPOINT", "127.0.0.1:9000")

	return &Config{
		FFmpegPath:  ffmpegPath,
		FFprobePath: getEnv("FFPROBE_PATH", strings.Replace(ffmpegPath, "ffmpeg", "ffprobe", 1)),

		SampleRate:   getEnvInt("AUDIO_SAMPLE_RATE", 44100),
		Channels:     getEnvInt("AUDIO_CHANNELS", 2),
		AudioCodec:   getEnv("AUDIO_CODEC", "libmp3lame"),
		AudioBitrate: getEnv("AUDIO_BITRATE", "192k"),

		SilenceSeconds:      getEnvFloat("SILENCE_SECONDS", 0.3),
		FadeSeconds:         getEnvFloat("FADE_SECONDS", 0.15),
		CompressionPreset:   getEnv("COMPRESSION_PRESET", "normal"),
		CompressionEnabled:  getEnvBool("COMPRESSION_ENABLED", true),
		SwooshURL:           getEnv("SWOOSH_URL", ""),
		StagingRoot:         getEnv("STAGING_ROOT", ""),
		FetchConcurrency:    getEnvInt("FETCH_CONCURRENCY", 1),
		FetchTimeout:        getEnvDuration("FETCH_TIMEOUT", 5*time.Minute),
		DiscoveryMaxResults: getEnvInt("DISCOVERY_MAX_RESULTS", 500),
		OutputFolder:        getEnv("OUTPUT_FOLDER", "audio-webflow"),
		ChunkCleanupPrefix:  getEnv("CHUNK_CLEANUP_PREFIX", "FFmpeg-converter/"),

		MinioEndpoint:   endpoint,
		MinioAccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:  getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:     getEnv("MINIO_BUCKET", "showmerge"),
		MinioRegion:     getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:     useSSL,
		MinioPublicURL:  getEnv("MINIO_PUBLIC_URL", defaultPublicURL(endpoint, useSSL)),
		PresignedExpiry: getEnvDuration("MINIO_PRESIGNED_EXPIRY", time.Hour),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DBEnabled:  getEnvBool("DB_ENABLED", false),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "showmerge"),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		ServerAddr: getEnv("SERVER_ADDR", ":3000"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE_DAYS", 30),
	}
}

func defaultPublicURL(endpoint string, useSSL bool) string {
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}
