package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-wide typed configuration, loaded once at startup.
type Config struct {
	// Task store / queue
	DatabaseURL string
	RedisURL    string

	// Object storage
	StorageURL        string
	StorageServiceKey string
	StorageBucket     string

	// Render geometry
	ReelWidth  int
	ReelHeight int
	FPS        int

	// Directories
	TempDir   string
	OutputDir string

	// FFmpeg
	FFmpegPreset  string
	FFmpegBitrate string
	FFmpegCRF     int
	FFmpegThreads int

	// Scene orchestrator
	SceneParallelLimit int
	KlingAIMaxInFlight int

	// Memory monitor
	EnableMemoryMonitoring   bool
	MemoryWarningThresholdMB   int
	MemoryCriticalThresholdMB  int
	MemoryEmergencyThresholdMB int
	MemoryCleanupCooldown      time.Duration
	MemoryMonitorInterval      time.Duration

	// Cache
	CacheDir             string
	EnableCacheClearing  bool
	CacheClearingAsync   bool

	// Providers
	OpenAIKey     string
	GeminiKey     string
	FreepikKey    string

	LumaAIKey       string
	KlingAIAccessKey string
	KlingAISecretKey string

	ElevenLabsKey     string
	ElevenLabsVoiceID string
	CartesiaKey       string
	CartesiaURL       string
	CartesiaVoiceID   string

	PixabayKey   string
	PexelsKey    string

	DefaultImageProvider string
	DefaultVideoProvider string

	BackgroundMusicPath string

	// Reconciler
	TaskTimeout           time.Duration
	ReconcileInterval     time.Duration
	NotifyWebhookURL      string
	LogURLBase            string

	// Admin HTTP surface
	APIPort       string
	BackendAPIKey string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),

		StorageURL:        getEnv("STORAGE_URL", ""),
		StorageServiceKey: getEnv("STORAGE_SERVICE_KEY", ""),
		StorageBucket:     getEnv("STORAGE_BUCKET", "rendered-videos"),

		ReelWidth:  getEnvInt("REEL_SIZE_W", 1080),
		ReelHeight: getEnvInt("REEL_SIZE_H", 1920),
		FPS:        getEnvInt("FPS", 30),

		TempDir:   getEnv("TEMP_DIR", os.TempDir()),
		OutputDir: getEnv("OUTPUT_DIR", ""),

		FFmpegPreset:  getEnv("FFMPEG_PRESET", "veryfast"),
		FFmpegBitrate: getEnv("FFMPEG_BITRATE", "4M"),
		FFmpegCRF:     getEnvInt("FFMPEG_CRF", 23),
		FFmpegThreads: getEnvInt("FFMPEG_THREADS", 0),

		SceneParallelLimit: getEnvInt("SCENE_PARALLEL_LIMIT", defaultParallelLimit()),
		KlingAIMaxInFlight: getEnvInt("KLINGAI_MAX_IN_FLIGHT", 3),

		EnableMemoryMonitoring:     getEnvBool("ENABLE_MEMORY_MONITORING", false),
		MemoryWarningThresholdMB:   getEnvInt("MEMORY_WARNING_THRESHOLD_MB", 1024),
		MemoryCriticalThresholdMB:  getEnvInt("MEMORY_CRITICAL_THRESHOLD_MB", 2048),
		MemoryEmergencyThresholdMB: getEnvInt("MEMORY_EMERGENCY_THRESHOLD_MB", 3072),
		MemoryCleanupCooldown:      getEnvDuration("MEMORY_CLEANUP_COOLDOWN", 30*time.Second),
		MemoryMonitorInterval:      getEnvDuration("MEMORY_MONITOR_INTERVAL", 10*time.Second),

		CacheDir:            getEnv("CACHE_DIR", ""),
		EnableCacheClearing: getEnvBool("ENABLE_CACHE_CLEARING", true),
		CacheClearingAsync:  getEnvBool("CACHE_CLEARING_ASYNC", true),

		OpenAIKey:  getEnv("OPENAI_API_KEY", ""),
		GeminiKey:  getEnv("GEMINI_API_KEY", ""),
		FreepikKey: getEnv("FREEPIK_API_KEY", ""),

		LumaAIKey:        getEnv("LUMAAI_API_KEY", ""),
		KlingAIAccessKey: getEnv("KLINGAI_ACCESS_KEY", ""),
		KlingAISecretKey: getEnv("KLINGAI_SECRET_KEY", ""),

		ElevenLabsKey:     getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID: getEnv("ELEVENLABS_VOICE_ID", ""),
		CartesiaKey:       getEnv("CARTESIA_API_KEY", ""),
		CartesiaURL:       getEnv("CARTESIA_API_URL", "https://api.cartesia.ai"),
		CartesiaVoiceID:   getEnv("CARTESIA_VOICE_ID", ""),

		PixabayKey: getEnv("PIXABAY_API_KEY", ""),
		PexelsKey:  getEnv("PEXELS_API_KEY", ""),

		DefaultImageProvider: getEnv("DEFAULT_IMAGE_PROVIDER", "openai"),
		DefaultVideoProvider: getEnv("DEFAULT_VIDEO_PROVIDER", "lumaai"),

		BackgroundMusicPath: getEnv("BACKGROUND_MUSIC_PATH", ""),

		TaskTimeout:       getEnvDuration("TASK_TIMEOUT", 30*time.Minute),
		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 15*time.Minute),
		NotifyWebhookURL:  getEnv("NOTIFY_WEBHOOK_URL", ""),
		LogURLBase:        getEnv("LOG_URL_BASE", ""),

		APIPort:       getEnv("API_PORT", "8080"),
		BackendAPIKey: getEnv("BACKEND_API_KEY", ""),
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = cfg.TempDir
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = fmt.Sprintf("%s/artifact-cache", cfg.TempDir)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.StorageURL == "" || cfg.StorageServiceKey == "" {
		return nil, fmt.Errorf("STORAGE_URL and STORAGE_SERVICE_KEY are required")
	}
	if cfg.ElevenLabsKey == "" && cfg.CartesiaKey == "" {
		return nil, fmt.Errorf("either ELEVENLABS_API_KEY or CARTESIA_API_KEY is required for TTS")
	}
	if cfg.OpenAIKey == "" && cfg.GeminiKey == "" && cfg.FreepikKey == "" {
		return nil, fmt.Errorf("at least one of OPENAI_API_KEY, GEMINI_API_KEY, FREEPIK_API_KEY is required for image generation")
	}

	return cfg, nil
}

func defaultParallelLimit() int {
	if n := runtime.NumCPU(); n < 4 {
		return n
	}
	return 4
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
