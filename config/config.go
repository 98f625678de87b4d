package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config contains all configuration for the application
type Config struct {
	// Server Configuration
	ServerPort string
	BaseURL    string // Base URL for building clip download links

	// Storage Configuration
	RecordingsPath  string // Base directory with per-camera segment directories
	VideosPath      string // Output directory for merged clips
	AnnotationsPath string // Output directory for annotation artifacts
	DatabasePath    string

	// Segment/Clip Configuration
	SegmentDuration     time.Duration // Fixed nominal duration of recorder segments
	GapTolerance        time.Duration // Max gap between adjacent selected segments
	DefaultLeadSeconds  int           // Seconds of footage before the reference timestamp
	DefaultTrailSeconds int           // Seconds of footage after the reference timestamp
	SourceTag           string        // Recording system tag written into annotations

	// Worker Configuration
	WorkerConcurrency int           // Max concurrent clip jobs
	FFmpegPath        string        // ffmpeg binary
	FFmpegTimeout     time.Duration // Per-job deadline for the concat step

	// R2 Storage Configuration (optional upload of finished clips)
	R2Enabled   bool
	R2AccessKey string
	R2SecretKey string
	R2AccountID string
	R2Bucket    string
	R2Region    string
	R2Endpoint  string
	R2BaseURL   string // Public URL for accessing uploaded files

	// Monitoring Configuration
	MonitorInterval time.Duration // Resource usage logging interval; 0 disables
}

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	cfg := Config{
		ServerPort:          getEnv("SERVER_PORT", "8000"),
		BaseURL:             getEnv("BASE_URL", "http://localhost:8000"),
		RecordingsPath:      getEnv("RECORDINGS_PATH", "./recordings"),
		VideosPath:          getEnv("VIDEOS_PATH", "./videos"),
		AnnotationsPath:     getEnv("ANNOTATIONS_PATH", "./annotations"),
		DatabasePath:        getEnv("DATABASE_PATH", "./data/clips.db"),
		SegmentDuration:     time.Duration(getEnvInt("SEGMENT_DURATION_SECONDS", 5)) * time.Second,
		DefaultLeadSeconds:  getEnvInt("DEFAULT_LEAD_SECONDS", 15),
		DefaultTrailSeconds: getEnvInt("DEFAULT_TRAIL_SECONDS", 5),
		SourceTag:           getEnv("SOURCE_TAG", "MediaMTX"),
		WorkerConcurrency:   getEnvInt("WORKER_CONCURRENCY", 3),
		FFmpegPath:          getEnv("FFMPEG_PATH", "ffmpeg"),
		FFmpegTimeout:       time.Duration(getEnvInt("FFMPEG_TIMEOUT_SECONDS", 300)) * time.Second,
		R2Enabled:           getEnvBool("R2_ENABLED", false),
		R2AccessKey:         getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey:         getEnv("R2_SECRET_KEY", ""),
		R2AccountID:         getEnv("R2_ACCOUNT_ID", ""),
		R2Bucket:            getEnv("R2_BUCKET", ""),
		R2Region:            getEnv("R2_REGION", "auto"),
		R2Endpoint:          getEnv("R2_ENDPOINT", ""),
		R2BaseURL:           getEnv("R2_BASE_URL", ""),
		MonitorInterval:     time.Duration(getEnvInt("MONITOR_INTERVAL_SECONDS", 60)) * time.Second,
	}

	// Gap tolerance defaults to one segment duration
	gapSeconds := getEnvInt("GAP_TOLERANCE_SECONDS", int(cfg.SegmentDuration.Seconds()))
	cfg.GapTolerance = time.Duration(gapSeconds) * time.Second

	log.Printf("Recordings path: %s", cfg.RecordingsPath)
	log.Printf("Segment duration: %s, gap tolerance: %s", cfg.SegmentDuration, cfg.GapTolerance)
	log.Printf("Server running on port %s with base URL %s", cfg.ServerPort, cfg.BaseURL)
	log.Printf("Worker concurrency: %d", cfg.WorkerConcurrency)
	log.Printf("R2 storage enabled: %v", cfg.R2Enabled)

	return cfg
}

// EnsurePaths creates necessary directories
func EnsurePaths(cfg Config) {
	for _, dir := range []string{
		cfg.VideosPath,
		cfg.AnnotationsPath,
		filepath.Dir(cfg.DatabasePath),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("Failed to create directory %s: %v", dir, err)
		}
	}
}

// getEnv returns environment variable or fallback value
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt returns an integer environment variable or fallback value
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Warning: invalid integer for %s: %q, using %d", key, value, fallback)
	}
	return fallback
}

// getEnvBool returns a boolean environment variable or fallback value
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Printf("Warning: invalid boolean for %s: %q, using %v", key, value, fallback)
	}
	return fallback
}
