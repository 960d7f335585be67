package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Store      StoreConfig
	Recognizer RecognizerConfig
	Detector   DetectorConfig
	Capture    CaptureConfig
	Mirror     MirrorConfig
	Web        WebConfig
}

type StoreConfig struct {
	DBPath string // SQLite database file
}

type RecognizerConfig struct {
	ModelPath           string  // trained sample bank (gob)
	LabelsPath          string  // label id -> display name map (yaml)
	ConfidenceThreshold float64 // distance scale, lower is stricter
	MinSamples          int     // usable frames required for enrollment
}

type DetectorConfig struct {
	CascadePath string  // binary pigo cascade asset
	MinSize     int     // smallest face side in pixels
	MaxSize     int     // largest face side in pixels
	ShiftFactor float64 // window shift as fraction of size
	ScaleFactor float64 // scale step between window sizes
	Quality     float64 // minimum cascade quality score
}

type CaptureConfig struct {
	TickInterval   time.Duration // recognition loop cadence
	SampleCount    int           // frames collected per enrollment session
	SampleInterval time.Duration // spacing between enrollment samples
}

type MirrorConfig struct {
	Enabled bool
	URL     string // remote attendance endpoint
	APIKey  string
}

type WebConfig struct {
	Host string
	Port int
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envBool parses boolean env values, falling back to the default on garbage.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return b
}

// envString returns the env value or a default when unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		Store: StoreConfig{
			DBPath: envString("FACEGATE_DB_PATH", "attendance.db"),
		},
		Recognizer: RecognizerConfig{
			ModelPath:           envString("FACEGATE_MODEL_PATH", "trained_faces.gob"),
			LabelsPath:          envString("FACEGATE_LABELS_PATH", "labels.yaml"),
			ConfidenceThreshold: envFloat("FACEGATE_CONFIDENCE_THRESHOLD", 65),
			MinSamples:          envInt("FACEGATE_MIN_SAMPLES", 5),
		},
		Detector: DetectorConfig{
			CascadePath: envString("FACEGATE_CASCADE_PATH", "facefinder"),
			MinSize:     envInt("FACEGATE_DETECT_MIN_SIZE", 50),
			MaxSize:     envInt("FACEGATE_DETECT_MAX_SIZE", 800),
			ShiftFactor: envFloat("FACEGATE_DETECT_SHIFT_FACTOR", 0.1),
			ScaleFactor: envFloat("FACEGATE_DETECT_SCALE_FACTOR", 1.1),
			Quality:     envFloat("FACEGATE_DETECT_QUALITY", 5.0),
		},
		Capture: CaptureConfig{
			TickInterval:   time.Duration(envInt("FACEGATE_TICK_INTERVAL_MS", 200)) * time.Millisecond,
			SampleCount:    envInt("FACEGATE_CAPTURE_SAMPLES", 30),
			SampleInterval: time.Duration(envInt("FACEGATE_CAPTURE_INTERVAL_MS", 50)) * time.Millisecond,
		},
		Mirror: MirrorConfig{
			Enabled: envBool("FACEGATE_MIRROR_ENABLED", false),
			URL:     os.Getenv("FACEGATE_MIRROR_URL"),
			APIKey:  os.Getenv("FACEGATE_MIRROR_API_KEY"),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
	}
}
