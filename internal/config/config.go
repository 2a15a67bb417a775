// Package config loads service settings from environment variables.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	FeedSichuanURL string
	FeedICLURL     string
	FeedCEAURL     string
	FeedCENCURL    string

	PollInterval    time.Duration
	FetchTimeout    time.Duration
	DisplayDuration time.Duration
	FrameInterval   time.Duration
	ViewFitInterval time.Duration
	BannerFade      time.Duration

	HomeLat  float64
	HomeLon  float64
	HomeZoom float64

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka publishing is optional; empty brokers disables it.
	KafkaBrokers    []string
	KafkaAlertTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	pollInterval, err := parseDuration("POLL_INTERVAL", "5s")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "4s")
	if err != nil {
		return nil, err
	}
	displayDuration, err := parseDuration("DISPLAY_DURATION", "600s")
	if err != nil {
		return nil, err
	}
	frameInterval, err := parseDuration("FRAME_INTERVAL", "100ms")
	if err != nil {
		return nil, err
	}
	fitInterval, err := parseDuration("VIEW_FIT_INTERVAL", "500ms")
	if err != nil {
		return nil, err
	}
	bannerFade, err := parseDuration("BANNER_FADE", "2s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	homeLat, err := parseFloat("HOME_LAT", "30.66")
	if err != nil {
		return nil, err
	}
	homeLon, err := parseFloat("HOME_LON", "104.07")
	if err != nil {
		return nil, err
	}
	homeZoom, err := parseFloat("HOME_ZOOM", "7")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		FeedSichuanURL: envOrDefault("FEED_SC_URL", "https://api.wolfx.jp/sc_eew.json"),
		FeedICLURL:     envOrDefault("FEED_ICL_URL", "https://mobile-new.chinaeew.cn/v1/earlywarnings"),
		FeedCEAURL:     envOrDefault("FEED_CEA_URL", "https://api.wolfx.jp/cea_eew.json"),
		FeedCENCURL:    envOrDefault("FEED_CENC_URL", "https://news.data.cea.cn/quakenews"),

		PollInterval:    pollInterval,
		FetchTimeout:    fetchTimeout,
		DisplayDuration: displayDuration,
		FrameInterval:   frameInterval,
		ViewFitInterval: fitInterval,
		BannerFade:      bannerFade,

		HomeLat:  homeLat,
		HomeLon:  homeLon,
		HomeZoom: homeZoom,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:    parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaAlertTopic: envOrDefault("KAFKA_ALERT_TOPIC", "eew-alert-events"),
	}

	if cfg.FetchTimeout >= cfg.PollInterval {
		return nil, errors.New("FETCH_TIMEOUT must be shorter than POLL_INTERVAL")
	}
	if cfg.ViewFitInterval < cfg.FrameInterval {
		return nil, errors.New("VIEW_FIT_INTERVAL must be at least FRAME_INTERVAL")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether lifecycle events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parseFloat(key, fallback string) (float64, error) {
	f, err := strconv.ParseFloat(envOrDefault(key, fallback), 64)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return f, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
