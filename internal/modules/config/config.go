package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	backendURLENV     = "BACKEND_URL"
	backendWSENV      = "BACKEND_WS_URL"
)

// Config ...
type Config struct {
	Backend struct {
		BaseURL string `yaml:"base_url"` // http://127.0.0.1:9001
		WSURL   string `yaml:"ws_url"`   // ws://127.0.0.1:9001/ws
	} `yaml:"backend"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Health struct {
		Addr string `yaml:"addr"` // например ":8085"
	} `yaml:"health"`

	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`

	// Каталог session-scoped состояния (persisted viewport).
	StateDir string `yaml:"state_dir"`

	Debug bool `yaml:"debug"`

	// Snapshot Loader: потолок ретраев и фиксированная пауза между ними.
	SnapshotRetryLimit int
	SnapshotRetryDelay time.Duration
	SnapshotBarLimit   int

	// Transport: фикс. задержка reconnect (без backoff, без потолка) и keepalive.
	ReconnectDelay    time.Duration
	KeepaliveInterval time.Duration

	// Reconciler: допуск ретро-коррекции цены маркера и эпсилон сравнения open.
	OpenFixTolerance float64
	OpenEpsilon      float64

	// Render health: окно межкадровых дельт, порог jank по среднему, период repaint.
	FrameWindow     int
	JankThreshold   time.Duration
	RepaintInterval time.Duration

	// Countdown-аннотация обновляется раз в секунду.
	CountdownInterval time.Duration
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		SnapshotRetryLimit: intFromEnv("SNAPSHOT_RETRY_LIMIT", 30),
		SnapshotRetryDelay: durationFromEnv("SNAPSHOT_RETRY_DELAY", "1s"),
		SnapshotBarLimit:   intFromEnv("SNAPSHOT_BAR_LIMIT", 2000),

		ReconnectDelay:    durationFromEnv("RECONNECT_DELAY", "1s"),
		KeepaliveInterval: durationFromEnv("KEEPALIVE_INTERVAL", "15s"),

		OpenFixTolerance: floatFromEnv("OPEN_FIX_TOLERANCE", 0.01),
		OpenEpsilon:      floatFromEnv("OPEN_EPSILON", 1e-9),

		FrameWindow:     intFromEnv("FRAME_WINDOW", 60),
		JankThreshold:   durationFromEnv("JANK_THRESHOLD", "60ms"),
		RepaintInterval: durationFromEnv("REPAINT_INTERVAL", "16ms"),

		CountdownInterval: durationFromEnv("COUNTDOWN_INTERVAL", "1s"),
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	if config.Backend.BaseURL == "" {
		config.Backend.BaseURL = "http://127.0.0.1:9001"
	}
	if config.Backend.WSURL == "" {
		config.Backend.WSURL = "ws://127.0.0.1:9001/ws"
	}
	if config.Health.Addr == "" {
		config.Health.Addr = ":8085"
	}
	if config.StateDir == "" {
		config.StateDir = os.TempDir()
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}

	if v := os.Getenv(backendURLENV); v != "" {
		config.Backend.BaseURL = v
	}
	if v := os.Getenv(backendWSENV); v != "" {
		config.Backend.WSURL = v
	}

	return &config, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
