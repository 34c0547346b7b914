package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/scangate.db"

	// Remote ticketing authority
	APIBaseURL    string
	APIToken      string
	RemoteTimeout time.Duration

	// Background loops
	ProbeInterval time.Duration // connectivity probe cadence
	SyncInterval  time.Duration // periodic reconciliation cadence
}

func FromEnv() Config {
	addr := getenvDefault("SCANGATE_HTTP_ADDR", ":8090")

	env := strings.ToLower(getenvDefault("SCANGATE_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	dbPath := getenvDefault("SCANGATE_DB_PATH", "./data/scangate.db")

	return Config{
		HTTPAddr: addr,
		Env:      env,
		DBPath:   dbPath,

		APIBaseURL:    getenvDefault("SCANGATE_API_BASE_URL", "http://localhost:8080"),
		APIToken:      os.Getenv("SCANGATE_API_TOKEN"),
		RemoteTimeout: getenvSeconds("SCANGATE_REMOTE_TIMEOUT_S", 10),

		ProbeInterval: getenvSeconds("SCANGATE_PROBE_INTERVAL_S", 15),
		SyncInterval:  getenvSeconds("SCANGATE_SYNC_INTERVAL_S", 60),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvSeconds(key string, def int) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return time.Duration(def) * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return time.Duration(def) * time.Second
	}
	return time.Duration(n) * time.Second
}
