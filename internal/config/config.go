package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	RawDocDir string
	OutputDir string
	InboxDir  string

	RetailMarginPct    float64
	WholesaleMarginPct float64

	ServerAddr        string
	ServerMaxUploadMB int
	SessionTTLMin     int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	WatcherProvider     string
	WatcherLabel        string
	WatcherIntervalSec  int
	WatcherFetchMax     int
	WatcherProcessBatch int
	WatcherAutoExport   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawDocDir: getEnv("RAW_DOC_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		InboxDir:  getEnv("INBOX_DIR", filepath.Join(cwd, "inbox")),

		RetailMarginPct:    getEnvFloat("RETAIL_MARGIN_PCT", 45.0),
		WholesaleMarginPct: getEnvFloat("WHOLESALE_MARGIN_PCT", 15.0),

		ServerAddr:        getEnv("SERVER_ADDR", ":8080"),
		ServerMaxUploadMB: getEnvInt("SERVER_MAX_UPLOAD_MB", 32),
		SessionTTLMin:     getEnvInt("SESSION_TTL_MIN", 30),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		WatcherProvider:     getEnv("WATCHER_PROVIDER", "dir"),
		WatcherLabel:        getEnv("WATCHER_LABEL", "INBOX"),
		WatcherIntervalSec:  getEnvInt("WATCHER_INTERVAL_SEC", 30),
		WatcherFetchMax:     getEnvInt("WATCHER_FETCH_MAX", 20),
		WatcherProcessBatch: getEnvInt("WATCHER_PROCESS_BATCH", 20),
		WatcherAutoExport:   getEnvBool("WATCHER_AUTO_EXPORT", true),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
