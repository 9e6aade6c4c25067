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
	DBPath          string
	RawMailDir      string
	OutputDir       string
	LogMode         string
	MetricsTextfile string

	MinColumnConfidence float64
	MaxHeaderRows       int
	ChunkSize           int
	MaxSpreadsheetMB    int
	MaxUploadSheetMB    int
	MaxPDFMB            int

	BarcodePrefixes    []string
	BarcodeLength      int
	ExcelOnlyCapLegacy int
	ExcelOnlyCapRich   int

	CacheEntries       int
	CacheTTLSec        int
	CacheMemoryLimitMB int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string
	GmailRateLimitRPS int

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoExport   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:          getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir:      getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:       getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		LogMode:         getEnv("LOG_MODE", "dev"),
		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),

		MinColumnConfidence: getEnvFloat("MIN_COLUMN_CONFIDENCE", 0.6),
		MaxHeaderRows:       getEnvInt("MAX_HEADER_ROWS", 10),
		ChunkSize:           getEnvInt("CHUNK_SIZE", 1000),
		MaxSpreadsheetMB:    getEnvInt("MAX_SPREADSHEET_MB", 50),
		MaxUploadSheetMB:    getEnvInt("MAX_UPLOAD_SPREADSHEET_MB", 20),
		MaxPDFMB:            getEnvInt("MAX_PDF_MB", 50),

		BarcodePrefixes:    getEnvList("BARCODE_PREFIXES", []string{"3605168"}),
		BarcodeLength:      getEnvInt("BARCODE_LENGTH", 13),
		ExcelOnlyCapLegacy: getEnvInt("EXCEL_ONLY_CAP_LEGACY", 50),
		ExcelOnlyCapRich:   getEnvInt("EXCEL_ONLY_CAP_RICH", 100),

		CacheEntries:       getEnvInt("CACHE_ENTRIES", 32),
		CacheTTLSec:        getEnvInt("CACHE_TTL_SEC", 300),
		CacheMemoryLimitMB: getEnvInt("CACHE_MEMORY_LIMIT_MB", 512),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),
		GmailRateLimitRPS: getEnvInt("GMAIL_RATE_LIMIT_RPS", 5),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "gmail"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 30),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.MinColumnConfidence <= 0 || c.MinColumnConfidence > 1 {
		return fmt.Errorf("MIN_COLUMN_CONFIDENCE must be in (0,1], got %v", c.MinColumnConfidence)
	}
	for _, p := range c.BarcodePrefixes {
		for _, r := range p {
			if r < '0' || r > '9' {
				return fmt.Errorf("BARCODE_PREFIXES entry %q is not numeric", p)
			}
		}
		if c.BarcodeLength > 0 && len(p) >= c.BarcodeLength {
			return fmt.Errorf("BARCODE_PREFIXES entry %q is not shorter than BARCODE_LENGTH %d", p, c.BarcodeLength)
		}
	}
	if c.BarcodeLength < 0 || c.BarcodeLength > 14 {
		return fmt.Errorf("BARCODE_LENGTH must be between 0 and 14, got %d", c.BarcodeLength)
	}
	return nil
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

// getEnvList splits on commas; an explicitly empty value yields an empty list.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
