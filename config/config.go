// Package config has the configuration file for the app
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment stage the server runs in
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

func (e Environment) String() string { return string(e) }

// ParseEnvironment accepts the short names and their long aliases
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", s)
}

const (
	CatalogSourceMemory   = "memory"
	CatalogSourcePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes
	MaxImageBody      int64 // Maximum uploaded image size in bytes

	CatalogSource  string
	CatalogURL     string   // Remote TSV bundle base URL, empty uses the embedded seed
	CatalogRefresh []string // Daily reload times, "HH:MM"
	DatabaseURL    string

	RedisAddr      string
	SearchCacheTTL time.Duration

	OCRProvider   string
	TesseractPath string
	TesseractLang string

	MatchWorkers   int
	AnalyzeTimeout time.Duration

	CORSAllowedOrigins []string
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          strings.ToLower(getEnvWithDefault("LOG_LEVEL", "info")),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default
		MaxImageBody:      getInt64EnvWithDefault("MAX_IMAGE_BODY", 10485760),     // 10MB default

		CatalogSource:  strings.ToLower(getEnvWithDefault("CATALOG_SOURCE", CatalogSourceMemory)),
		CatalogURL:     os.Getenv("CATALOG_URL"),
		CatalogRefresh: getListEnvWithDefault("CATALOG_REFRESH", ";", []string{"06:00", "18:00"}),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		SearchCacheTTL: getDurationEnvWithDefault("SEARCH_CACHE_TTL", 10*time.Minute),

		OCRProvider:   strings.ToLower(getEnvWithDefault("OCR_PROVIDER", "none")),
		TesseractPath: os.Getenv("TESSERACT_PATH"),
		TesseractLang: getEnvWithDefault("TESSERACT_LANG", "kor+eng"),

		MatchWorkers:   getIntEnvWithDefault("MATCH_WORKERS", 8),
		AnalyzeTimeout: getDurationEnvWithDefault("ANALYZE_TIMEOUT", 5*time.Second),

		CORSAllowedOrigins: getListEnvWithDefault("CORS_ALLOWED_ORIGINS", ",", nil),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxImageBody, "MAX_IMAGE_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_IMAGE_BODY: %w", err)
	}

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validateCatalogSource(cfg.CatalogSource, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("invalid CATALOG_SOURCE: %w", err)
	}

	if err := validateCatalogURL(cfg.CatalogURL); err != nil {
		return fmt.Errorf("invalid CATALOG_URL: %w", err)
	}

	if err := validateRefreshTimes(cfg.CatalogRefresh); err != nil {
		return fmt.Errorf("invalid CATALOG_REFRESH: %w", err)
	}

	if err := validateCacheTTL(cfg.SearchCacheTTL); err != nil {
		return fmt.Errorf("invalid SEARCH_CACHE_TTL: %w", err)
	}

	if err := validateOCRProvider(cfg.OCRProvider); err != nil {
		return fmt.Errorf("invalid OCR_PROVIDER: %w", err)
	}

	if err := validateMatchWorkers(cfg.MatchWorkers); err != nil {
		return fmt.Errorf("invalid MATCH_WORKERS: %w", err)
	}

	if err := validateAnalyzeTimeout(cfg.AnalyzeTimeout); err != nil {
		return fmt.Errorf("invalid ANALYZE_TIMEOUT: %w", err)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Check for privileged ports
	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	// Check for private network ranges (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16)
	if !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 { // 1 year maximum
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateCatalogSource requires DATABASE_URL for the postgres source
func validateCatalogSource(source, databaseURL string) error {
	switch source {
	case CatalogSourceMemory:
		return nil
	case CatalogSourcePostgres:
		if databaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when CATALOG_SOURCE is postgres")
		}
		return nil
	}
	return fmt.Errorf("CATALOG_SOURCE must be one of: [memory postgres], got: %s", source)
}

func validateCatalogURL(raw string) error {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("CATALOG_URL is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("CATALOG_URL must use http or https, got: %s", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("CATALOG_URL has no host: %s", raw)
	}
	return nil
}

// validateRefreshTimes checks each entry is a 24h "HH:MM" clock time
func validateRefreshTimes(times []string) error {
	if len(times) == 0 {
		return fmt.Errorf("CATALOG_REFRESH needs at least one time")
	}
	for _, t := range times {
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("CATALOG_REFRESH entry %q is not HH:MM", t)
		}
	}
	return nil
}

func validateCacheTTL(ttl time.Duration) error {
	if ttl < time.Second {
		return fmt.Errorf("SEARCH_CACHE_TTL must be at least 1s, got: %s", ttl)
	}
	if ttl > 24*time.Hour {
		return fmt.Errorf("SEARCH_CACHE_TTL is too large (max 24h), got: %s", ttl)
	}
	return nil
}

func validateOCRProvider(provider string) error {
	switch provider {
	case "none", "tesseract", "gcp":
		return nil
	}
	return fmt.Errorf("OCR_PROVIDER must be one of: [none tesseract gcp], got: %s", provider)
}

func validateMatchWorkers(workers int) error {
	if workers < 1 || workers > 64 {
		return fmt.Errorf("MATCH_WORKERS must be between 1 and 64, got: %d", workers)
	}
	return nil
}

func validateAnalyzeTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("ANALYZE_TIMEOUT must be positive, got: %s", timeout)
	}
	if timeout > time.Minute {
		return fmt.Errorf("ANALYZE_TIMEOUT is too large (max 1m), got: %s", timeout)
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault parses Go durations ("10m", "5s"); invalid values fall back to the default
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getListEnvWithDefault splits a separated list, dropping blank entries
func getListEnvWithDefault(key, sep string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var list []string
	for _, item := range strings.Split(value, sep) {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"MAX_IMAGE_BODY",
		"CATALOG_SOURCE",
		"CATALOG_URL",
		"CATALOG_REFRESH",
		"DATABASE_URL",
		"REDIS_ADDR",
		"SEARCH_CACHE_TTL",
		"OCR_PROVIDER",
		"TESSERACT_PATH",
		"TESSERACT_LANG",
		"MATCH_WORKERS",
		"ANALYZE_TIMEOUT",
		"CORS_ALLOWED_ORIGINS",
	}
}
