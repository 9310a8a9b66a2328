// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database     DatabaseConfig     `json:"database"`
	Server       ServerConfig       `json:"server"`
	Security     SecurityConfig     `json:"security"`
	Billing      BillingConfig      `json:"billing"`
	Notification NotificationConfig `json:"notification"`
	SMS          SMSConfig          `json:"sms"`
	Email        EmailConfig        `json:"email"`
	Logging      LoggingConfig      `json:"logging"`
	Metrics      MetricsConfig      `json:"metrics"`
	Cache        CacheConfig        `json:"cache"`
	Deployment   DeploymentConfig   `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	EnablePprof       bool          `json:"enable_pprof"`
	EnableMetrics     bool          `json:"enable_metrics"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
	CompressionLevel  int           `json:"compression_level"`
}

type SecurityConfig struct {
	// TLS/HTTPS
	TLSEnabled         bool   `json:"tls_enabled"`
	TLSCertFile        string `json:"tls_cert_file"`
	TLSKeyFile         string `json:"tls_key_file"`
	TLSMinVersion      string `json:"tls_min_version"`
	HSTSMaxAge         int    `json:"hsts_max_age"`
	HSTSIncludeSubDoms bool   `json:"hsts_include_subdomains"`
	HSTSPreload        bool   `json:"hsts_preload"`

	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per minute
	RateLimitWindow time.Duration `json:"rate_limit_window"`
	RateLimitMemory int           `json:"rate_limit_memory"` // MB

	// Content Security
	CSPPolicy           string `json:"csp_policy"`
	XFrameOptions       string `json:"x_frame_options"`
	XContentTypeOptions string `json:"x_content_type_options"`
	XSSProtection       string `json:"xss_protection"`
	ReferrerPolicy      string `json:"referrer_policy"`

	// API Security
	RequireAPIKey  bool     `json:"require_api_key"`
	APIKeyHeader   string   `json:"api_key_header"`
	AllowedAPIKeys []string `json:"allowed_api_keys"`
	IPWhitelist    []string `json:"ip_whitelist"`
	IPBlacklist    []string `json:"ip_blacklist"`
}

// BillingConfig drives the billing scheduler and event processor
type BillingConfig struct {
	// LookbackWindow is how far back each detection pass scans the call feed
	LookbackWindow time.Duration `json:"lookback_window"`
	// RefreshInterval is the per-user balance refresh cadence
	RefreshInterval time.Duration `json:"refresh_interval"`
	// DetectionInterval is the per-user billing pass cadence
	DetectionInterval time.Duration `json:"detection_interval"`
	// PassTimeout bounds one billing pass end to end
	PassTimeout time.Duration `json:"pass_timeout"`
	// EventBatchLimit caps the call events fetched per pass
	EventBatchLimit int `json:"event_batch_limit"`
	// RecoveryTimeout bounds one recording duration probe
	RecoveryTimeout time.Duration `json:"recovery_timeout"`
	// RecoveryEnabled toggles duration recovery probing entirely
	RecoveryEnabled bool `json:"recovery_enabled"`
}

// NotificationConfig drives the low balance notifier
type NotificationConfig struct {
	// DebounceWindow suppresses repeat alerts per user and bucket
	DebounceWindow time.Duration `json:"debounce_window"`
	// Channels enabled for delivery: email, sms
	EnableEmail bool `json:"enable_email"`
	EnableSMS   bool `json:"enable_sms"`
	// OpsEmail receives fatal ledger inconsistency reports
	OpsEmail string `json:"ops_email"`
}

type SMSConfig struct {
	ProviderDomain string        `json:"provider_domain"`
	APIKey         string        `json:"api_key"`
	SourceNumber   string        `json:"source_number"`
	RetryCount     int           `json:"retry_count"`
	ValidityPeriod int           `json:"validity_period"`
	Timeout        time.Duration `json:"timeout"`
}

type EmailConfig struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	Username      string        `json:"username"`
	Password      string        `json:"password"`
	FromEmail     string        `json:"from_email"`
	FromName      string        `json:"from_name"`
	UseTLS        bool          `json:"use_tls"`
	UseSTARTTLS   bool          `json:"use_starttls"`
	RateLimit     int           `json:"rate_limit"` // Emails per minute
	RetryAttempts int           `json:"retry_attempts"`
	Timeout       time.Duration `json:"timeout"`
}

type LoggingConfig struct {
	Level            string `json:"level"`  // debug, info, warn, error
	Format           string `json:"format"` // json, text
	Output           string `json:"output"` // stdout, file, both
	FilePath         string `json:"file_path"`
	MaxSize          int    `json:"max_size"` // MB
	MaxBackups       int    `json:"max_backups"`
	MaxAge           int    `json:"max_age"` // days
	Compress         bool   `json:"compress"`
	EnableCaller     bool   `json:"enable_caller"`
	EnableStacktrace bool   `json:"enable_stacktrace"`

	// Access Logs
	EnableAccessLog bool   `json:"enable_access_log"`
	AccessLogPath   string `json:"access_log_path"`
	AccessLogFormat string `json:"access_log_format"`

	// Audit Logs
	EnableAuditLog bool   `json:"enable_audit_log"`
	AuditLogPath   string `json:"audit_log_path"`
}

type MetricsConfig struct {
	Enabled     bool   `json:"enabled"`
	Port        int    `json:"port"`
	Path        string `json:"path"`
	EnablePprof bool   `json:"enable_pprof"`
	PprofPort   int    `json:"pprof_port"`

	// Prometheus
	EnablePrometheus bool   `json:"enable_prometheus"`
	PrometheusPath   string `json:"prometheus_path"`

	// Custom Metrics
	CollectDBMetrics  bool `json:"collect_db_metrics"`
	CollectAppMetrics bool `json:"collect_app_metrics"`
}

type CacheConfig struct {
	Enabled         bool          `json:"enabled"`
	Provider        string        `json:"provider"` // redis, memory
	RedisURL        string        `json:"redis_url"`
	RedisDB         int           `json:"redis_db"`
	RedisPrefix     string        `json:"redis_prefix"`
	DefaultTTL      time.Duration `json:"default_ttl"`
	MaxMemory       int           `json:"max_memory"` // MB
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

type DeploymentConfig struct {
	// Domain Configuration
	Domain           string `json:"domain"`
	APIDomain        string `json:"api_domain"`
	MonitoringDomain string `json:"monitoring_domain"`

	// Additional Security
	RedisPassword string `json:"redis_password"`

	// Build Information
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "postgres"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024), // 4MB
			EnablePprof:       getEnvBool("SERVER_ENABLE_PPROF", false),
			EnableMetrics:     getEnvBool("SERVER_ENABLE_METRICS", true),
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
			CompressionLevel:  getEnvInt("SERVER_COMPRESSION_LEVEL", 6),
		},
		Security: SecurityConfig{
			TLSEnabled:          getEnvBool("TLS_ENABLED", true),
			TLSCertFile:         getEnvString("TLS_CERT_FILE", "/etc/ssl/certs/vocalix.crt"),
			TLSKeyFile:          getEnvString("TLS_KEY_FILE", "/etc/ssl/private/vocalix.key"),
			TLSMinVersion:       getEnvString("TLS_MIN_VERSION", "1.3"),
			HSTSMaxAge:          getEnvInt("HSTS_MAX_AGE", 31536000), // 1 year
			HSTSIncludeSubDoms:  getEnvBool("HSTS_INCLUDE_SUBDOMAINS", true),
			HSTSPreload:         getEnvBool("HSTS_PRELOAD", true),
			AllowedOrigins:      getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"https://vocalix.io", "https://api.vocalix.io", "https://console.vocalix.io"}),
			AllowedMethods:      getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:      getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "X-Requested-With", "X-API-Key", "X-User-ID", "X-Admin-ID"}),
			AllowCredentials:    getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:          getEnvInt("CORS_MAX_AGE", 86400),
			GlobalRateLimit:     getEnvInt("GLOBAL_RATE_LIMIT", 2000),
			RateLimitWindow:     getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			RateLimitMemory:     getEnvInt("RATE_LIMIT_MEMORY", 64), // MB
			CSPPolicy:           getEnvString("CSP_POLICY", "default-src 'self'"),
			XFrameOptions:       getEnvString("X_FRAME_OPTIONS", "DENY"),
			XContentTypeOptions: getEnvString("X_CONTENT_TYPE_OPTIONS", "nosniff"),
			XSSProtection:       getEnvString("XSS_PROTECTION", "1; mode=block"),
			ReferrerPolicy:      getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
			RequireAPIKey:       getEnvBool("REQUIRE_API_KEY", false),
			APIKeyHeader:        getEnvString("API_KEY_HEADER", "X-API-Key"),
			AllowedAPIKeys:      getEnvStringSlice("ALLOWED_API_KEYS", []string{}),
			IPWhitelist:         getEnvStringSlice("IP_WHITELIST", []string{}),
			IPBlacklist:         getEnvStringSlice("IP_BLACKLIST", []string{}),
		},
		Billing: BillingConfig{
			LookbackWindow:    getEnvDuration("BILLING_LOOKBACK_WINDOW", 2*time.Hour),
			RefreshInterval:   getEnvDuration("BILLING_REFRESH_INTERVAL", 5*time.Second),
			DetectionInterval: getEnvDuration("BILLING_DETECTION_INTERVAL", 30*time.Second),
			PassTimeout:       getEnvDuration("BILLING_PASS_TIMEOUT", 2*time.Minute),
			EventBatchLimit:   getEnvInt("BILLING_EVENT_BATCH_LIMIT", 500),
			RecoveryTimeout:   getEnvDuration("BILLING_RECOVERY_TIMEOUT", 10*time.Second),
			RecoveryEnabled:   getEnvBool("BILLING_RECOVERY_ENABLED", true),
		},
		Notification: NotificationConfig{
			DebounceWindow: getEnvDuration("NOTIFICATION_DEBOUNCE_WINDOW", 30*time.Minute),
			EnableEmail:    getEnvBool("NOTIFICATION_ENABLE_EMAIL", true),
			EnableSMS:      getEnvBool("NOTIFICATION_ENABLE_SMS", false),
			OpsEmail:       getEnvString("NOTIFICATION_OPS_EMAIL", ""),
		},
		SMS: SMSConfig{
			ProviderDomain: getEnvString("SMS_PROVIDER_DOMAIN", "mock"),
			APIKey:         getEnvString("SMS_API_KEY", ""),
			SourceNumber:   getEnvString("SMS_SOURCE_NUMBER", ""),
			RetryCount:     getEnvInt("SMS_RETRY_COUNT", 3),
			ValidityPeriod: getEnvInt("SMS_VALIDITY_PERIOD", 300),
			Timeout:        getEnvDuration("SMS_TIMEOUT", 30*time.Second),
		},
		Email: EmailConfig{
			Host:          getEnvString("EMAIL_HOST", "smtp.gmail.com"),
			Port:          getEnvInt("EMAIL_PORT", 587),
			Username:      getEnvString("EMAIL_USERNAME", ""),
			Password:      getEnvString("EMAIL_PASSWORD", ""),
			FromEmail:     getEnvString("EMAIL_FROM_EMAIL", "billing@vocalix.io"),
			FromName:      getEnvString("EMAIL_FROM_NAME", "Vocalix Billing"),
			UseTLS:        getEnvBool("EMAIL_USE_TLS", true),
			UseSTARTTLS:   getEnvBool("EMAIL_USE_STARTTLS", true),
			RateLimit:     getEnvInt("EMAIL_RATE_LIMIT", 100),
			RetryAttempts: getEnvInt("EMAIL_RETRY_ATTEMPTS", 3),
			Timeout:       getEnvDuration("EMAIL_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:            getEnvString("LOG_LEVEL", "info"),
			Format:           getEnvString("LOG_FORMAT", "json"),
			Output:           getEnvString("LOG_OUTPUT", "file"),
			FilePath:         getEnvString("LOG_FILE_PATH", "/var/log/vocalix/app.log"),
			MaxSize:          getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:       getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:           getEnvInt("LOG_MAX_AGE", 30),
			Compress:         getEnvBool("LOG_COMPRESS", true),
			EnableCaller:     getEnvBool("LOG_ENABLE_CALLER", true),
			EnableStacktrace: getEnvBool("LOG_ENABLE_STACKTRACE", true),
			EnableAccessLog:  getEnvBool("LOG_ENABLE_ACCESS", true),
			AccessLogPath:    getEnvString("LOG_ACCESS_PATH", "/var/log/vocalix/access.log"),
			AccessLogFormat:  getEnvString("LOG_ACCESS_FORMAT", "combined"),
			EnableAuditLog:   getEnvBool("LOG_ENABLE_AUDIT", true),
			AuditLogPath:     getEnvString("LOG_AUDIT_PATH", "/var/log/vocalix/audit.log"),
		},
		Metrics: MetricsConfig{
			Enabled:           getEnvBool("METRICS_ENABLED", true),
			Port:              getEnvInt("METRICS_PORT", 9090),
			Path:              getEnvString("METRICS_PATH", "/metrics"),
			EnablePprof:       getEnvBool("METRICS_ENABLE_PPROF", false),
			PprofPort:         getEnvInt("METRICS_PPROF_PORT", 6060),
			EnablePrometheus:  getEnvBool("METRICS_ENABLE_PROMETHEUS", true),
			PrometheusPath:    getEnvString("METRICS_PROMETHEUS_PATH", "/prometheus"),
			CollectDBMetrics:  getEnvBool("METRICS_COLLECT_DB", true),
			CollectAppMetrics: getEnvBool("METRICS_COLLECT_APP", true),
		},
		Cache: CacheConfig{
			Enabled:         getEnvBool("CACHE_ENABLED", true),
			Provider:        getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:        getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:         getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:     getEnvString("CACHE_REDIS_PREFIX", "vocalix:"),
			DefaultTTL:      getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
			MaxMemory:       getEnvInt("CACHE_MAX_MEMORY", 256),
			CleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		},
		Deployment: DeploymentConfig{
			Domain:           getEnvString("DOMAIN", "vocalix.io"),
			APIDomain:        getEnvString("API_DOMAIN", "api.vocalix.io"),
			MonitoringDomain: getEnvString("MONITORING_DOMAIN", "monitoring.vocalix.io"),
			RedisPassword:    getEnvString("REDIS_PASSWORD", ""),
			Environment:      getEnvString("APP_ENV", "production"),
			Version:          getEnvString("VERSION", "1.0.0"),
			CommitHash:       getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:        getEnvString("BUILD_TIME", "unknown"),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	// Open .env file
	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	// Read file line by line
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Use standard library strings.Split and strings.TrimSpace
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}

	// Validate billing configuration
	if cfg.Billing.LookbackWindow <= 0 {
		errors = append(errors, "BILLING_LOOKBACK_WINDOW must be positive")
	}
	if cfg.Billing.RefreshInterval <= 0 {
		errors = append(errors, "BILLING_REFRESH_INTERVAL must be positive")
	}
	if cfg.Billing.DetectionInterval <= 0 {
		errors = append(errors, "BILLING_DETECTION_INTERVAL must be positive")
	}
	if cfg.Billing.DetectionInterval > cfg.Billing.LookbackWindow {
		errors = append(errors, "BILLING_DETECTION_INTERVAL must not exceed BILLING_LOOKBACK_WINDOW")
	}
	if cfg.Billing.PassTimeout <= 0 {
		errors = append(errors, "BILLING_PASS_TIMEOUT must be positive")
	}
	if cfg.Billing.EventBatchLimit <= 0 {
		errors = append(errors, "BILLING_EVENT_BATCH_LIMIT must be positive")
	}

	// Validate notification configuration
	if cfg.Notification.DebounceWindow <= 0 {
		errors = append(errors, "NOTIFICATION_DEBOUNCE_WINDOW must be positive")
	}

	// Validate SMS configuration if enabled
	if cfg.Notification.EnableSMS && cfg.SMS.ProviderDomain != "mock" {
		if cfg.SMS.APIKey == "" {
			errors = append(errors, "SMS_API_KEY is required for SMS provider")
		}
		if cfg.SMS.SourceNumber == "" {
			errors = append(errors, "SMS_SOURCE_NUMBER is required for SMS provider")
		}
	}

	// Validate email configuration if enabled
	if cfg.Notification.EnableEmail && cfg.Email.Host != "" {
		if cfg.Email.Username == "" {
			errors = append(errors, "EMAIL_USERNAME is required for email configuration")
		}
		if cfg.Email.Password == "" {
			errors = append(errors, "EMAIL_PASSWORD is required for email configuration")
		}
		if cfg.Email.FromEmail == "" {
			errors = append(errors, "EMAIL_FROM_EMAIL is required for email configuration")
		}
	}

	// Validate TLS configuration if enabled
	if cfg.Security.TLSEnabled {
		if cfg.Security.TLSCertFile == "" {
			errors = append(errors, "TLS_CERT_FILE is required when TLS is enabled")
		}
		if cfg.Security.TLSKeyFile == "" {
			errors = append(errors, "TLS_KEY_FILE is required when TLS is enabled")
		}
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		if cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
			errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
		}
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
