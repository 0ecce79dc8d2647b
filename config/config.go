package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Sensitive data never has defaults inside code and must be provided via the
// JSON config file or the environment; boot fails when required secrets are absent.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	RateLimitPerMinute int
	AllowedOrigins     []string
	WelcomeCredits     int
	DefaultCountry     string
	// Admin phone numbers (E.164). Admins bypass task debits and never
	// receive notifications.
	AdminPhones []string
	// Country access control
	AllowedCountry []string
	DenyCountry    []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis for caching, abuse counters and the message push channel
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Noupia mobile-money gateway
	NoupiaBaseURL      string
	NoupiaAPIKey       string
	NoupiaProductKey   string
	NoupiaSignature    string
	NoupiaWebhookEmail string
	CreditsPerUnit     int
	// TikTok business API
	TikTokClientKey    string
	TikTokClientSecret string
	TikTokAuthURL      string
	TikTokTokenURL     string
	TikTokAPIBaseURL   string
	TikTokRedirectBase string
	// SMTP for payment ops notifications
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      bool
	OpsEmail     string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Registration / login abuse control
	RegisterCaptchaEnabled     bool
	RegisterMaxPerIPPerDay     int
	RegisterAttemptCooldownSec int
	FailedMaxPerIPPerHour      int
	TempBanMinutes             int
	// APK distribution
	APKPath string
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
// Precedence: config/config.json -> defaults -> environment variable overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}
	// Payments are optional but never run on partial credentials.
	if (cfg.NoupiaAPIKey == "") != (cfg.NoupiaProductKey == "") {
		log.Fatal("NOUPIA_API_KEY and NOUPIA_PRODUCT_KEY must be set together")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// PaymentsEnabled reports whether the Noupia credentials are configured.
func (c AppConfig) PaymentsEnabled() bool {
	return c.NoupiaAPIKey != "" && c.NoupiaProductKey != ""
}

// TikTokEnabled reports whether TikTok OAuth credentials are configured.
func (c AppConfig) TikTokEnabled() bool {
	return c.TikTokClientKey != "" && c.TikTokClientSecret != ""
}

// IsAdminPhone reports whether the phone belongs to a configured admin.
func (c AppConfig) IsAdminPhone(phone string) bool {
	for _, p := range c.AdminPhones {
		if p == phone {
			return true
		}
	}
	return false
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.WelcomeCredits == 0 {
		c.WelcomeCredits = 150
	}
	if c.DefaultCountry == "" {
		c.DefaultCountry = "+237"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/gin.log"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBName == "" {
		c.DBName = "bestrong"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.NoupiaBaseURL == "" {
		c.NoupiaBaseURL = "https://api.noupia.com"
	}
	if c.NoupiaSignature == "" {
		c.NoupiaSignature = "np-live"
	}
	if c.CreditsPerUnit == 0 {
		c.CreditsPerUnit = 1
	}
	if c.TikTokAuthURL == "" {
		c.TikTokAuthURL = "https://business-api.tiktok.com/portal/auth"
	}
	if c.TikTokTokenURL == "" {
		c.TikTokTokenURL = "https://business-api.tiktok.com/open_api/v1.3/oauth2/access_token/"
	}
	if c.TikTokAPIBaseURL == "" {
		c.TikTokAPIBaseURL = "https://business-api.tiktok.com/open_api/v1.3"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/app.log"
	}
	if c.RegisterAttemptCooldownSec == 0 {
		c.RegisterAttemptCooldownSec = 10
	}
	if c.RegisterMaxPerIPPerDay == 0 {
		c.RegisterMaxPerIPPerDay = 10
	}
	if c.FailedMaxPerIPPerHour == 0 {
		c.FailedMaxPerIPPerHour = 20
	}
	if c.TempBanMinutes == 0 {
		c.TempBanMinutes = 60
	}
	if c.APKPath == "" {
		c.APKPath = "static/apk/BeStrong.apk"
	}
}

// loadJSONConfig reads the JSON file into cfg if present. Returns error only
// for invalid JSON. Supports grouped sections (app, database, redis, noupia,
// tiktok, smtp, log, register, admin).
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if s, ok := m[key].(string); ok {
			return s
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		switch t := m[key].(type) {
		case float64:
			return int(t)
		case int:
			return t
		case json.Number:
			i, _ := t.Int64()
			return int(i)
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		b, _ := m[key].(bool)
		return b
	}
	getStringSlice := func(m map[string]any, key string) []string {
		arr, ok := m[key].([]any)
		if !ok {
			return nil
		}
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}
	section := func(key string) map[string]any {
		m, _ := raw[key].(map[string]any)
		return m
	}

	if app := section("app"); app != nil {
		out.AppPort = getString(app, "AppPort")
		out.JWTSecret = getString(app, "JWTSecret")
		if v := getInt(app, "RateLimitPerMinute"); v != 0 {
			out.RateLimitPerMinute = v
		}
		if v := getInt(app, "WelcomeCredits"); v != 0 {
			out.WelcomeCredits = v
		}
		if v := getString(app, "DefaultCountry"); v != "" {
			out.DefaultCountry = v
		}
		if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
			out.AllowedOrigins = list
		}
		if list := getStringSlice(app, "AllowedCountry"); len(list) > 0 {
			out.AllowedCountry = list
		}
		if list := getStringSlice(app, "DenyCountry"); len(list) > 0 {
			out.DenyCountry = list
		}
		if v := getString(app, "APKPath"); v != "" {
			out.APKPath = v
		}
	}

	if g := section("gin"); g != nil {
		if v := getString(g, "Mode"); v != "" {
			out.GinMode = v
		}
		if v := getString(g, "LogPath"); v != "" {
			out.GinPath = v
		}
	}

	if dbs := section("database"); dbs != nil {
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
	}

	if rds := section("redis"); rds != nil {
		out.RedisHost = getString(rds, "RedisHost")
		if v := getInt(rds, "RedisPort"); v != 0 {
			out.RedisPort = v
		}
		if v := getInt(rds, "RedisDB"); v != 0 {
			out.RedisDB = v
		}
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if np := section("noupia"); np != nil {
		if v := getString(np, "BaseURL"); v != "" {
			out.NoupiaBaseURL = v
		}
		out.NoupiaAPIKey = getString(np, "APIKey")
		out.NoupiaProductKey = getString(np, "ProductKey")
		if v := getString(np, "Signature"); v != "" {
			out.NoupiaSignature = v
		}
		out.NoupiaWebhookEmail = getString(np, "WebhookEmail")
		if v := getInt(np, "CreditsPerUnit"); v != 0 {
			out.CreditsPerUnit = v
		}
	}

	if tt := section("tiktok"); tt != nil {
		out.TikTokClientKey = getString(tt, "ClientKey")
		out.TikTokClientSecret = getString(tt, "ClientSecret")
		if v := getString(tt, "AuthURL"); v != "" {
			out.TikTokAuthURL = v
		}
		if v := getString(tt, "TokenURL"); v != "" {
			out.TikTokTokenURL = v
		}
		if v := getString(tt, "APIBaseURL"); v != "" {
			out.TikTokAPIBaseURL = v
		}
		out.TikTokRedirectBase = getString(tt, "RedirectBase")
	}

	if sm := section("smtp"); sm != nil {
		out.SMTPHost = getString(sm, "SMTPHost")
		if v := getInt(sm, "SMTPPort"); v != 0 {
			out.SMTPPort = v
		}
		out.SMTPUsername = getString(sm, "SMTPUsername")
		out.SMTPPassword = getString(sm, "SMTPPassword")
		out.SMTPFrom = getString(sm, "SMTPFrom")
		out.SMTPFromName = getString(sm, "SMTPFromName")
		out.SMTPTLS = getBool(sm, "SMTPTLS")
		out.OpsEmail = getString(sm, "OpsEmail")
	}

	if lg := section("log"); lg != nil {
		if v := getString(lg, "Level"); v != "" {
			out.LogLevel = v
		}
		if v := getString(lg, "Path"); v != "" {
			out.LogPath = v
		}
		if v := getInt(lg, "MaxSizeMB"); v != 0 {
			out.LogMaxSizeMB = v
		}
		if v := getInt(lg, "MaxBackups"); v != 0 {
			out.LogMaxBackups = v
		}
		if v := getInt(lg, "MaxAgeDays"); v != 0 {
			out.LogMaxAgeDays = v
		}
		out.LogCompress = getBool(lg, "Compress")
	}

	if rg := section("register"); rg != nil {
		out.RegisterCaptchaEnabled = getBool(rg, "CaptchaEnabled")
		if v := getInt(rg, "MaxPerIPPerDay"); v != 0 {
			out.RegisterMaxPerIPPerDay = v
		}
		if v := getInt(rg, "AttemptCooldownSec"); v != 0 {
			out.RegisterAttemptCooldownSec = v
		}
		if v := getInt(rg, "FailedMaxPerIPPerHour"); v != 0 {
			out.FailedMaxPerIPPerHour = v
		}
		if v := getInt(rg, "TempBanMinutes"); v != 0 {
			out.TempBanMinutes = v
		}
	}

	if adm := section("admin"); adm != nil {
		if list := getStringSlice(adm, "Phones"); len(list) > 0 {
			out.AdminPhones = list
		}
	}

	return nil
}

func applyEnvOverrides(c *AppConfig) {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(dst *bool, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "1" || strings.EqualFold(v, "true")
		}
	}
	setList := func(dst *[]string, key string) {
		if v := os.Getenv(key); v != "" {
			parts := strings.Split(v, ",")
			out := parts[:0]
			for _, p := range parts {
				if s := strings.TrimSpace(p); s != "" {
					out = append(out, s)
				}
			}
			*dst = out
		}
	}

	setStr(&c.AppPort, "APP_PORT")
	setStr(&c.JWTSecret, "JWT_SECRET")
	setInt(&c.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE")
	setInt(&c.WelcomeCredits, "WELCOME_CREDITS")
	setStr(&c.DefaultCountry, "DEFAULT_COUNTRY")
	setList(&c.AllowedOrigins, "ALLOWED_ORIGINS")
	setList(&c.AllowedCountry, "ALLOWED_COUNTRY")
	setList(&c.DenyCountry, "DENY_COUNTRY")
	setList(&c.AdminPhones, "ADMIN_PHONES")
	setStr(&c.GinMode, "GIN_MODE")
	setStr(&c.GinPath, "GIN_LOG_PATH")
	setStr(&c.DatabaseURI, "DATABASE_URI")
	setStr(&c.DBHost, "DB_HOST")
	setStr(&c.DBPort, "DB_PORT")
	setStr(&c.DBUser, "DB_USER")
	setStr(&c.DBPassword, "DB_PASSWORD")
	setStr(&c.DBName, "DB_NAME")
	setStr(&c.RedisHost, "REDIS_HOST")
	setInt(&c.RedisPort, "REDIS_PORT")
	setInt(&c.RedisDB, "REDIS_DB")
	setStr(&c.RedisPassword, "REDIS_PASSWORD")
	setStr(&c.NoupiaBaseURL, "NOUPIA_BASE_URL")
	setStr(&c.NoupiaAPIKey, "NOUPIA_API_KEY")
	setStr(&c.NoupiaProductKey, "NOUPIA_PRODUCT_KEY")
	setStr(&c.NoupiaSignature, "NOUPIA_SIGNATURE")
	setStr(&c.NoupiaWebhookEmail, "NOUPIA_WEBHOOK_EMAIL")
	setInt(&c.CreditsPerUnit, "CREDITS_PER_UNIT")
	setStr(&c.TikTokClientKey, "TIKTOK_CLIENT_KEY")
	setStr(&c.TikTokClientSecret, "TIKTOK_CLIENT_SECRET")
	setStr(&c.TikTokAuthURL, "TIKTOK_AUTH_URL")
	setStr(&c.TikTokTokenURL, "TIKTOK_TOKEN_URL")
	setStr(&c.TikTokAPIBaseURL, "TIKTOK_API_BASE_URL")
	setStr(&c.TikTokRedirectBase, "TIKTOK_REDIRECT_BASE")
	setStr(&c.SMTPHost, "SMTP_HOST")
	setInt(&c.SMTPPort, "SMTP_PORT")
	setStr(&c.SMTPUsername, "SMTP_USERNAME")
	setStr(&c.SMTPPassword, "SMTP_PASSWORD")
	setStr(&c.SMTPFrom, "SMTP_FROM")
	setStr(&c.SMTPFromName, "SMTP_FROM_NAME")
	setBool(&c.SMTPTLS, "SMTP_TLS")
	setStr(&c.OpsEmail, "OPS_EMAIL")
	setStr(&c.LogLevel, "LOG_LEVEL")
	setStr(&c.LogPath, "LOG_PATH")
	setInt(&c.LogMaxSizeMB, "LOG_MAX_SIZE_MB")
	setInt(&c.LogMaxBackups, "LOG_MAX_BACKUPS")
	setInt(&c.LogMaxAgeDays, "LOG_MAX_AGE_DAYS")
	setBool(&c.LogCompress, "LOG_COMPRESS")
	setBool(&c.RegisterCaptchaEnabled, "REGISTER_CAPTCHA_ENABLED")
	setInt(&c.RegisterMaxPerIPPerDay, "REGISTER_MAX_PER_IP_PER_DAY")
	setInt(&c.RegisterAttemptCooldownSec, "REGISTER_ATTEMPT_COOLDOWN_SEC")
	setInt(&c.FailedMaxPerIPPerHour, "FAILED_MAX_PER_IP_PER_HOUR")
	setInt(&c.TempBanMinutes, "TEMP_BAN_MINUTES")
	setStr(&c.APKPath, "APK_PATH")
}
