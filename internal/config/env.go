// Package config handles environment-based configuration loading.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var tagPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// ValidTag reports whether s matches the Tag grammar shared with the
// archive package ([A-Za-z0-9-]+).
func ValidTag(s string) bool {
	return s != "" && tagPattern.MatchString(s)
}

// EnvConfig holds all environment-variable-driven settings.
type EnvConfig struct {
	ListenAddr string
	DataDir    string

	MaxmindAccountID   string
	MaxmindLicenceKey  string
	MaxmindBearerToken string
	MaxmindEditions    []string
	MaxmindDownloadURL string
	AutoUpdateInterval time.Duration
	HTTPClientTimeout  time.Duration
	LookupCacheEntries int
	DeferredGCPoll     time.Duration

	TzdataDownloadURL        string
	TzdataBearerToken        string
	TzdataAutoUpdateInterval time.Duration
	ZicPath                  string

	// Auth & UX knobs consumed by out-of-core collaborators (authentication
	// extractors, reCAPTCHA verification, the map UI) that this service does
	// not implement; carried here so operators configure them in one place.
	APIKey             string
	RecaptchaSiteKey   string
	RecaptchaSecretKey string
	OSMTilesURL        string
}

// DefaultDownloadURL is MaxMind's tar.gz distribution endpoint, templated on
// {edition}. Credentials travel as a header (bearer or basic), applied by
// the Refresher, not as a query parameter.
const DefaultDownloadURL = "https://download.maxmind.com/app/geoip_download?edition_id={edition}&suffix=tar.gz"

// DefaultEditions is used when MAXMIND_EDITIONS is unset.
var DefaultEditions = []string{"GeoLite2-City"}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	cfg.ListenAddr = envStr("LISTEN_ADDR", "127.0.0.1:8080")

	dataDir, hasDataDir := os.LookupEnv("DATA_DIR")
	if !hasDataDir || strings.TrimSpace(dataDir) == "" {
		errs = append(errs, "DATA_DIR is required")
	}
	cfg.DataDir = dataDir

	cfg.MaxmindAccountID = envStr("MAXMIND_ACCOUNT_ID", "")
	cfg.MaxmindLicenceKey = envStr("MAXMIND_LICENCE_KEY", "")
	cfg.MaxmindBearerToken = envStr("MAXMIND_BEARER_TOKEN", "")
	cfg.MaxmindEditions = envStringList("MAXMIND_EDITIONS", DefaultEditions)
	cfg.MaxmindDownloadURL = envStr("MAXMIND_DOWNLOAD_URL", DefaultDownloadURL)
	cfg.AutoUpdateInterval = time.Duration(envInt("AUTO_UPDATE_INTERVAL", 24, &errs)) * time.Hour
	cfg.HTTPClientTimeout = envDuration("HTTP_CLIENT_TIMEOUT", 60*time.Second, &errs)
	cfg.LookupCacheEntries = envInt("LOOKUP_CACHE_ENTRIES", 4096, &errs)
	cfg.DeferredGCPoll = envDuration("DEFERRED_GC_POLL_INTERVAL", 100*time.Millisecond, &errs)

	cfg.TzdataDownloadURL = envStr("TZDATA_DOWNLOAD_URL", "")
	cfg.TzdataBearerToken = envStr("TZDATA_BEARER_TOKEN", "")
	cfg.TzdataAutoUpdateInterval = envDuration("TZDATA_AUTO_UPDATE_INTERVAL", 0, &errs)
	cfg.ZicPath = envStr("ZIC_PATH", "")

	cfg.APIKey = envStr("API_KEY", "")
	cfg.RecaptchaSiteKey = envStr("RECAPTCHA_SITE_KEY", "")
	cfg.RecaptchaSecretKey = envStr("RECAPTCHA_SECRET_KEY", "")
	cfg.OSMTilesURL = envStr("OSM_TILES_URL", "")

	if len(cfg.MaxmindEditions) == 0 {
		errs = append(errs, "MAXMIND_EDITIONS must not resolve to an empty list")
	}
	for _, tag := range cfg.MaxmindEditions {
		if !ValidTag(tag) {
			errs = append(errs, fmt.Sprintf("MAXMIND_EDITIONS: invalid tag %q", tag))
		}
	}
	if cfg.AutoUpdateInterval <= 0 {
		errs = append(errs, "AUTO_UPDATE_INTERVAL must be positive")
	}
	if cfg.HTTPClientTimeout <= 0 {
		errs = append(errs, "HTTP_CLIENT_TIMEOUT must be positive")
	}
	if cfg.LookupCacheEntries <= 0 {
		errs = append(errs, "LOOKUP_CACHE_ENTRIES must be positive")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

// AutoUpdateEnabled reports whether any credential or explicit download URL
// override makes automatic refresh meaningful.
func (c *EnvConfig) AutoUpdateEnabled() bool {
	return c.MaxmindAccountID != "" || c.MaxmindBearerToken != "" || c.MaxmindDownloadURL != DefaultDownloadURL
}

// TzdataAutoUpdateEnabled mirrors the edition auto-update gate for the
// timezone builder: it needs both a download URL and a positive interval.
func (c *EnvConfig) TzdataAutoUpdateEnabled() bool {
	return c.TzdataDownloadURL != "" && c.TzdataAutoUpdateInterval > 0
}

// DefaultEdition is the first configured edition.
func (c *EnvConfig) DefaultEdition() string {
	if len(c.MaxmindEditions) == 0 {
		return ""
	}
	return c.MaxmindEditions[0]
}

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func envStringList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
