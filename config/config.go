package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds one run's settings for the fetcher, detector, and uploader.
type Config struct {
	BaseURL         string
	AppID           string
	GenreID         int
	MaxPages        int
	PageSize        int
	MinItems        int
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	FetchInterval   time.Duration
	UserAgent       string

	DataDir        string
	SurgeThreshold int
	DedupeMaxSize  int

	MetricsAddr string
	Verbose     bool

	Upload UploadConfig
}

// UploadConfig configures the optional object-store upload of the snapshot.
type UploadConfig struct {
	Enabled     bool
	Endpoint    string
	Bucket      string
	Prefix      string
	AccessKey   string
	SecretKey   string
	Region      string
	UseSSL      bool
	LatestAlias string
}

// DefaultConfig returns the defaults for the upstream ranking genre the tool
// was built around (suitcases). The ranking API caps pagination at 10 pages.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://app.rakuten.co.jp/services/api/IchibaItem/Ranking/20220601",
		AppID:           "",
		GenreID:         301577,
		MaxPages:        10,
		PageSize:        30,
		MinItems:        50,
		Timeout:         15 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    500 * time.Millisecond,
		RetryBackoffMax: 5 * time.Second,
		FetchInterval:   time.Second,
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		DataDir:         "data",
		SurgeThreshold:  5,
		DedupeMaxSize:   4096,
		MetricsAddr:     "",
		Verbose:         false,
		Upload: UploadConfig{
			LatestAlias: "rank_base_daily.csv",
		},
	}
}

// RequireAppID ensures the ranking API credential is present. Fetching
// needs it; a diff-only run does not. The credential is checked for presence
// only; validity surfaces as an API error.
func (c *Config) RequireAppID() error {
	if c.AppID == "" {
		return fmt.Errorf("application ID cannot be empty (set APP_ID)")
	}
	return nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.GenreID <= 0 {
		return fmt.Errorf("genre ID must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.MinItems < 0 {
		return fmt.Errorf("min items cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.FetchInterval < 0 {
		return fmt.Errorf("fetch interval cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if c.SurgeThreshold <= 0 {
		return fmt.Errorf("surge threshold must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe cache size must be positive")
	}
	if c.Upload.Enabled {
		if c.Upload.Endpoint == "" {
			return fmt.Errorf("upload endpoint cannot be empty when upload is enabled")
		}
		if c.Upload.Bucket == "" {
			return fmt.Errorf("upload bucket cannot be empty when upload is enabled")
		}
		if c.Upload.AccessKey == "" || c.Upload.SecretKey == "" {
			return fmt.Errorf("upload credentials cannot be empty when upload is enabled")
		}
		if c.Upload.LatestAlias == "" {
			return fmt.Errorf("upload latest alias cannot be empty when upload is enabled")
		}
	}

	return nil
}
