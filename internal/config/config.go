package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hitoshi/theforce/internal/database"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Remote (SWAPI)
	SWAPIBaseURL        string
	RemoteTimeout       time.Duration
	RemoteMaxSize       int64
	RemoteMaxConcurrent int
	RemoteRateLimit     float64
	RemoteRateBurst     int
	RemoteAllowPrivate  bool

	// Connectivity
	ConnectivityProbeInterval time.Duration

	// Session
	SessionTTL time.Duration

	// Rate Limit（req/min）
	RateLimitGeneral int

	// Logging
	LogLevel slog.Level

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

var defaults = map[string]any{
	"DATABASE_URL":                "sqlite://theforce.db",
	"SWAPI_BASE_URL":              "https://swapi.dev/api",
	"REMOTE_TIMEOUT":              "10s",
	"REMOTE_MAX_SIZE":             "1048576",
	"REMOTE_MAX_CONCURRENT":       "4",
	"REMOTE_RATE_LIMIT":           "5",
	"REMOTE_RATE_BURST":           "10",
	"REMOTE_ALLOW_PRIVATE":        "false",
	"CONNECTIVITY_PROBE_INTERVAL": "15s",
	"SESSION_TTL":                 "30m",
	"RATE_LIMIT_GENERAL":          "120",
	"LOG_LEVEL":                   "info",
	"SERVER_PORT":                 "8080",
	"CORS_ALLOWED_ORIGIN":         "*",
}

// Load は環境変数（およびCONFIG_FILEで指定された設定ファイル）からConfigを読み込む。
// 環境変数は設定ファイルより優先される。不正な値がある場合はエラーを返す。
func Load() (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	p := &parser{v: v}
	cfg := &Config{
		DatabaseURL:               strings.TrimSpace(v.GetString("DATABASE_URL")),
		SWAPIBaseURL:              strings.TrimRight(strings.TrimSpace(v.GetString("SWAPI_BASE_URL")), "/"),
		RemoteTimeout:             p.duration("REMOTE_TIMEOUT"),
		RemoteMaxSize:             p.int64("REMOTE_MAX_SIZE"),
		RemoteMaxConcurrent:       p.int("REMOTE_MAX_CONCURRENT"),
		RemoteRateLimit:           p.float("REMOTE_RATE_LIMIT"),
		RemoteRateBurst:           p.int("REMOTE_RATE_BURST"),
		RemoteAllowPrivate:        p.bool("REMOTE_ALLOW_PRIVATE"),
		ConnectivityProbeInterval: p.duration("CONNECTIVITY_PROBE_INTERVAL"),
		SessionTTL:                p.duration("SESSION_TTL"),
		RateLimitGeneral:          p.int("RATE_LIMIT_GENERAL"),
		LogLevel:                  p.level("LOG_LEVEL"),
		ServerPort:                strings.TrimSpace(v.GetString("SERVER_PORT")),
		CORSAllowedOrigin:         strings.TrimSpace(v.GetString("CORS_ALLOWED_ORIGIN")),
	}

	if err := cfg.validate(); err != nil {
		p.errs = append(p.errs, err)
	}
	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var invalid []string

	if _, err := database.DialectOf(c.DatabaseURL); err != nil {
		invalid = append(invalid, "DATABASE_URL")
	}
	if !strings.HasPrefix(c.SWAPIBaseURL, "http://") && !strings.HasPrefix(c.SWAPIBaseURL, "https://") {
		invalid = append(invalid, "SWAPI_BASE_URL")
	}
	if c.RemoteTimeout <= 0 {
		invalid = append(invalid, "REMOTE_TIMEOUT")
	}
	if c.RemoteMaxSize <= 0 {
		invalid = append(invalid, "REMOTE_MAX_SIZE")
	}
	if c.RemoteMaxConcurrent <= 0 {
		invalid = append(invalid, "REMOTE_MAX_CONCURRENT")
	}
	// 0はレート制限なし
	if c.RemoteRateLimit < 0 {
		invalid = append(invalid, "REMOTE_RATE_LIMIT")
	}
	if c.RemoteRateBurst <= 0 {
		invalid = append(invalid, "REMOTE_RATE_BURST")
	}
	if c.ConnectivityProbeInterval <= 0 {
		invalid = append(invalid, "CONNECTIVITY_PROBE_INTERVAL")
	}
	if c.SessionTTL <= 0 {
		invalid = append(invalid, "SESSION_TTL")
	}
	if c.RateLimitGeneral <= 0 {
		invalid = append(invalid, "RATE_LIMIT_GENERAL")
	}
	if c.ServerPort == "" {
		invalid = append(invalid, "SERVER_PORT")
	}

	if len(invalid) > 0 {
		return fmt.Errorf("設定値が不正です: %v", invalid)
	}
	return nil
}

// parser はviperの値を型変換し、変換できなかったキーを記録する。
type parser struct {
	v    *viper.Viper
	errs []error
}

func (p *parser) raw(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s の値 %q を解釈できません: %w", key, p.raw(key), err))
}

func (p *parser) duration(key string) time.Duration {
	d, err := time.ParseDuration(p.raw(key))
	if err != nil {
		p.fail(key, err)
	}
	return d
}

func (p *parser) int(key string) int {
	i, err := strconv.Atoi(p.raw(key))
	if err != nil {
		p.fail(key, err)
	}
	return i
}

func (p *parser) int64(key string) int64 {
	i, err := strconv.ParseInt(p.raw(key), 10, 64)
	if err != nil {
		p.fail(key, err)
	}
	return i
}

func (p *parser) float(key string) float64 {
	f, err := strconv.ParseFloat(p.raw(key), 64)
	if err != nil {
		p.fail(key, err)
	}
	return f
}

func (p *parser) bool(key string) bool {
	b, err := strconv.ParseBool(p.raw(key))
	if err != nil {
		p.fail(key, err)
	}
	return b
}

func (p *parser) level(key string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(p.raw(key))); err != nil {
		p.fail(key, err)
	}
	return l
}
