// Package config は環境変数からゲートウェイの設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// プロバイダ名。
const (
	ProviderGoogle = "google"
	ProviderOpenAI = "openai"
)

// アーティファクトストアのバックエンド名。
const (
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
)

// Config はゲートウェイ全体の設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// Provider は翻訳・音声認識・音声合成を委譲するプロバイダ名。
	Provider string
	// OpenAI はOpenAIプロバイダの設定。
	OpenAI OpenAIConfig
	// UpstreamTimeout は上流APIへの1回の呼び出しのタイムアウト。
	UpstreamTimeout time.Duration
	// AllowedOrigins はCORSで許可するオリジン。"*" は全オリジン。
	AllowedOrigins []string
	// MaxUploadBytes は音声アップロードの上限バイト数。
	MaxUploadBytes int64
	// Artifact は音声アーティファクトストアの設定。
	Artifact ArtifactConfig
	// JWTSecret が空でない場合、API呼び出しにBearerトークンを要求する。
	JWTSecret string
	// RateLimitPerMinute はIPアドレスごとの1分あたりのリクエスト上限。0で無効。
	RateLimitPerMinute int
	// RateLimitTrustProxy が真の場合、プロキシが付与するX-Forwarded-For等からクライアントIPを求める。
	RateLimitTrustProxy bool
	// MetricsEnabled が真の場合 /metrics を公開する。
	MetricsEnabled bool
	// LogDevelopment が真の場合は開発用のコンソールログを使う。
	LogDevelopment bool
}

// OpenAIConfig はOpenAIプロバイダの設定。
type OpenAIConfig struct {
	APIKey           string
	TranslationModel string
}

// ArtifactConfig は音声アーティファクトストアの設定。
type ArtifactConfig struct {
	// Backend は "sqlite" または "s3"。
	Backend string
	// DBPath はSQLiteのDSN。
	DBPath string
	// TTL はアーティファクトの有効期間。
	TTL time.Duration
	// SweepInterval は失効したアーティファクトを削除する間隔。
	SweepInterval time.Duration
	// S3 はS3互換ストレージの設定。
	S3 S3Config
}

// S3Config はS3互換ストレージの接続設定。
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

// Load は環境変数から設定を読み込み、検証する。
func Load() (Config, error) {
	var errs []error

	cfg := Config{
		Port:     getEnvOr("PORT", "5000"),
		Provider: strings.ToLower(getEnvOr("PROVIDER", ProviderGoogle)),
		OpenAI: OpenAIConfig{
			APIKey:           os.Getenv("OPENAI_API_KEY"),
			TranslationModel: getEnvOr("OPENAI_TRANSLATION_MODEL", "gpt-4o-mini"),
		},
		AllowedOrigins: splitList(getEnvOr("ALLOWED_ORIGINS", "*")),
		Artifact: ArtifactConfig{
			Backend: strings.ToLower(getEnvOr("ARTIFACT_BACKEND", BackendSQLite)),
			DBPath:  getEnvOr("ARTIFACT_DB_PATH", ":memory:"),
			S3: S3Config{
				Endpoint:  os.Getenv("S3_ENDPOINT"),
				AccessKey: os.Getenv("S3_ACCESS_KEY"),
				SecretKey: os.Getenv("S3_SECRET_KEY"),
				Bucket:    os.Getenv("S3_BUCKET"),
				Region:    os.Getenv("S3_REGION"),
				Prefix:    getEnvOr("S3_PREFIX", "audio/"),
			},
		},
		JWTSecret: os.Getenv("JWT_SECRET"),
	}

	cfg.UpstreamTimeout = parseDuration("UPSTREAM_TIMEOUT", 30*time.Second, &errs)
	cfg.Artifact.TTL = parseDuration("ARTIFACT_TTL", 10*time.Minute, &errs)
	cfg.Artifact.SweepInterval = parseDuration("ARTIFACT_SWEEP_INTERVAL", time.Minute, &errs)
	cfg.MaxUploadBytes = int64(parseInt("MAX_UPLOAD_MB", 20, &errs)) << 20
	cfg.RateLimitPerMinute = parseInt("RATE_LIMIT_PER_MINUTE", 120, &errs)
	cfg.RateLimitTrustProxy = parseBool("RATE_LIMIT_TRUST_PROXY", true, &errs)
	cfg.Artifact.S3.UseSSL = parseBool("S3_USE_SSL", true, &errs)
	cfg.MetricsEnabled = parseBool("METRICS_ENABLED", true, &errs)
	cfg.LogDevelopment = parseBool("LOG_DEVELOPMENT", false, &errs)

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("設定の読み込みに失敗: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// Validate は設定値の組み合わせを検証する。
func (c Config) Validate() error {
	var errs []error

	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORTが数値ではありません: %q", c.Port))
	}

	switch c.Provider {
	case ProviderGoogle:
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("PROVIDER=openai にはOPENAI_API_KEYが必要です"))
		}
	default:
		errs = append(errs, fmt.Errorf("未対応のPROVIDERです: %q", c.Provider))
	}

	switch c.Artifact.Backend {
	case BackendSQLite:
		if c.Artifact.DBPath == "" {
			errs = append(errs, errors.New("ARTIFACT_DB_PATHが空です"))
		}
	case BackendS3:
		if c.Artifact.S3.Endpoint == "" || c.Artifact.S3.Bucket == "" {
			errs = append(errs, errors.New("ARTIFACT_BACKEND=s3 にはS3_ENDPOINTとS3_BUCKETが必要です"))
		}
	default:
		errs = append(errs, fmt.Errorf("未対応のARTIFACT_BACKENDです: %q", c.Artifact.Backend))
	}

	if c.Artifact.TTL <= 0 {
		errs = append(errs, errors.New("ARTIFACT_TTLは正の値である必要があります"))
	}
	if c.Artifact.SweepInterval <= 0 {
		errs = append(errs, errors.New("ARTIFACT_SWEEP_INTERVALは正の値である必要があります"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MBは正の値である必要があります"))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTEは0以上である必要があります"))
	}
	if len(c.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("ALLOWED_ORIGINSが空です"))
	}

	return errors.Join(errs...)
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// splitList はカンマ区切りの文字列を空要素を除いて分割する。
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%sの形式が不正です: %w", key, err))
		return def
	}
	return d
}

func parseInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%sの形式が不正です: %w", key, err))
		return def
	}
	return n
}

func parseBool(key string, def bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%sの形式が不正です: %w", key, err))
		return def
	}
	return b
}
