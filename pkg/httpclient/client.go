package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultTimeout は上流APIへの1回の呼び出しに許容する時間。
const DefaultTimeout = 30 * time.Second

// CloudPlatformScope はGoogle Cloud APIの共通OAuth2スコープ。
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Options はクライアント生成時の設定。
type Options struct {
	// Name はログに出力する接続先の名前（例: "google", "openai"）。
	Name string
	// Timeout はリクエスト全体のタイムアウト。0以下の場合はDefaultTimeoutを使う。
	Timeout time.Duration
	// Logger は通信ログの出力先。nilの場合はログを出力しない。
	Logger *zap.Logger
	// Base は実際の通信を行うRoundTripper。nilの場合はhttp.DefaultTransportを使う。
	Base http.RoundTripper
}

// New はタイムアウトと通信ログを備えたHTTPクライアントを生成する。
func New(opts Options) *http.Client {
	return &http.Client{
		Timeout:   opts.timeout(),
		Transport: newLoggingTransport(opts),
	}
}

// NewWithTokenSource はtsから取得したアクセストークンを付与するHTTPクライアントを生成する。
func NewWithTokenSource(ts oauth2.TokenSource, opts Options) *http.Client {
	return &http.Client{
		Timeout: opts.timeout(),
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, ts),
			Base:   newLoggingTransport(opts),
		},
	}
}

// NewGoogle はApplication Default Credentialsで認証するGoogle API用クライアントを生成する。
// 認証情報は GOOGLE_APPLICATION_CREDENTIALS、gcloudの設定、メタデータサーバーの順に探索される。
func NewGoogle(ctx context.Context, opts Options, scopes ...string) (*http.Client, error) {
	if len(scopes) == 0 {
		scopes = []string{CloudPlatformScope}
	}
	ts, err := google.DefaultTokenSource(ctx, scopes...)
	if err != nil {
		return nil, fmt.Errorf("Google認証情報の取得に失敗: %w", err)
	}
	if opts.Name == "" {
		opts.Name = "google"
	}
	return NewWithTokenSource(ts, opts), nil
}

// timeout は有効なタイムアウト値を返す。
func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}
