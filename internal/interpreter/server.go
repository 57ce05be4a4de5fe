package interpreter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/nao1215/interpreter/internal/artifact"
	"github.com/nao1215/interpreter/internal/config"
	"github.com/nao1215/interpreter/internal/provider"
	"github.com/nao1215/interpreter/pkg/metrics"
	"github.com/nao1215/interpreter/pkg/middleware"
)

// serviceName はヘルスチェックで返すサービス名。
const serviceName = "interpreter"

const (
	// readHeaderTimeout はリクエストヘッダの読み込みに許容する時間。
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout はグレースフルシャットダウンで処理中のリクエストを待つ時間。
	shutdownTimeout = 15 * time.Second
)

// Dependencies はServerが利用する外部コンポーネント。
type Dependencies struct {
	// Logger はログの出力先。nilの場合はログを出力しない。
	Logger *zap.Logger
	// Metrics はPrometheusのメトリクス。nilの場合は計測せず /metrics も公開しない。
	Metrics *metrics.Metrics
	// Providers は翻訳・音声認識・音声合成の実装。
	Providers provider.Set
	// Store は合成した音声の保存先。
	Store artifact.Store
}

// Server は通訳ゲートウェイのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバーの設定。
	cfg config.Config
	// logger は構造化ロガー。
	logger *zap.Logger
	// metrics はnilの場合がある。
	metrics *metrics.Metrics
	// providers は委譲先のcapability一式。
	providers provider.Set
	// store は音声アーティファクトの保存先。
	store artifact.Store
}

// NewServer は新しいServerを生成し、ルーティングを設定する。
func NewServer(cfg config.Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	// c.FormFileが使うマルチパートフォームの最大メモリ
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	s := &Server{
		router:    router,
		cfg:       cfg,
		logger:    logger,
		metrics:   deps.Metrics,
		providers: deps.Providers,
		store:     deps.Store,
	}
	// 429にもCORSヘッダを付けるためCORSの後に登録する
	if cfg.RateLimitPerMinute > 0 {
		router.Use(s.rateLimit())
	}
	s.setupRoutes()

	return s
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// プリフライト（CORSミドルウェアが先に応答する）
	s.router.OPTIONS("/translate", s.handlePreflight())
	s.router.OPTIONS("/transcribe", s.handlePreflight())

	// 上流APIを呼び出すエンドポイント（JWT_SECRET設定時は認証必須）
	api := s.router.Group("/")
	if s.cfg.JWTSecret != "" {
		api.Use(middleware.JWTAuth(s.cfg.JWTSecret))
	}
	{
		api.POST("/translate", s.handleTranslate())
		api.POST("/transcribe", s.handleTranscribe())
		api.GET("/voices", s.handleVoices())
	}

	// 音声の取得（認証不要 - audio要素から直接参照されるため）
	s.router.GET("/get-audio", s.handleLatestAudio())
	s.router.GET("/get-audio/:id", s.handleGetAudio())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName, "provider": s.providers.Name})
	})

	if s.metrics != nil && s.cfg.MetricsEnabled {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// rateLimit はクライアントIPごとにリクエスト数を制限するミドルウェアを返す。
// RateLimitTrustProxyが真の場合はX-Forwarded-For等のヘッダからIPを求める。
func (s *Server) rateLimit() gin.HandlerFunc {
	keyFunc := httprate.KeyByIP
	if s.cfg.RateLimitTrustProxy {
		keyFunc = httprate.KeyByRealIP
	}
	limiter := httprate.NewRateLimiter(
		s.cfg.RateLimitPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(keyFunc),
	)

	return func(c *gin.Context) {
		key, err := keyFunc(c.Request)
		if err != nil {
			s.logger.Error("レート制限のキー算出に失敗", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "内部エラーが発生しました"})
			return
		}
		if limiter.OnLimit(c.Writer, c.Request, key) {
			s.logger.Info("レート制限を超えました", zap.String("path", c.Request.URL.Path), zap.String("client", key))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "リクエストが多すぎます。しばらくしてから再度お試しください"})
			return
		}
		c.Next()
	}
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルに停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTPサーバーを起動します", zap.String("addr", srv.Addr), zap.String("provider", s.providers.Name))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
		s.logger.Info("HTTPサーバーを停止します")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
		}
		return nil
	}
}
