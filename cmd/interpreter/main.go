// 通訳ゲートウェイのエントリポイント。
// 翻訳・音声認識・音声合成をGoogle CloudまたはOpenAIに委譲するHTTPサーバーを起動する。
package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nao1215/interpreter/internal/artifact"
	"github.com/nao1215/interpreter/internal/config"
	"github.com/nao1215/interpreter/internal/interpreter"
	"github.com/nao1215/interpreter/internal/provider"
	"github.com/nao1215/interpreter/pkg/metrics"
)

func main() {
	os.Exit(execute())
}

// execute はサーバーを起動し、終了コードを返す。ロガーはreturn前に必ずSyncする。
func execute() int {
	// .env が無い環境（Cloud Runなど）では環境変数をそのまま使う
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf(".envの読み込みに失敗: %v", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("設定の読み込みに失敗: %v", err)
		return 1
	}

	logger, err := newLogger(cfg.LogDevelopment)
	if err != nil {
		log.Printf("ロガーの初期化に失敗: %v", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.LogDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("通訳ゲートウェイの起動に失敗", zap.Error(err))
		return 1
	}
	return 0
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	providers, err := provider.New(ctx, cfg, logger, m)
	if err != nil {
		return err
	}

	store, err := artifact.Open(ctx, cfg.Artifact, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("アーティファクトストアのクローズに失敗", zap.Error(err))
		}
	}()

	janitor := artifact.NewJanitor(store, cfg.Artifact.TTL, cfg.Artifact.SweepInterval, logger, m)
	janitor.Start(ctx)
	defer janitor.Stop()

	server := interpreter.NewServer(cfg, interpreter.Dependencies{
		Logger:    logger,
		Metrics:   m,
		Providers: providers,
		Store:     store,
	})
	return server.Run(ctx)
}

// newLogger はzapのロガーを生成する。本番ではJSON形式、開発時はコンソール形式で出力する。
func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
