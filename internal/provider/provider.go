// Package provider は設定に応じてcapabilityの実装を組み立てる。
package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nao1215/interpreter/internal/capability"
	"github.com/nao1215/interpreter/internal/config"
	"github.com/nao1215/interpreter/internal/provider/google"
	"github.com/nao1215/interpreter/internal/provider/openai"
	"github.com/nao1215/interpreter/pkg/httpclient"
)

// Set はハンドラが使うcapabilityの実装一式。VoiceListerはnilの場合がある。
type Set struct {
	Name        string
	Translator  capability.Translator
	Recognizer  capability.Recognizer
	Synthesizer capability.Synthesizer
	VoiceLister capability.VoiceLister
}

// New はcfg.Providerに応じたSetを生成する。
// 各実装は呼び出しごとにログとメトリクスを記録するよう包まれる。obsはnilでもよい。
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, obs capability.Observer) (Set, error) {
	opts := httpclient.Options{
		Name:    cfg.Provider,
		Timeout: cfg.UpstreamTimeout,
		Logger:  logger,
	}

	var raw Set
	switch cfg.Provider {
	case config.ProviderGoogle:
		hc, err := httpclient.NewGoogle(ctx, opts, httpclient.CloudPlatformScope)
		if err != nil {
			return Set{}, err
		}
		p, err := google.New(ctx, hc)
		if err != nil {
			return Set{}, err
		}
		raw = Set{Name: google.Name, Translator: p, Recognizer: p, Synthesizer: p, VoiceLister: p}
	case config.ProviderOpenAI:
		p, err := openai.New(openai.Options{
			APIKey:           cfg.OpenAI.APIKey,
			TranslationModel: cfg.OpenAI.TranslationModel,
			HTTPClient:       httpclient.New(opts),
		})
		if err != nil {
			return Set{}, err
		}
		raw = Set{Name: openai.Name, Translator: p, Recognizer: p, Synthesizer: p}
	default:
		return Set{}, fmt.Errorf("未対応のプロバイダです: %q", cfg.Provider)
	}

	return Instrument(raw, logger, obs), nil
}

// Instrument はsの各実装を計測付きの実装で包む。
func Instrument(s Set, logger *zap.Logger, obs capability.Observer) Set {
	in := capability.Instrumentation{Provider: s.Name, Logger: logger, Observer: obs}
	return Set{
		Name:        s.Name,
		Translator:  in.Translator(s.Translator),
		Recognizer:  in.Recognizer(s.Recognizer),
		Synthesizer: in.Synthesizer(s.Synthesizer),
		VoiceLister: in.VoiceLister(s.VoiceLister),
	}
}
