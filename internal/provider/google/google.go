// Package google はGoogle Cloud Translation / Speech-to-Text / Text-to-Speech の
// REST APIを使ってcapabilityの各インターフェースを実装する。
package google

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"
	texttospeech "google.golang.org/api/texttospeech/v1"
	translate "google.golang.org/api/translate/v2"

	"github.com/nao1215/interpreter/internal/capability"
)

// Name はメトリクスやヘルスチェックで使うプロバイダ名。
const Name = "google"

// neutralGender は音声名が指定されていない場合に選ぶ性別。
const neutralGender = "NEUTRAL"

// Provider はGoogle Cloudの3つのAPIクライアントをまとめて保持する。
type Provider struct {
	translate *translate.Service
	speech    *speech.Service
	tts       *texttospeech.Service
}

var (
	_ capability.Translator  = (*Provider)(nil)
	_ capability.Recognizer  = (*Provider)(nil)
	_ capability.Synthesizer = (*Provider)(nil)
	_ capability.VoiceLister = (*Provider)(nil)
)

// New はhcを使ってAPIクライアントを生成する。
// hcは認証済み（ADCのトークンを付与する）クライアントである必要がある。
// optsはテストで接続先を差し替えるために使う。
func New(ctx context.Context, hc *http.Client, opts ...option.ClientOption) (*Provider, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)

	tr, err := translate.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("Translationクライアントの生成に失敗: %w", err)
	}
	sp, err := speech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("Speech-to-Textクライアントの生成に失敗: %w", err)
	}
	tts, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("Text-to-Speechクライアントの生成に失敗: %w", err)
	}

	return &Provider{translate: tr, speech: sp, tts: tts}, nil
}
