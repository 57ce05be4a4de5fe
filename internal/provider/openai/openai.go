// Package openai はOpenAIのChat Completions / Whisper / TTS APIで
// capabilityのインターフェースを実装する。
//
// 音声一覧APIは提供されていないため capability.VoiceLister は実装しない。
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nao1215/interpreter/internal/capability"
)

// Name はメトリクスやヘルスチェックで使うプロバイダ名。
const Name = "openai"

// DefaultTranslationModel は翻訳に使う既定のモデル。
const DefaultTranslationModel = openai.GPT4oMini

// 話速の上下限。範囲外はAPIがエラーを返す。
const (
	minSpeed = 0.25
	maxSpeed = 4.0
)

// uploadName はWhisperに送るファイル名。拡張子から形式が判定される。
const uploadName = "audio.webm"

var errEmptyCompletion = errors.New("翻訳結果が空です")

// Options はProviderの生成オプション。
type Options struct {
	APIKey string
	// BaseURL はAPIの接続先。空の場合は公式のエンドポイントを使う。
	BaseURL string
	// TranslationModel は翻訳に使うチャットモデル。
	TranslationModel string
	// HTTPClient はAPI呼び出しに使うクライアント。nilの場合は既定のクライアントを使う。
	HTTPClient *http.Client
}

// Provider はOpenAI APIのクライアント。
type Provider struct {
	client           *openai.Client
	translationModel string
}

var (
	_ capability.Translator  = (*Provider)(nil)
	_ capability.Recognizer  = (*Provider)(nil)
	_ capability.Synthesizer = (*Provider)(nil)
)

// New はProviderを生成する。
func New(opts Options) (*Provider, error) {
	if opts.APIKey == "" {
		return nil, errors.New("OpenAIのAPIキーが設定されていません")
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	model := opts.TranslationModel
	if model == "" {
		model = DefaultTranslationModel
	}

	return &Provider{
		client:           openai.NewClientWithConfig(cfg),
		translationModel: model,
	}, nil
}

// Translate はチャットモデルにテキストを翻訳させる。
func (p *Provider) Translate(ctx context.Context, in capability.TranslateInput) (capability.TranslateOutput, error) {
	instruction := fmt.Sprintf(
		"Translate the user's message into the language with code %q. Reply with the translation only.",
		in.Target,
	)
	if in.Source != "" {
		instruction += fmt.Sprintf(" The message is written in the language with code %q.", in.Source)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.translationModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: in.Text},
		},
	})
	if err != nil {
		return capability.TranslateOutput{}, fmt.Errorf("翻訳APIの呼び出しに失敗: %w", err)
	}
	if len(resp.Choices) == 0 {
		return capability.TranslateOutput{}, errEmptyCompletion
	}

	return capability.TranslateOutput{
		Text:           strings.TrimSpace(resp.Choices[0].Message.Content),
		DetectedSource: in.Source,
	}, nil
}

// Recognize はWhisperで音声をテキストに変換する。結果は1区間として返す。
// Whisperはファイル形式を自前で判定するため、EncodingとSampleRateHertzは使わない。
func (p *Provider) Recognize(ctx context.Context, in capability.RecognizeInput) (capability.RecognizeOutput, error) {
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: uploadName,
		Reader:   bytes.NewReader(in.Audio),
		Language: whisperLanguage(in.LanguageCode),
	})
	if err != nil {
		return capability.RecognizeOutput{}, fmt.Errorf("音声認識APIの呼び出しに失敗: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return capability.RecognizeOutput{}, nil
	}
	return capability.RecognizeOutput{
		Segments: []capability.Segment{{Alternatives: []string{text}}},
	}, nil
}

// Synthesize はTTSモデルでテキストをMP3に変換する。
// LanguageCodeは使わない。モデルが入力テキストから判定する。
func (p *Provider) Synthesize(ctx context.Context, in capability.SynthesizeInput) (capability.SynthesizeOutput, error) {
	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          in.Text,
		Voice:          speechVoice(in.VoiceName),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          clampSpeed(in.SpeakingRate),
	})
	if err != nil {
		return capability.SynthesizeOutput{}, fmt.Errorf("音声合成APIの呼び出しに失敗: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return capability.SynthesizeOutput{}, fmt.Errorf("音声データの読み込みに失敗: %w", err)
	}

	return capability.SynthesizeOutput{
		Audio:       audio,
		ContentType: capability.EncodingMP3.ContentType(),
	}, nil
}

// whisperLanguage はBCP-47のロケールをISO-639-1の言語コードに変換する（"it-IT" → "it"）。
func whisperLanguage(code string) string {
	lang, _, _ := strings.Cut(code, "-")
	return strings.ToLower(lang)
}

// speechVoice はOpenAIが提供する音声名であればそれを、そうでなければalloyを返す。
func speechVoice(name string) openai.SpeechVoice {
	switch v := openai.SpeechVoice(strings.ToLower(name)); v {
	case openai.VoiceAlloy, openai.VoiceEcho, openai.VoiceFable,
		openai.VoiceOnyx, openai.VoiceNova, openai.VoiceShimmer:
		return v
	default:
		return openai.VoiceAlloy
	}
}

func clampSpeed(rate float64) float64 {
	switch {
	case rate <= 0:
		return 1.0
	case rate < minSpeed:
		return minSpeed
	case rate > maxSpeed:
		return maxSpeed
	default:
		return rate
	}
}
