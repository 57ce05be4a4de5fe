// Package capability は外部プロバイダに委譲する3つの機能
// （翻訳・音声認識・音声合成）のインターフェースと入出力型を定義する。
//
// ハンドラはこのパッケージのインターフェースだけに依存し、
// 具体的なプロバイダ（Google Cloud、OpenAIなど）やテスト用のフェイクを差し替えられる。
package capability

import (
	"context"
	"strings"
)

// AudioEncoding は音声データのエンコーディング。
type AudioEncoding string

const (
	// EncodingMP3 はMP3形式。音声合成の出力に使う。
	EncodingMP3 AudioEncoding = "MP3"
	// EncodingWebmOpus はWebMコンテナのOpus形式。ブラウザの録音データに使う。
	EncodingWebmOpus AudioEncoding = "WEBM_OPUS"
)

// ContentType はエンコーディングに対応するMIMEタイプを返す。
func (e AudioEncoding) ContentType() string {
	switch e {
	case EncodingMP3:
		return "audio/mp3"
	case EncodingWebmOpus:
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}

// TranslateInput は翻訳の入力。
type TranslateInput struct {
	// Text は翻訳対象のテキスト。
	Text string
	// Target は翻訳先の言語コード（例: "it", "fr"）。
	Target string
	// Source は翻訳元の言語コード。空の場合はプロバイダが自動判定する。
	Source string
}

// TranslateOutput は翻訳の結果。
type TranslateOutput struct {
	// Text は翻訳結果。プロバイダによってはHTMLエスケープされている。
	Text string
	// DetectedSource はプロバイダが判定した翻訳元の言語コード。
	DetectedSource string
}

// Translator はテキストを翻訳する。
type Translator interface {
	Translate(ctx context.Context, in TranslateInput) (TranslateOutput, error)
}

// RecognizeInput は音声認識の入力。
type RecognizeInput struct {
	Audio           []byte
	Encoding        AudioEncoding
	SampleRateHertz int
	LanguageCode    string
}

// Segment は認識された連続区間。Alternativesは確からしい順に並ぶ。
type Segment struct {
	Alternatives []string
}

// RecognizeOutput は音声認識の結果。
type RecognizeOutput struct {
	Segments []Segment
}

// Transcript は各区間の第一候補を、プロバイダが返した順に区切り文字なしで連結する。
// 候補を持たない区間は読み飛ばす。
func (o RecognizeOutput) Transcript() string {
	var b strings.Builder
	for _, s := range o.Segments {
		if len(s.Alternatives) == 0 {
			continue
		}
		b.WriteString(s.Alternatives[0])
	}
	return b.String()
}

// Recognizer は音声をテキストに変換する。
type Recognizer interface {
	Recognize(ctx context.Context, in RecognizeInput) (RecognizeOutput, error)
}

// SynthesizeInput は音声合成の入力。
type SynthesizeInput struct {
	// Text は読み上げるテキスト。
	Text string
	// LanguageCode は音声のロケール。
	LanguageCode string
	// VoiceName はプロバイダの音声名。空の場合はロケールの中性的な既定音声を使う。
	VoiceName string
	// SpeakingRate は話速。1.0が標準。
	SpeakingRate float64
	// Encoding は出力する音声のエンコーディング。
	Encoding AudioEncoding
}

// SynthesizeOutput は音声合成の結果。
type SynthesizeOutput struct {
	Audio       []byte
	ContentType string
}

// Synthesizer はテキストを音声に変換する。
type Synthesizer interface {
	Synthesize(ctx context.Context, in SynthesizeInput) (SynthesizeOutput, error)
}

// Voice はプロバイダが提供する音声。
type Voice struct {
	Name                   string   `json:"name"`
	LanguageCodes          []string `json:"languageCodes"`
	Gender                 string   `json:"gender"`
	NaturalSampleRateHertz int      `json:"naturalSampleRateHertz"`
}

// VoiceLister は利用可能な音声の一覧を返す。すべてのプロバイダが実装するわけではない。
type VoiceLister interface {
	ListVoices(ctx context.Context, languageCode string) ([]Voice, error)
}
