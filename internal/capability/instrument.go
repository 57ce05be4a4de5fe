package capability

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// 計測時のcapabilityラベル。
const (
	NameTranslate  = "translate"
	NameRecognize  = "recognize"
	NameSynthesize = "synthesize"
	NameListVoices = "list_voices"
)

// Observer は上流呼び出し1回分の結果を受け取る。*metrics.Metrics が実装する。
type Observer interface {
	ObserveUpstream(provider, capability string, elapsed time.Duration, err error)
}

// Instrumentation は各capabilityの呼び出しをログとメトリクスに記録する。
type Instrumentation struct {
	Provider string
	Logger   *zap.Logger
	Observer Observer
}

// record は呼び出し結果を記録する。
func (in Instrumentation) record(capability string, start time.Time, err error, fields ...zap.Field) {
	elapsed := time.Since(start)
	if in.Observer != nil {
		in.Observer.ObserveUpstream(in.Provider, capability, elapsed, err)
	}
	if in.Logger == nil {
		return
	}

	fields = append(fields,
		zap.String("provider", in.Provider),
		zap.String("capability", capability),
		zap.Duration("elapsed", elapsed),
	)
	if err != nil {
		in.Logger.Error("上流APIの呼び出しに失敗", append(fields, zap.Error(err))...)
		return
	}
	in.Logger.Info("上流APIを呼び出しました", fields...)
}

// Translator はtを計測付きのTranslatorで包む。
func (in Instrumentation) Translator(t Translator) Translator {
	return &instrumentedTranslator{next: t, in: in}
}

// Recognizer はrを計測付きのRecognizerで包む。
func (in Instrumentation) Recognizer(r Recognizer) Recognizer {
	return &instrumentedRecognizer{next: r, in: in}
}

// Synthesizer はsを計測付きのSynthesizerで包む。
func (in Instrumentation) Synthesizer(s Synthesizer) Synthesizer {
	return &instrumentedSynthesizer{next: s, in: in}
}

// VoiceLister はvを計測付きのVoiceListerで包む。vがnilの場合はnilを返す。
func (in Instrumentation) VoiceLister(v VoiceLister) VoiceLister {
	if v == nil {
		return nil
	}
	return &instrumentedVoiceLister{next: v, in: in}
}

type instrumentedTranslator struct {
	next Translator
	in   Instrumentation
}

func (t *instrumentedTranslator) Translate(ctx context.Context, input TranslateInput) (TranslateOutput, error) {
	start := time.Now()
	out, err := t.next.Translate(ctx, input)
	t.in.record(NameTranslate, start, err,
		zap.String("target", input.Target),
		zap.Int("chars", len([]rune(input.Text))),
	)
	return out, err
}

type instrumentedRecognizer struct {
	next Recognizer
	in   Instrumentation
}

func (r *instrumentedRecognizer) Recognize(ctx context.Context, input RecognizeInput) (RecognizeOutput, error) {
	start := time.Now()
	out, err := r.next.Recognize(ctx, input)
	r.in.record(NameRecognize, start, err,
		zap.String("language", input.LanguageCode),
		zap.Int("bytes", len(input.Audio)),
		zap.Int("segments", len(out.Segments)),
	)
	return out, err
}

type instrumentedSynthesizer struct {
	next Synthesizer
	in   Instrumentation
}

func (s *instrumentedSynthesizer) Synthesize(ctx context.Context, input SynthesizeInput) (SynthesizeOutput, error) {
	start := time.Now()
	out, err := s.next.Synthesize(ctx, input)
	s.in.record(NameSynthesize, start, err,
		zap.String("language", input.LanguageCode),
		zap.String("voice", input.VoiceName),
		zap.Float64("rate", input.SpeakingRate),
		zap.Int("bytes", len(out.Audio)),
	)
	return out, err
}

type instrumentedVoiceLister struct {
	next VoiceLister
	in   Instrumentation
}

func (v *instrumentedVoiceLister) ListVoices(ctx context.Context, languageCode string) ([]Voice, error) {
	start := time.Now()
	voices, err := v.next.ListVoices(ctx, languageCode)
	v.in.record(NameListVoices, start, err,
		zap.String("language", languageCode),
		zap.Int("voices", len(voices)),
	)
	return voices, err
}
