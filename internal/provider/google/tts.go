package google

import (
	"context"
	"encoding/base64"
	"fmt"

	texttospeech "google.golang.org/api/texttospeech/v1"

	"github.com/nao1215/interpreter/internal/capability"
)

// Synthesize はText-to-Speech v1でテキストを音声に変換する。
// VoiceNameが空の場合はロケールの中性的な音声をサービス側に選ばせる。
func (p *Provider) Synthesize(ctx context.Context, in capability.SynthesizeInput) (capability.SynthesizeOutput, error) {
	voice := &texttospeech.VoiceSelectionParams{LanguageCode: in.LanguageCode}
	if in.VoiceName != "" {
		voice.Name = in.VoiceName
	} else {
		voice.SsmlGender = neutralGender
	}

	encoding := in.Encoding
	if encoding == "" {
		encoding = capability.EncodingMP3
	}

	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: in.Text},
		Voice: voice,
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding: string(encoding),
			SpeakingRate:  in.SpeakingRate,
		},
	}

	res, err := p.tts.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return capability.SynthesizeOutput{}, fmt.Errorf("音声合成APIの呼び出しに失敗: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(res.AudioContent)
	if err != nil {
		return capability.SynthesizeOutput{}, fmt.Errorf("音声データのデコードに失敗: %w", err)
	}

	return capability.SynthesizeOutput{
		Audio:       audio,
		ContentType: encoding.ContentType(),
	}, nil
}

// ListVoices はlanguageCodeで利用できる音声の一覧を返す。空の場合は全音声を返す。
func (p *Provider) ListVoices(ctx context.Context, languageCode string) ([]capability.Voice, error) {
	call := p.tts.Voices.List().Context(ctx)
	if languageCode != "" {
		call = call.LanguageCode(languageCode)
	}

	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("音声一覧の取得に失敗: %w", err)
	}

	voices := make([]capability.Voice, 0, len(res.Voices))
	for _, v := range res.Voices {
		if v == nil {
			continue
		}
		voices = append(voices, capability.Voice{
			Name:                   v.Name,
			LanguageCodes:          v.LanguageCodes,
			Gender:                 v.SsmlGender,
			NaturalSampleRateHertz: int(v.NaturalSampleRateHertz),
		})
	}
	return voices, nil
}
