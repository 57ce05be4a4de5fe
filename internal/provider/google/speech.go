package google

import (
	"context"
	"encoding/base64"
	"fmt"

	speech "google.golang.org/api/speech/v1"

	"github.com/nao1215/interpreter/internal/capability"
)

// Recognize はSpeech-to-Text v1の同期認識で音声をテキストに変換する。
func (p *Provider) Recognize(ctx context.Context, in capability.RecognizeInput) (capability.RecognizeOutput, error) {
	req := &speech.RecognizeRequest{
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(in.Audio),
		},
		Config: &speech.RecognitionConfig{
			Encoding:        string(in.Encoding),
			SampleRateHertz: int64(in.SampleRateHertz),
			LanguageCode:    in.LanguageCode,
		},
	}

	res, err := p.speech.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		return capability.RecognizeOutput{}, fmt.Errorf("音声認識APIの呼び出しに失敗: %w", err)
	}

	out := capability.RecognizeOutput{Segments: make([]capability.Segment, 0, len(res.Results))}
	for _, r := range res.Results {
		if r == nil {
			continue
		}
		seg := capability.Segment{Alternatives: make([]string, 0, len(r.Alternatives))}
		for _, alt := range r.Alternatives {
			if alt == nil {
				continue
			}
			seg.Alternatives = append(seg.Alternatives, alt.Transcript)
		}
		out.Segments = append(out.Segments, seg)
	}
	return out, nil
}
