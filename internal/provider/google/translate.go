package google

import (
	"context"
	"errors"
	"fmt"

	translate "google.golang.org/api/translate/v2"

	"github.com/nao1215/interpreter/internal/capability"
)

// errEmptyTranslation は翻訳結果が1件も返らなかったことを表す。
var errEmptyTranslation = errors.New("翻訳結果が空です")

// Translate はCloud Translation v2でテキストを翻訳する。
// 結果はHTMLエスケープされたまま返る。
func (p *Provider) Translate(ctx context.Context, in capability.TranslateInput) (capability.TranslateOutput, error) {
	req := &translate.TranslateTextRequest{
		Q:      []string{in.Text},
		Target: in.Target,
		Source: in.Source,
	}

	res, err := p.translate.Translations.Translate(req).Context(ctx).Do()
	if err != nil {
		return capability.TranslateOutput{}, fmt.Errorf("翻訳APIの呼び出しに失敗: %w", err)
	}
	if len(res.Translations) == 0 || res.Translations[0] == nil {
		return capability.TranslateOutput{}, errEmptyTranslation
	}

	t := res.Translations[0]
	return capability.TranslateOutput{
		Text:           t.TranslatedText,
		DetectedSource: t.DetectedSourceLanguage,
	}, nil
}
