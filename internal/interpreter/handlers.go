package interpreter

import (
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nao1215/interpreter/internal/artifact"
	"github.com/nao1215/interpreter/internal/capability"
)

const (
	// defaultSpeed は speed 未指定時の話速。
	defaultSpeed = 1.0
	// defaultVoice はプロバイダ既定の音声を表すクライアント側の名前。
	defaultVoice = "default"
	// defaultTranscribeLang は lang 未指定時の認識言語。
	defaultTranscribeLang = "it"
	// recordingSampleRate はブラウザ録音（WebM/Opus）のサンプリングレート。
	recordingSampleRate = 48000
	// audioPathPrefix は音声取得URLのパス。
	audioPathPrefix = "/get-audio/"
)

// translateRequest は POST /translate のリクエストボディ。
type translateRequest struct {
	Text     string   `json:"text"`
	Target   string   `json:"target"`
	VoiceOut bool     `json:"voiceOut"`
	Voice    string   `json:"voice"`
	Speed    *float64 `json:"speed"`
}

// translateResponse は POST /translate のレスポンスボディ。音声を生成しない場合はaudio系を省略する。
type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	AudioID        string `json:"audioId,omitempty"`
	AudioURL       string `json:"audioUrl,omitempty"`
}

// handlePreflight はCORSプリフライトに空のボディで200を返すハンドラを返す。
func (s *Server) handlePreflight() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Status(http.StatusOK)
	}
}

// handleTranslate はテキストを翻訳し、必要に応じて音声を合成するハンドラを返す。
func (s *Server) handleTranslate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req translateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.logger.Info("不正な翻訳リクエスト", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストの形式が不正です: %v", err)})
			return
		}

		text := strings.TrimSpace(req.Text)
		target := strings.TrimSpace(req.Target)
		if text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "textは必須です"})
			return
		}
		if target == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "targetは必須です"})
			return
		}

		speed := defaultSpeed
		if req.Speed != nil {
			if *req.Speed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "speedは正の値である必要があります"})
				return
			}
			speed = *req.Speed
		}

		ctx := c.Request.Context()
		out, err := s.providers.Translator.Translate(ctx, capability.TranslateInput{Text: text, Target: target})
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "翻訳に失敗しました"})
			return
		}

		// 上流はHTMLエスケープ済みの文字列を返すことがある（&#39; など）
		resp := translateResponse{TranslatedText: html.UnescapeString(out.Text)}
		if !req.VoiceOut {
			c.JSON(http.StatusOK, resp)
			return
		}

		voice := strings.TrimSpace(req.Voice)
		if voice == defaultVoice {
			voice = ""
		}
		audio, err := s.providers.Synthesizer.Synthesize(ctx, capability.SynthesizeInput{
			Text:         resp.TranslatedText,
			LanguageCode: target,
			VoiceName:    voice,
			SpeakingRate: speed,
			Encoding:     capability.EncodingMP3,
		})
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "音声合成に失敗しました"})
			return
		}

		a := &artifact.Artifact{ContentType: audio.ContentType, Data: audio.Audio}
		if err := s.store.Save(ctx, a); err != nil {
			s.logger.Error("音声の保存に失敗", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "音声の保存に失敗しました"})
			return
		}

		resp.AudioID = a.ID
		resp.AudioURL = audioPathPrefix + a.ID
		c.JSON(http.StatusOK, resp)
	}
}

// handleGetAudio はIDで指定された音声を返すハンドラを返す。
func (s *Server) handleGetAudio() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := s.store.Get(c.Request.Context(), c.Param("id"))
		s.writeAudio(c, a, err)
	}
}

// handleLatestAudio は最後に合成された音声を返すハンドラを返す。
func (s *Server) handleLatestAudio() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := s.store.Latest(c.Request.Context())
		s.writeAudio(c, a, err)
	}
}

// writeAudio はアーティファクトを音声データとして書き出す。
func (s *Server) writeAudio(c *gin.Context, a *artifact.Artifact, err error) {
	if errors.Is(err, artifact.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "音声が見つかりません"})
		return
	}
	if err != nil {
		s.logger.Error("音声の取得に失敗", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "音声の取得に失敗しました"})
		return
	}

	contentType := a.ContentType
	if contentType == "" {
		contentType = capability.EncodingMP3.ContentType()
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, contentType, a.Data)
}

// handleTranscribe は録音データをテキストに変換するハンドラを返す。
func (s *Server) handleTranscribe() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := s.cfg.MaxUploadBytes
		if c.Request.ContentLength > limit {
			s.rejectTooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

		// マルチパートフォームから音声ファイルを取得する。
		header, err := c.FormFile("audio")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.rejectTooLarge(c)
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "音声ファイル（audio）は必須です"})
			return
		}
		if header.Size > limit {
			s.rejectTooLarge(c)
			return
		}

		file, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "音声ファイルの読み込みに失敗しました"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "音声ファイルの読み込みに失敗しました"})
			return
		}

		lang := strings.TrimSpace(c.PostForm("lang"))
		if lang == "" {
			lang = defaultTranscribeLang
		}

		out, err := s.providers.Recognizer.Recognize(c.Request.Context(), capability.RecognizeInput{
			Audio:           data,
			Encoding:        capability.EncodingWebmOpus,
			SampleRateHertz: recordingSampleRate,
			LanguageCode:    lang,
		})
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "音声認識に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"text": out.Transcript()})
	}
}

// rejectTooLarge はアップロード上限を超えたリクエストに413を返す。
func (s *Server) rejectTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"error": fmt.Sprintf("ファイルサイズが上限を超えています（最大%s）", formatUploadLimit(s.cfg.MaxUploadBytes)),
	})
}

// formatUploadLimit はアップロード上限を割り切れる最大の単位で表す。
func formatUploadLimit(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKB", n>>10)
	default:
		return fmt.Sprintf("%dバイト", n)
	}
}

// handleVoices はプロバイダが提供する音声の一覧を返すハンドラを返す。
func (s *Server) handleVoices() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.providers.VoiceLister == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": fmt.Sprintf("プロバイダ %s は音声一覧に対応していません", s.providers.Name)})
			return
		}

		voices, err := s.providers.VoiceLister.ListVoices(c.Request.Context(), strings.TrimSpace(c.Query("lang")))
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "音声一覧の取得に失敗しました"})
			return
		}
		if voices == nil {
			voices = []capability.Voice{}
		}
		c.JSON(http.StatusOK, gin.H{"voices": voices})
	}
}
