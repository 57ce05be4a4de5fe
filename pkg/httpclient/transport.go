package httpclient

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// loggingTransport は上流APIへのリクエストとレスポンスのステータス、所要時間を記録する。
// URLはクエリ文字列を除いて記録し、ボディは記録しない。
type loggingTransport struct {
	base   http.RoundTripper
	logger *zap.Logger
	name   string
}

// newLoggingTransport はoptsからloggingTransportを生成する。
func newLoggingTransport(opts Options) *loggingTransport {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &loggingTransport{base: base, logger: logger, name: opts.Name}
}

// RoundTrip はhttp.RoundTripperを実装する。
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	fields := []zap.Field{
		zap.String("upstream", t.name),
		zap.String("method", req.Method),
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path),
	}

	resp, err := t.base.RoundTrip(req)
	fields = append(fields, zap.Duration("elapsed", time.Since(start)))
	if err != nil {
		t.logger.Warn("上流APIとの通信に失敗", append(fields, zap.Error(err))...)
		return nil, err
	}

	fields = append(fields, zap.Int("status", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		t.logger.Warn("上流APIがエラーを返しました", fields...)
	} else {
		t.logger.Debug("上流APIを呼び出しました", fields...)
	}
	return resp, nil
}
