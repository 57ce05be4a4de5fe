package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestObserveUpstream(t *testing.T) {
	t.Parallel()

	t.Run("成功と失敗が別ラベルで数えられること", func(t *testing.T) {
		t.Parallel()

		m := New()
		m.ObserveUpstream("google", "translate", 120*time.Millisecond, nil)
		m.ObserveUpstream("google", "translate", 80*time.Millisecond, nil)
		m.ObserveUpstream("google", "translate", time.Second, errors.New("quota"))

		if got := testutil.ToFloat64(m.upstreamRequestsTotal.WithLabelValues("google", "translate", StatusSuccess)); got != 2 {
			t.Errorf("success = %v, want 2", got)
		}
		if got := testutil.ToFloat64(m.upstreamRequestsTotal.WithLabelValues("google", "translate", StatusError)); got != 1 {
			t.Errorf("error = %v, want 1", got)
		}
	})
}

func TestAddEvicted(t *testing.T) {
	t.Parallel()

	m := New()
	m.AddEvicted(3)
	m.AddEvicted(0)
	if got := testutil.ToFloat64(m.artifactsEvictedTotal); got != 3 {
		t.Errorf("artifacts_evicted_total = %v, want 3", got)
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("ルートパターンとステータスで集計され /metrics に出力されること", func(t *testing.T) {
		t.Parallel()

		m := New()
		router := gin.New()
		router.Use(m.Middleware())
		router.GET("/get-audio/:id", func(c *gin.Context) {
			c.Status(http.StatusNotFound)
		})
		router.GET("/metrics", gin.WrapH(m.Handler()))

		for _, id := range []string{"a", "b"} {
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/get-audio/"+id, nil))
		}
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

		if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/get-audio/:id", http.MethodGet, "404")); got != 2 {
			t.Errorf("/get-audio/:id = %v, want 2", got)
		}
		if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("unmatched", http.MethodGet, "404")); got != 1 {
			t.Errorf("unmatched = %v, want 1", got)
		}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if !strings.Contains(w.Body.String(), "interpreter_http_requests_total") {
			t.Error("/metrics に interpreter_http_requests_total が含まれていない")
		}
	})
}
