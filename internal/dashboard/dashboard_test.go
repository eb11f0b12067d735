package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/betbot/sniper/internal/balance"
	"github.com/betbot/sniper/internal/ev"
	"github.com/betbot/sniper/internal/odds"
	"github.com/betbot/sniper/internal/pricefeed"
	"github.com/betbot/sniper/internal/scanner"
	"github.com/betbot/sniper/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("打开存储失败: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bal, err := balance.NewDryRun(ctx, 100, st)
	if err != nil {
		t.Fatalf("创建资金管理失败: %v", err)
	}

	sc := scanner.New(
		scanner.Config{Interval: 100 * time.Millisecond, MinBet: 1, MaxBet: 10, DryRun: true},
		pricefeed.New(""), odds.New(nil, time.Second), bal,
		&ev.Calculator{MinBet: 1, MaxBet: 10, InitialBalance: 100},
		st, &scanner.DryRunExecutor{})

	return New(":0", sc)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status got=%d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("响应非 JSON: %v", err)
	}
	for _, key := range []string{"market", "totalScans", "lastFilter", "atrPct", "regime", "cusum"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("缺少字段 %s: %v", key, body)
		}
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status got=%d", w.Code)
	}
	var body struct {
		Enabled bool    `json:"enabled"`
		DryRun  bool    `json:"dryRun"`
		Balance float64 `json:"balance"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("响应非 JSON: %v", err)
	}
	if !body.DryRun || body.Balance != 100 {
		t.Fatalf("stats 异常: %+v", body)
	}
}

func TestToggleFlipsSwitch(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sniper/toggle", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status got=%d", w.Code)
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Enabled {
		t.Fatalf("默认开启，翻转后应关闭")
	}

	w2 := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w2, httptest.NewRequest(http.MethodPost, "/api/sniper/toggle", nil))
	json.Unmarshal(w2.Body.Bytes(), &body)
	if !body.Enabled {
		t.Fatalf("二次翻转应恢复开启")
	}
}

func TestLogsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/logs", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status got=%d", w.Code)
	}
}
