package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/salesiq/internal/pipeline"
	"github.com/kalambet/salesiq/internal/storage"
)

func doRequest(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func errorType(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body %q: %v", w.Body.String(), err)
	}
	return resp.Error.Type
}

func TestHealth(t *testing.T) {
	a, s := newTestAnalyzer(t)
	h := NewHandler(Deps{Analyzer: a, Asks: s, Token: "secret"})

	w := doRequest(t, h, "GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestMetrics_Exposed(t *testing.T) {
	a, s := newTestAnalyzer(t)
	h := NewHandler(Deps{Analyzer: a, Asks: s})

	doRequest(t, h, "POST", "/v1/ask", `{"text":"total revenue"}`, nil)

	w := doRequest(t, h, "GET", "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "salesiq_asks_total") {
		t.Fatalf("asks counter missing from /metrics")
	}
}

func TestAsk_Success(t *testing.T) {
	a, s := newTestAnalyzer(t)
	h := NewHandler(Deps{Analyzer: a, Asks: s})

	w := doRequest(t, h, "POST", "/v1/ask", `{"text":"top 5 products by profit"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID         string `json:"id"`
		IntentKind string `json:"intent_kind"`
		Response   struct {
			Narrative      string            `json:"narrative"`
			Visualizations []json.RawMessage `json:"visualizations"`
		} `json:"response"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.ID == "" {
		t.Error("expected an answer id")
	}
	if resp.IntentKind != "product_analysis" {
		t.Errorf("intent_kind = %q", resp.IntentKind)
	}
	if !strings.Contains(resp.Response.Narrative, "**Laptop**") {
		t.Errorf("narrative:\n%s", resp.Response.Narrative)
	}
	if len(resp.Response.Visualizations) != 2 {
		t.Errorf("expected chart and table, got %d visualizations", len(resp.Response.Visualizations))
	}
}

func TestAsk_EmptyText(t *testing.T) {
	a, s := newTestAnalyzer(t)
	h := NewHandler(Deps{Analyzer: a, Asks: s})

	for _, body := range []string{`{"text":""}`, `{"text":"   "}`, `{}`} {
		w := doRequest(t, h, "POST", "/v1/ask", body, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, w.Code)
		}
	}
}

func TestAsk_InvalidJSON(t *testing.T) {
	a, s := newTestAnalyzer(t)
	h := NewHandler(Deps{Analyzer: a, Asks: s})

	w := doRequest(t, h, "POST", "/v1/ask", `{not json`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if got := errorType(t, w); got != "invalid_request_error" {
		t.Fatalf("error type = %q", got)
	}
}

func TestAsk_ExecutionFailure(t *testing.T) {
	h := NewHandler(Deps{Analyzer: newFailingAnalyzer()})

	w := doRequest(t, h, "POST", "/v1/ask", `{"text":"revenue by region"}`, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if got := errorType(t, w); got != "execution_error" {
		t.Fatalf("error type = %q", got)
	}
	if !strings.Contains(w.Body.String(), "An error occurred while analyzing the data: no such table: orders") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestAsk_RequiresToken(t *testing.T) {
	a, s := newTestAnalyzer(t)
	h := NewHandler(Deps{Analyzer: a, Asks: s, Token: "secret"})

	w := doRequest(t, h, "POST", "/v1/ask", `{"text":"total revenue"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w = doRequest(t, h, "POST", "/v1/ask", `{"text":"total revenue"}`, map[string]string{"Authorization": "Bearer wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	w = doRequest(t, h, "POST", "/v1/ask", `{"text":"total revenue"}`, map[string]string{"Authorization": "Bearer secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
}

func TestAskBatch_PreservesOrder(t *testing.T) {
	a, s := newTestAnalyzer(t)
	h := NewHandler(Deps{Analyzer: a, Asks: s})

	body := `{"questions":[{"text":"top customers"},{"text":"performance by region"},{"text":"compare electronics and furniture"}]}`
	w := doRequest(t, h, "POST", "/v1/ask/batch", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Answers []struct {
			Question   string `json:"question"`
			IntentKind string `json:"intent_kind"`
		} `json:"answers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	want := []string{"customer_analysis", "regional_analysis", "comparison"}
	if len(resp.Answers) != len(want) {
		t.Fatalf("expected %d answers, got %d", len(want), len(resp.Answers))
	}
	for i, k := range want {
		if resp.Answers[i].IntentKind != k {
			t.Errorf("answer %d intent = %q, want %q", i, resp.Answers[i].IntentKind, k)
		}
	}
}

func TestAskBatch_Limits(t *testing.T) {
	a, s := newTestAnalyzer(t)
	h := NewHandler(Deps{Analyzer: a, Asks: s})

	w := doRequest(t, h, "POST", "/v1/ask/batch", `{"questions":[]}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", w.Code)
	}

	qs := make([]AskRequest, maxBatchQuestions+1)
	for i := range qs {
		qs[i] = AskRequest{Text: "total revenue"}
	}
	b, _ := json.Marshal(BatchRequest{Questions: qs})
	w = doRequest(t, h, "POST", "/v1/ask/batch", string(b), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized batch, got %d", w.Code)
	}
}

func TestExplain(t *testing.T) {
	a, s := newTestAnalyzer(t)
	h := NewHandler(Deps{Analyzer: a, Asks: s})

	w := doRequest(t, h, "POST", "/v1/explain", `{"text":"revenue by month last year"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var raw struct {
		IntentKind string `json:"intent_kind"`
		Plan       string `json:"plan"`
		Dialect    string `json:"dialect"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if raw.IntentKind != "revenue_analysis" || raw.Dialect != "sqlite" {
		t.Errorf("explanation = %+v", raw)
	}
	if !strings.Contains(raw.Plan, "GROUP BY") {
		t.Errorf("plan:\n%s", raw.Plan)
	}
}

func TestListAsks(t *testing.T) {
	a, s := newTestAnalyzer(t)
	h := NewHandler(Deps{Analyzer: a, Asks: s})

	w := doRequest(t, h, "GET", "/v1/asks", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %s", w.Body.String())
	}

	for _, q := range []string{"total revenue", "top customers", "sales by region"} {
		if _, err := a.Answer(context.Background(), pipeline.Query{Text: q}); err != nil {
			t.Fatalf("Answer(%q): %v", q, err)
		}
	}

	w = doRequest(t, h, "GET", "/v1/asks?limit=2", "", nil)
	var asks []storage.Ask
	if err := json.Unmarshal(w.Body.Bytes(), &asks); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(asks) != 2 {
		t.Fatalf("expected 2 asks, got %d", len(asks))
	}
	if asks[0].Question != "sales by region" {
		t.Errorf("newest ask = %q", asks[0].Question)
	}

	w = doRequest(t, h, "GET", "/v1/asks/"+asks[1].ID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var one storage.Ask
	if err := json.Unmarshal(w.Body.Bytes(), &one); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if one.Question != "top customers" || one.Outcome != "ok" {
		t.Errorf("ask = %+v", one)
	}
}

func TestGetAsk_NotFound(t *testing.T) {
	a, s := newTestAnalyzer(t)
	h := NewHandler(Deps{Analyzer: a, Asks: s})

	w := doRequest(t, h, "GET", "/v1/asks/missing", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=0", 20},
		{"limit=-3", 20},
		{"limit=abc", 20},
		{"limit=500", 100},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/v1/asks?"+tt.query, nil)
		if got := parseIntParam(r, "limit", 20, 100); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestStats(t *testing.T) {
	a, s := newTestAnalyzer(t)
	h := NewHandler(Deps{Analyzer: a, Asks: s, Stats: s})

	w := doRequest(t, h, "GET", "/v1/stats", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var counts map[string]int64
	if err := json.Unmarshal(w.Body.Bytes(), &counts); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if counts["orders"] != 2 || counts["products"] != 2 {
		t.Errorf("counts = %v", counts)
	}

	h = NewHandler(Deps{Analyzer: a, Asks: s})
	if w := doRequest(t, h, "GET", "/v1/stats", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 without Stats, got %d", w.Code)
	}
}
