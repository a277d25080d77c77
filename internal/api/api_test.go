package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/metavoices/internal/analysis"
	"github.com/MrWong99/metavoices/internal/api"
	"github.com/MrWong99/metavoices/internal/dictionary"
	"github.com/MrWong99/metavoices/internal/observe"
	"github.com/MrWong99/metavoices/internal/session"
)

type testEnv struct {
	handler http.Handler
	store   *session.Store
	reader  *sdkmetric.ManualReader
}

func newEnv(t *testing.T, src dictionary.Source, opts ...api.Option) *testEnv {
	t.Helper()
	return newEnvWithStore(t, src, nil, opts...)
}

func newEnvWithStore(t *testing.T, src dictionary.Source, storeOpts []session.StoreOption, opts ...api.Option) *testEnv {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(t.Context()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	a := analysis.New(src, analysis.WithMetrics(m))
	storeOpts = append([]session.StoreOption{session.WithSessionOptions(session.WithMetrics(m))}, storeOpts...)
	store := session.NewStore(a, storeOpts...)
	srv := api.New(a, store, append([]api.Option{api.WithMetrics(m)}, opts...)...)
	return &testEnv{handler: srv.Handler(), store: store, reader: reader}
}

// do sends a request with an optional JSON body and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

type errorBody struct {
	Error string `json:"error"`
}

type analyzeBody struct {
	Findings []analysis.Finding `json:"findings"`
	Stats    analysis.Stats     `json:"stats"`
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	env := newEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/v1/analyze", map[string]string{"text": "Vengo da Roma e resto qui"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	got := decodeBody[analyzeBody](t, rec)
	if len(got.Findings) != 2 {
		t.Fatalf("findings = %+v, want 2", got.Findings)
	}
	if got.Findings[0].Word != "da" || got.Findings[0].Position != 6 {
		t.Errorf("first finding = %+v", got.Findings[0])
	}
	if got.Findings[1].Word != "e" || got.Findings[1].Context != "da Roma e resto qui" {
		t.Errorf("second finding = %+v", got.Findings[1])
	}
	if got.Findings[0].Entry == nil || got.Findings[0].Entry.Kind != dictionary.KindHomophone {
		t.Errorf("entry = %+v", got.Findings[0].Entry)
	}
	want := analysis.Stats{WordCount: 6, CharCount: 25, ReadingTime: 1}
	if got.Stats != want {
		t.Errorf("stats = %+v, want %+v", got.Stats, want)
	}
}

func TestAnalyze_EmptyText(t *testing.T) {
	t.Parallel()

	env := newEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/v1/analyze", map[string]string{"text": ""})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeBody[analyzeBody](t, rec)
	if got.Findings == nil || len(got.Findings) != 0 {
		t.Errorf("findings = %#v, want empty array", got.Findings)
	}
}

func TestAnalyze_DictionaryUnavailable(t *testing.T) {
	t.Parallel()

	env := newEnv(t, dictionary.NewFileSource(t.TempDir()+"/missing.yaml"))
	rec := env.do(t, http.MethodPost, "/v1/analyze", map[string]string{"text": "da"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if e := decodeBody[errorBody](t, rec); !strings.Contains(e.Error, "dictionary load failed") {
		t.Errorf("error = %q", e.Error)
	}
}

func TestBadRequests(t *testing.T) {
	t.Parallel()

	env := newEnv(t, nil)
	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "malformed json", path: "/v1/analyze", body: `{"text":`},
		{name: "unknown field", path: "/v1/stats", body: `{"txt":"ciao"}`},
		{name: "wrong type", path: "/v1/corrections", body: `{"text":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := env.do(t, http.MethodPost, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if e := decodeBody[errorBody](t, rec); e.Error == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestBodyTooLarge(t *testing.T) {
	t.Parallel()

	env := newEnv(t, nil, api.WithMaxBodyBytes(16))
	rec := env.do(t, http.MethodPost, "/v1/stats", map[string]string{"text": strings.Repeat("parola ", 10)})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCorrections(t *testing.T) {
	t.Parallel()

	env := newEnv(t, nil)
	tests := []struct {
		name        string
		req         map[string]string
		wantText    string
		wantChanged bool
	}{
		{
			name:        "global case-insensitive rewrite",
			req:         map[string]string{"text": "Perche? perche no.", "original": "perche", "corrected": "perché"},
			wantText:    "perché? perché no.",
			wantChanged: true,
		},
		{
			name:     "whole words only",
			req:      map[string]string{"text": "affiancato", "original": "da", "corrected": "dà"},
			wantText: "affiancato",
		},
		{
			name:     "empty original",
			req:      map[string]string{"text": "vengo da Roma", "original": "", "corrected": "x"},
			wantText: "vengo da Roma",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := env.do(t, http.MethodPost, "/v1/corrections", tt.req)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			got := decodeBody[struct {
				Text    string `json:"text"`
				Changed bool   `json:"changed"`
			}](t, rec)
			if got.Text != tt.wantText || got.Changed != tt.wantChanged {
				t.Errorf("got %+v, want text %q changed %v", got, tt.wantText, tt.wantChanged)
			}
		})
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	env := newEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/v1/stats", map[string]string{"text": "è perché"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeBody[analysis.Stats](t, rec)
	if want := (analysis.Stats{WordCount: 2, CharCount: 8, ReadingTime: 1}); got != want {
		t.Errorf("stats = %+v, want %+v", got, want)
	}
}

func TestDictionary(t *testing.T) {
	t.Parallel()

	env := newEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/v1/dictionary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := decodeBody[struct {
		Source string   `json:"source"`
		Count  int      `json:"count"`
		Words  []string `json:"words"`
	}](t, rec)
	if list.Source != "builtin" || list.Count != dictionary.Builtin().Len() || len(list.Words) != list.Count {
		t.Errorf("list = %+v", list)
	}

	rec = env.do(t, http.MethodGet, "/v1/dictionary/PERCHE", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status = %d", rec.Code)
	}
	entry := decodeBody[dictionary.Entry](t, rec)
	if entry.Word != "perche" || entry.Kind != dictionary.KindAccentMissing || len(entry.Suggestions) != 2 {
		t.Errorf("entry = %+v", entry)
	}

	rec = env.do(t, http.MethodGet, "/v1/dictionary/dapertutto", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("miss status = %d, want 404", rec.Code)
	}
	miss := decodeBody[struct {
		Error   string             `json:"error"`
		Nearest []dictionary.Match `json:"nearest"`
	}](t, rec)
	if miss.Error == "" || len(miss.Nearest) == 0 || miss.Nearest[0].Word != "dappertutto" {
		t.Errorf("miss = %+v", miss)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	env := newEnv(t, nil)
	if rec := env.do(t, http.MethodGet, "/v1/analyze", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /v1/analyze = %d, want 405", rec.Code)
	}
}
