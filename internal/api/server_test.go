package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/dgallion1/docsplit/internal/block"
	"github.com/dgallion1/docsplit/internal/config"
	"github.com/dgallion1/docsplit/internal/lark"
	"github.com/dgallion1/docsplit/internal/metrics"
	"github.com/dgallion1/docsplit/internal/pipeline"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, link string) (*lark.Source, error) {
	if strings.Contains(link, "missing") {
		return nil, &lark.APIError{Status: 404, Code: 1770002, Msg: "not found"}
	}
	return &lark.Source{
		URL:        link,
		Type:       lark.TypeDocx,
		DocumentID: "doc",
		Title:      "Guide",
		Blocks: []block.Block{
			{ID: "doc", Type: block.TypePage, Children: []string{"p"}, Text: plainText("Guide")},
			{ID: "p", Type: block.TypeText, ParentID: "doc", Text: plainText("Read me.")},
		},
	}, nil
}

func plainText(s string) *block.Text {
	return &block.Text{Elements: []block.Element{{TextRun: &block.TextRun{Content: s}}}}
}

type testEnv struct {
	srv     *Server
	metrics *metrics.Metrics
	reg     *prometheus.Registry
}

func newTestServer(t *testing.T, fetcher pipeline.Fetcher) testEnv {
	t.Helper()
	cfg := config.Defaults()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	log := zerolog.Nop()

	conv := pipeline.NewConverter(fetcher, pipeline.ConverterOptions{
		Render: cfg.RenderOptions(),
		Chunk:  cfg.ChunkConfig(),
	}, m, log)
	orch := pipeline.NewOrchestrator(pipeline.Config{Workers: 2, QueueSize: 16, JobTTL: time.Hour}, conv, m, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return testEnv{srv: NewServer(orch, m, reg, log, cfg), metrics: m, reg: reg}
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func histogramCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name && len(f.GetMetric()) > 0 {
			return f.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	return 0
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestServer(t, nil)

	rec := do(t, env.srv, http.MethodGet, "/health", nil)
	expectCode(t, rec, http.StatusOK)
	if got := decode(t, rec)["status"]; got != "ok" {
		t.Errorf("expected status ok, got %v", got)
	}

	rec = do(t, env.srv, http.MethodGet, "/metrics", nil)
	expectCode(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "docsplit_http_requests_total") {
		t.Error("expected request counter in scrape output")
	}
	// The scrape is counted after it is served.
	if got := testutil.ToFloat64(env.metrics.HTTPRequestsTotal.WithLabelValues("GET", "200")); got != 2 {
		t.Errorf("expected 2 counted GETs, got %v", got)
	}
}

func TestRender(t *testing.T) {
	env := newTestServer(t, nil)
	body := `{"blocks":[
		{"block_id":"doc","block_type":1,"children":["b"],"page":{"elements":[{"text_run":{"content":"Title"}}]}},
		{"block_id":"b","block_type":12,"parent_id":"doc","bullet":{"elements":[{"text_run":{"content":"item","text_element_style":{"bold":true}}}]}}
	]}`

	rec := do(t, env.srv, http.MethodPost, "/api/render", body)
	expectCode(t, rec, http.StatusOK)
	if got, want := decode(t, rec)["markdown"], "# Title\n\n- **item**\n\n"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRender_Errors(t *testing.T) {
	env := newTestServer(t, nil)

	if rec := do(t, env.srv, http.MethodPost, "/api/render", "{not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON: expected 400, got %d", rec.Code)
	}
	if rec := do(t, env.srv, http.MethodPost, "/api/render", `{"blocks":[]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("no blocks: expected 400, got %d", rec.Code)
	}

	rec := do(t, env.srv, http.MethodPost, "/api/render",
		`{"blocks":[{"block_id":"doc","block_type":1,"children":["ghost"],"page":{"elements":[]}}]}`)
	expectCode(t, rec, http.StatusUnprocessableEntity)
	if msg, _ := decode(t, rec)["error"].(string); !strings.Contains(msg, "ghost") {
		t.Errorf("expected error naming ghost, got %q", msg)
	}
}

func TestSplitAndEstimate(t *testing.T) {
	env := newTestServer(t, nil)
	md := "# Doc\n\n" + strings.Repeat("alpha beta gamma delta. ", 30) + "\n"
	size := 80

	rec := do(t, env.srv, http.MethodPost, "/api/split", map[string]any{"markdown": md, "chunk_size": size})
	expectCode(t, rec, http.StatusOK)
	out := decode(t, rec)
	chunks := out["chunks"].([]any)
	if len(chunks) <= 3 {
		t.Fatalf("expected more than 3 chunks, got %d", len(chunks))
	}
	if out["total_chunks"] != float64(len(chunks)) {
		t.Errorf("total_chunks = %v, want %d", out["total_chunks"], len(chunks))
	}

	rec = do(t, env.srv, http.MethodPost, "/api/estimate", map[string]any{"markdown": md, "chunk_size": size})
	expectCode(t, rec, http.StatusOK)
	est := decode(t, rec)
	if est["total_chunks"] != float64(len(chunks)) {
		t.Errorf("estimate total_chunks = %v, want %d", est["total_chunks"], len(chunks))
	}
	if preview, _ := est["preview"].([]any); len(preview) != 5 {
		t.Errorf("expected 5 preview chunks, got %d", len(preview))
	}
	if tokens, _ := est["tokens"].(float64); tokens <= 0 {
		t.Errorf("expected positive token estimate, got %v", est["tokens"])
	}
}

func TestSplit_ObservesChunkHistogram(t *testing.T) {
	env := newTestServer(t, nil)
	const name = "docsplit_chunks_per_document"
	if n := histogramCount(t, env.reg, name); n != 0 {
		t.Fatalf("expected empty histogram, got %d samples", n)
	}

	rec := do(t, env.srv, http.MethodPost, "/api/split", map[string]any{"markdown": "# A\n\nbody\n", "chunk_size": 60})
	expectCode(t, rec, http.StatusOK)
	if n := histogramCount(t, env.reg, name); n != 1 {
		t.Errorf("expected 1 observation after split, got %d", n)
	}
}

func TestSplit_Empty(t *testing.T) {
	env := newTestServer(t, nil)
	rec := do(t, env.srv, http.MethodPost, "/api/split", map[string]any{"markdown": ""})
	expectCode(t, rec, http.StatusOK)
	if got := decode(t, rec)["chunks"]; !reflect.DeepEqual(got, []any{}) {
		t.Errorf("expected empty chunk list, got %#v", got)
	}
}

func TestLarkPreview(t *testing.T) {
	env := newTestServer(t, stubFetcher{})

	rec := do(t, env.srv, http.MethodGet, "/api/lark/preview?link=https://x.larksuite.com/docx/doc", nil)
	expectCode(t, rec, http.StatusOK)
	out := decode(t, rec)
	if out["title"] != "Guide" {
		t.Errorf("expected title Guide, got %v", out["title"])
	}
	if want := "# Guide\n\nRead me.\n\n"; out["content"] != want {
		t.Errorf("expected content %q, got %q", want, out["content"])
	}

	rec = do(t, env.srv, http.MethodGet, "/api/lark/preview?link=https://x.larksuite.com/docx/missing", nil)
	expectCode(t, rec, http.StatusBadRequest)
	out = decode(t, rec)
	if out["title"] != "" || out["content"] != "" {
		t.Errorf("expected empty title and content on error, got %v", out)
	}

	if rec = do(t, env.srv, http.MethodGet, "/api/lark/preview", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing link: expected 400, got %d", rec.Code)
	}
}

func TestLarkPreview_Disabled(t *testing.T) {
	env := newTestServer(t, nil)
	rec := do(t, env.srv, http.MethodGet, "/api/lark/preview?link=https://x.larksuite.com/docx/doc", nil)
	expectCode(t, rec, http.StatusBadRequest)
	if msg, _ := decode(t, rec)["error"].(string); !strings.Contains(msg, "not configured") {
		t.Errorf("expected not configured error, got %q", msg)
	}
}

func waitStatus(t *testing.T, h http.Handler, jobID string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := do(t, h, http.MethodGet, "/api/ingest/"+jobID+"/status", nil)
		expectCode(t, rec, http.StatusOK)
		out := decode(t, rec)
		switch out["status"] {
		case "completed", "failed", "duplicate_skipped":
			return out
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", jobID)
	return nil
}

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestIngestUpload(t *testing.T) {
	env := newTestServer(t, nil)
	body, ctype := multipartBody(t, "file", map[string]string{"../notes.md": "# Notes\n\nSomething to remember.\n"})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	expectCode(t, rec, http.StatusAccepted)
	out := decode(t, rec)
	if out["filename"] != "notes.md" {
		t.Errorf("expected sanitized filename notes.md, got %v", out["filename"])
	}
	jobID := out["job_id"].(string)

	status := waitStatus(t, env.srv, jobID)
	if status["status"] != "completed" {
		t.Fatalf("expected completed, got %v", status["status"])
	}
	if status["title"] != "Notes" {
		t.Errorf("expected title Notes, got %v", status["title"])
	}

	rec = do(t, env.srv, http.MethodGet, "/api/ingest/"+jobID+"/chunks", nil)
	expectCode(t, rec, http.StatusOK)
	chunks, _ := decode(t, rec)["chunks"].([]any)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	if first, _ := chunks[0].(string); !strings.Contains(first, "Notes") {
		t.Errorf("expected first chunk to carry the title, got %q", first)
	}
}

func TestIngestUpload_Unsupported(t *testing.T) {
	env := newTestServer(t, nil)
	body, ctype := multipartBody(t, "file", map[string]string{"tool.exe": "MZ"})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestIngestBatch(t *testing.T) {
	env := newTestServer(t, nil)
	body, ctype := multipartBody(t, "files", map[string]string{
		"a.txt":   "first file",
		"b.csv":   "k,v\nx,1\n",
		"bad.bin": "??",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/batch", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	expectCode(t, rec, http.StatusAccepted)
	jobs, _ := decode(t, rec)["jobs"].([]any)
	if len(jobs) != 3 {
		t.Fatalf("expected 3 job entries, got %d", len(jobs))
	}

	var ok, failed int
	for _, j := range jobs {
		entry := j.(map[string]any)
		if _, has := entry["error"]; has {
			failed++
			continue
		}
		ok++
		if got := waitStatus(t, env.srv, entry["job_id"].(string))["status"]; got != "completed" {
			t.Errorf("job %v: expected completed, got %v", entry["filename"], got)
		}
	}
	if ok != 2 || failed != 1 {
		t.Errorf("expected 2 accepted and 1 rejected, got %d and %d", ok, failed)
	}
}

func TestIngestLark(t *testing.T) {
	env := newTestServer(t, stubFetcher{})
	rec := do(t, env.srv, http.MethodPost, "/api/ingest/lark", map[string]any{
		"links": []string{"https://x.larksuite.com/docx/doc", "https://x.larksuite.com/docx/missing"},
	})
	expectCode(t, rec, http.StatusAccepted)
	jobs, _ := decode(t, rec)["jobs"].([]any)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	good := waitStatus(t, env.srv, jobs[0].(map[string]any)["job_id"].(string))
	if good["status"] != "completed" || good["title"] != "Guide" {
		t.Errorf("expected completed Guide, got %v %v", good["status"], good["title"])
	}

	bad := waitStatus(t, env.srv, jobs[1].(map[string]any)["job_id"].(string))
	if bad["status"] != "failed" || bad["phase"] != "fetching" {
		t.Errorf("expected failure while fetching, got %v in %v", bad["status"], bad["phase"])
	}

	rec = do(t, env.srv, http.MethodGet, "/api/ingest/"+bad["job_id"].(string)+"/chunks", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("chunks of failed job: expected 409, got %d", rec.Code)
	}

	rec = do(t, env.srv, http.MethodGet, "/api/stats/jobs", nil)
	expectCode(t, rec, http.StatusOK)
	latency := decode(t, rec)["latency"].(map[string]any)
	if latency["count"] != 2.0 || latency["failed"] != 1.0 {
		t.Errorf("expected 2 finished and 1 failed, got %v and %v", latency["count"], latency["failed"])
	}
}

func TestIngestLark_NoLinks(t *testing.T) {
	env := newTestServer(t, stubFetcher{})
	if rec := do(t, env.srv, http.MethodPost, "/api/ingest/lark", map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestIngestStatus_NotFound(t *testing.T) {
	env := newTestServer(t, nil)
	for _, path := range []string{"/api/ingest/nope/status", "/api/ingest/nope/chunks"} {
		if rec := do(t, env.srv, http.MethodGet, path, nil); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"notes.md":           "notes.md",
		"../../etc/passwd":   "passwd",
		`C:\Users\me\a.docx`: "a.docx",
		"":                   "unnamed",
		"..":                 "_",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
