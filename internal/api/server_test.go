package api

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/ziadomalik/ramwiz/internal/display"
	"github.com/ziadomalik/ramwiz/internal/session"
	"github.com/ziadomalik/ramwiz/internal/trace"
)

func writeTrace(t *testing.T, clks []int64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "trace.ram2")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w, err := trace.NewWriter(f, []string{"ACT", "PRE"})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	for i, clk := range clks {
		if err := w.Append(trace.Entry{Clk: clk, CmdID: uint8(i % 2)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := w.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func newTestEcho(t *testing.T) (*echo.Echo, *Server) {
	t.Helper()
	srv := NewServer(session.NewManager(), nil, filepath.Join(t.TempDir(), "config.json"))
	e := echo.New()
	srv.Register(e)
	t.Cleanup(func() { srv.sessions.Unload().Release() })
	return e, srv
}

func do(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func loadTestTrace(t *testing.T, e *echo.Echo, clks []int64) {
	t.Helper()
	path := writeTrace(t, clks)
	rec := do(t, e, http.MethodPost, "/v1/trace", fmt.Sprintf(`{"path": %q}`, path))
	if rec.Code != http.StatusOK {
		t.Fatalf("load trace: %d %s", rec.Code, rec.Body.String())
	}
}

func TestLoadAndMeta(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	loadTestTrace(t, e, []int64{10, 20, 30})

	rec := do(t, e, http.MethodGet, "/v1/trace", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("meta: %d %s", rec.Code, rec.Body.String())
	}
	var meta TraceMetaResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	if meta.TotalEvents != 3 || meta.MinClk != 10 || meta.MaxClk != 30 {
		t.Fatalf("meta mismatch: %+v", meta)
	}
	if meta.Version != 1 || meta.NumCommands != 2 {
		t.Fatalf("header fields mismatch: %+v", meta)
	}
}

func TestMetaWithoutTrace(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	if rec := do(t, e, http.MethodGet, "/v1/trace", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestLoadInvalidKeepsPrevious(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	loadTestTrace(t, e, []int64{1, 2})

	bad := filepath.Join(t.TempDir(), "bad.ram2")
	if err := os.WriteFile(bad, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rec := do(t, e, http.MethodPost, "/v1/trace", fmt.Sprintf(`{"path": %q}`, bad))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", rec.Code, rec.Body.String())
	}

	// The earlier trace must still be served.
	if rec := do(t, e, http.MethodGet, "/v1/trace", ""); rec.Code != http.StatusOK {
		t.Fatalf("previous trace lost: %d", rec.Code)
	}
}

func TestReaderSurvivesReload(t *testing.T) {
	t.Parallel()

	e, srv := newTestEcho(t)
	loadTestTrace(t, e, []int64{10, 20, 30})

	// A handler mid-read holds a session reference like this one.
	reader := srv.sessions.Current()
	defer reader.Release()

	loadTestTrace(t, e, []int64{5})

	// The swap must not unmap the store the reader is still decoding from.
	slice, err := reader.Store.LoadEntrySlice(0, 3)
	if err != nil {
		t.Fatalf("slice after reload: %v", err)
	}
	if slice.At(0).Clk != 10 || slice.At(2).Clk != 30 {
		t.Fatalf("reader data corrupted: %d %d", slice.At(0).Clk, slice.At(2).Clk)
	}
}

func TestDictionary(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	loadTestTrace(t, e, []int64{10})

	rec := do(t, e, http.MethodGet, "/v1/trace/dictionary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dictionary: %d %s", rec.Code, rec.Body.String())
	}
	var dict map[uint8]string
	if err := json.Unmarshal(rec.Body.Bytes(), &dict); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dict[0] != "ACT" || dict[1] != "PRE" {
		t.Fatalf("dictionary mismatch: %v", dict)
	}
}

func TestEntriesAndIndex(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	loadTestTrace(t, e, []int64{10, 20, 30})

	rec := do(t, e, http.MethodGet, "/v1/trace/entries?start=1&count=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("entries: %d %s", rec.Code, rec.Body.String())
	}
	var resp EntriesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 2 || resp.Entries[0].Clk != 20 {
		t.Fatalf("entries mismatch: %+v", resp)
	}

	if rec := do(t, e, http.MethodGet, "/v1/trace/entries?start=2&count=5", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("out-of-bounds range should 400, got %d", rec.Code)
	}

	rec = do(t, e, http.MethodGet, "/v1/trace/index?clk=15", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("index: %d %s", rec.Code, rec.Body.String())
	}
	var idx IndexResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &idx); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if idx.Index != 1 || idx.NumEntries != 3 {
		t.Fatalf("index mismatch: %+v", idx)
	}
}

func TestExtract(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	loadTestTrace(t, e, []int64{10, 20, 30})

	// Configure a color and duration for command 0 first.
	cfgBody := `{"commandConfig": {"colors": {"0": "#FF0000"}, "clockPeriods": {"0": 4}}}`
	if rec := do(t, e, http.MethodPut, "/v1/config", cfgBody); rec.Code != http.StatusOK {
		t.Fatalf("put config: %d %s", rec.Code, rec.Body.String())
	}

	rec := do(t, e, http.MethodGet, "/v1/trace/extract?start=0&count=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("extract: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/octet-stream" {
		t.Fatalf("content type %q", ct)
	}
	buf := rec.Body.Bytes()
	if len(buf) != 24*3 {
		t.Fatalf("buffer length %d, want 72", len(buf))
	}

	f32 := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
	}
	if f32(0) != 10 || f32(4) != 20 || f32(8) != 30 {
		t.Fatalf("starts mismatch: %v %v %v", f32(0), f32(4), f32(8))
	}
	// Entry 0 uses command 0 (configured), entry 1 command 1 (defaults).
	if f32(12) != 4 {
		t.Fatalf("durations[0] = %v, want 4", f32(12))
	}
	if f32(16) != trace.DefaultDuration {
		t.Fatalf("durations[1] = %v, want default", f32(16))
	}
	if f32(36) != 1 || f32(40) != 0 || f32(44) != 0 {
		t.Fatalf("colors[0] = (%v, %v, %v), want red", f32(36), f32(40), f32(44))
	}
	if f32(48) != 0.5 {
		t.Fatalf("colors[1].r = %v, want default gray", f32(48))
	}
}

func TestConfigRoundTrip(t *testing.T) {
	t.Parallel()

	e, srv := newTestEcho(t)
	body := `{"memoryLayout": {"numChannels": 2, "numBankgroups": 4, "numBanks": 16}}`
	if rec := do(t, e, http.MethodPut, "/v1/config", body); rec.Code != http.StatusOK {
		t.Fatalf("put config: %d %s", rec.Code, rec.Body.String())
	}

	rec := do(t, e, http.MethodGet, "/v1/config", "")
	var cfg display.Config
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.MemoryLayout == nil || cfg.MemoryLayout.NumBanks != 16 {
		t.Fatalf("config mismatch: %+v", cfg)
	}

	// The PUT must also have hit the JSON store on disk.
	persisted, err := display.Load(srv.configPath)
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	if persisted.MemoryLayout == nil || persisted.MemoryLayout.NumChannels != 2 {
		t.Fatalf("persisted config mismatch: %+v", persisted)
	}
}

func TestUnload(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	loadTestTrace(t, e, []int64{10})

	if rec := do(t, e, http.MethodDelete, "/v1/trace", ""); rec.Code != http.StatusOK {
		t.Fatalf("unload: %d", rec.Code)
	}
	if rec := do(t, e, http.MethodGet, "/v1/trace", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected empty session, got %d", rec.Code)
	}
}
