package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anatolykoptev/notelens/internal/notes"
	"github.com/anatolykoptev/notelens/internal/store"
)

// scriptedProcessor replays a fixed event sequence for any video.
type scriptedProcessor struct {
	events []notes.Event
	calls  int
}

func (p *scriptedProcessor) Process(_ context.Context, _ string, _ bool) <-chan notes.Event {
	p.calls++
	ch := make(chan notes.Event, len(p.events))
	for _, ev := range p.events {
		ch <- ev
	}
	close(ch)
	return ch
}

// fakeSource returns a canned transcript for any video.
type fakeSource struct {
	tr  *notes.Transcript
	err error
}

func (f *fakeSource) Fetch(_ context.Context, videoID string) (*notes.Transcript, error) {
	if f.err != nil {
		return nil, f.err
	}
	tr := *f.tr
	tr.Meta.VideoID = videoID
	return &tr, nil
}

// memStore is an in-memory store.Store for handler tests.
type memStore struct {
	m map[string]*notes.Result
}

func newMemStore() *memStore { return &memStore{m: make(map[string]*notes.Result)} }

func (s *memStore) Get(_ context.Context, id string) (*notes.Result, error)  { return s.m[id], nil }
func (s *memStore) Put(_ context.Context, res *notes.Result) error           { s.m[res.VideoID] = res; return nil }
func (s *memStore) Delete(_ context.Context, id string) error                { delete(s.m, id); return nil }
func (s *memStore) Close()                                                   {}
func (s *memStore) List(_ context.Context, limit int, search string) ([]store.Summary, error) {
	out := []store.Summary{}
	for id, r := range s.m {
		if len(out) >= limit {
			break
		}
		if search != "" && !strings.Contains(strings.ToLower(r.Meta.Title), strings.ToLower(search)) {
			continue
		}
		out = append(out, store.Summary{VideoID: id, Title: r.Meta.Title})
	}
	return out, nil
}

func happyEvents() []notes.Event {
	return []notes.Event{
		notes.MetadataEvent{
			Meta: notes.VideoMetadata{
				VideoID: "dQw4w9WgXcQ", Title: "Lecture", Channel: "Ch", Duration: 60,
				URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			},
			Transcript: "hello world",
		},
		notes.StatusEvent{Message: "generating"},
		notes.ChunkEvent{Data: "# Notes\n"},
		notes.ChunkEvent{Data: "body"},
		notes.NotesCompleteEvent{},
		notes.ToolsEvent{Tools: []notes.ToolMention{{Name: "PyTorch", Category: "framework"}}},
		notes.CompleteEvent{ProcessingTime: 3.2},
	}
}

func newTestServer(proc Processor, st store.Store) *httptest.Server {
	src := &fakeSource{tr: &notes.Transcript{
		Meta:     notes.VideoMetadata{Title: "Lecture", Channel: "Ch", Duration: 60},
		Segments: []notes.TranscriptSegment{{Text: "hello", Start: 0}, {Text: "world", Start: 2.5}},
		FullText: "hello world",
	}}
	s := New(Config{Orchestrator: proc, Source: src, Store: st, AllowedOrigins: []string{"https://app.example.com"}})
	return httptest.NewServer(s.Handler())
}

func sseLines(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &obj); err != nil {
			t.Fatalf("bad SSE payload %q: %v", line, err)
		}
		out = append(out, obj)
	}
	return out
}

func TestProcessEndpointStreamsSSE(t *testing.T) {
	proc := &scriptedProcessor{events: happyEvents()}
	srv := newTestServer(proc, newMemStore())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/process?url=https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	events := sseLines(t, string(body))

	wantTypes := []string{"metadata", "status", "chunk", "chunk", "notes_complete", "tools", "complete"}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d", len(events), len(wantTypes))
	}
	for i, want := range wantTypes {
		if events[i]["type"] != want {
			t.Errorf("event %d type = %v, want %s", i, events[i]["type"], want)
		}
	}

	meta := events[0]
	if meta["video_title"] != "Lecture" || meta["channel_name"] != "Ch" || meta["video_id"] != "dQw4w9WgXcQ" {
		t.Errorf("metadata payload = %v", meta)
	}
	if events[2]["data"] != "# Notes\n" {
		t.Errorf("chunk payload = %v", events[2])
	}
	tools := events[5]["data"].([]any)
	if len(tools) != 1 || tools[0].(map[string]any)["tool_name"] != "PyTorch" {
		t.Errorf("tools payload = %v", events[5])
	}
}

func TestProcessEndpointRejectsBadInput(t *testing.T) {
	srv := newTestServer(&scriptedProcessor{}, newMemStore())
	defer srv.Close()

	for _, path := range []string{"/api/process", "/api/process?url=not-a-video"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, resp.StatusCode)
		}
	}
}

func TestProcessEndpointRateLimit(t *testing.T) {
	proc := &scriptedProcessor{events: happyEvents()}
	s := New(Config{
		Orchestrator: proc,
		Store:        newMemStore(),
		ProcessRPS:   0.001, // effectively one request
		ProcessBurst: 1,
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	first, err := http.Get(srv.URL + "/api/process?url=dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d", first.StatusCode)
	}

	second, err := http.Get(srv.URL + "/api/process?url=dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	second.Body.Close()
	if second.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", second.StatusCode)
	}
}

func TestExtractEndpoint(t *testing.T) {
	srv := newTestServer(&scriptedProcessor{}, newMemStore())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/extract", "application/json",
		strings.NewReader(`{"url": "https://youtu.be/dQw4w9WgXcQ"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Success bool            `json:"success"`
		Data    extractResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.Data.VideoID != "dQw4w9WgXcQ" || body.Data.Transcript != "hello world" {
		t.Errorf("extract = %+v", body.Data)
	}
	if len(body.Data.Segments) != 2 || body.Data.Segments[1].Start != 2.5 {
		t.Errorf("segments = %+v", body.Data.Segments)
	}
}

func TestExtractEndpointRejectsBadInput(t *testing.T) {
	srv := newTestServer(&scriptedProcessor{}, newMemStore())
	defer srv.Close()

	for _, payload := range []string{"", `{}`, `{"url": "not-a-video"}`} {
		resp, err := http.Post(srv.URL+"/api/extract", "application/json", strings.NewReader(payload))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("payload %q: status = %d, want 400", payload, resp.StatusCode)
		}
	}
}

func TestExtractEndpointTranscriptUnavailable(t *testing.T) {
	s := New(Config{
		Orchestrator: &scriptedProcessor{},
		Source:       &fakeSource{err: notes.ErrTranscriptUnavailable},
		Store:        newMemStore(),
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/extract", "application/json",
		strings.NewReader(`{"url": "dQw4w9WgXcQ"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	st := newMemStore()
	st.m["dQw4w9WgXcQ"] = &notes.Result{
		VideoID: "dQw4w9WgXcQ",
		Meta:    notes.VideoMetadata{VideoID: "dQw4w9WgXcQ", Title: "Lecture"},
		Notes:   "# Notes",
		Tools:   []notes.ToolMention{},
	}
	srv := newTestServer(&scriptedProcessor{}, st)
	defer srv.Close()

	// List
	resp, err := http.Get(srv.URL + "/api/history")
	if err != nil {
		t.Fatal(err)
	}
	var listBody struct {
		Success bool            `json:"success"`
		Data    []store.Summary `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listBody); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if !listBody.Success || len(listBody.Data) != 1 {
		t.Errorf("list = %+v", listBody)
	}

	// Search filters by title substring.
	resp, err = http.Get(srv.URL + "/api/history?search=nothing-matches")
	if err != nil {
		t.Fatal(err)
	}
	var searched struct {
		Data []store.Summary `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searched); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(searched.Data) != 0 {
		t.Errorf("search returned %d entries, want 0", len(searched.Data))
	}

	// Detail hit
	resp, err = http.Get(srv.URL + "/api/history/dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("detail status = %d", resp.StatusCode)
	}

	// Detail miss
	resp, err = http.Get(srv.URL + "/api/history/aaa11111111")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("miss status = %d, want 404", resp.StatusCode)
	}

	// Delete
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/history/dQw4w9WgXcQ", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	if st.m["dQw4w9WgXcQ"] != nil {
		t.Error("delete did not remove the entry")
	}
}

func TestPresetsEndpoint(t *testing.T) {
	srv := newTestServer(&scriptedProcessor{}, newMemStore())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/presets")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Success bool          `json:"success"`
		Data    []PresetVideo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || len(body.Data) == 0 {
		t.Fatalf("presets = %+v", body)
	}
	for _, p := range body.Data {
		if len(p.ID) != 11 || p.VideoURL == "" || p.Title == "" {
			t.Errorf("malformed preset: %+v", p)
		}
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(&scriptedProcessor{}, newMemStore())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/history", nil)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow-origin = %q", got)
	}

	// Unlisted origin gets no CORS headers.
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/presets", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin got allow-origin = %q", got)
	}
}

func TestEncodeEventClosedSet(t *testing.T) {
	for _, ev := range happyEvents() {
		data, err := encodeEvent(ev)
		if err != nil {
			t.Errorf("encode %s: %v", ev.Type(), err)
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err != nil {
			t.Errorf("encode %s produced invalid JSON: %v", ev.Type(), err)
		}
	}

	if _, err := encodeEvent(bogusEvent{}); err == nil {
		t.Error("unknown event type must fail to encode")
	}
}

type bogusEvent struct{}

func (bogusEvent) Type() notes.EventType { return "bogus" }

func TestCollectRun(t *testing.T) {
	proc := &scriptedProcessor{events: happyEvents()}
	out, err := collectRun(proc.Process(context.Background(), "dQw4w9WgXcQ", false))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if out.Notes != "# Notes\nbody" {
		t.Errorf("notes = %q", out.Notes)
	}
	if out.Title != "Lecture" || len(out.Tools) != 1 || out.ProcessingTime != 3.2 {
		t.Errorf("output = %+v", out)
	}

	failing := &scriptedProcessor{events: []notes.Event{notes.ErrorEvent{Reason: "transcript unavailable"}}}
	if _, err := collectRun(failing.Process(context.Background(), "x", false)); err == nil {
		t.Error("error event must surface as an error")
	}
}
