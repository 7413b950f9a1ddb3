package youtube

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"watch URL", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"watch URL extra params", "https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ", false},
		{"short URL", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"short URL with timestamp", "https://youtu.be/dQw4w9WgXcQ?t=30", "dQw4w9WgXcQ", false},
		{"shorts URL", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"embed URL", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"live URL", "https://www.youtube.com/live/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"no scheme", "youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"bare ID", "dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"bare ID with whitespace", "  dQw4w9WgXcQ\n", "dQw4w9WgXcQ", false},
		{"ID too short", "dQw4w9WgXc", "", true},
		{"channel URL", "https://www.youtube.com/@somechannel", "", true},
		{"not a URL", "hello world", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractVideoID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExtractVideoID(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractVideoID(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ExtractVideoID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPickBestTrack(t *testing.T) {
	manual := func(lang string) captionTrack {
		return captionTrack{BaseURL: "https://yt/" + lang, LanguageCode: lang}
	}
	auto := func(lang string) captionTrack {
		return captionTrack{BaseURL: "https://yt/" + lang + "-asr", LanguageCode: lang, Kind: "asr"}
	}
	gated := func(lang string) captionTrack {
		return captionTrack{BaseURL: "https://yt/" + lang + "?&exp=xpe", LanguageCode: lang}
	}

	tests := []struct {
		name    string
		tracks  []captionTrack
		langs   []string
		wantURL string
		wantOK  bool
	}{
		{"manual beats auto", []captionTrack{auto("en"), manual("en")}, []string{"en"}, "https://yt/en", true},
		{"preferred language first", []captionTrack{manual("de"), manual("en")}, []string{"en"}, "https://yt/en", true},
		{"auto fallback in preferred lang", []captionTrack{auto("en"), manual("de")}, []string{"en"}, "https://yt/en-asr", true},
		{"english fallback", []captionTrack{manual("de"), manual("en-GB")}, []string{"fr"}, "https://yt/en-GB", true},
		{"anything fallback", []captionTrack{manual("de")}, []string{"fr"}, "https://yt/de", true},
		{"skips PoToken track", []captionTrack{gated("en"), auto("en")}, []string{"en"}, "https://yt/en-asr", true},
		{"all gated", []captionTrack{gated("en")}, []string{"en"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickBestTrack(tt.tracks, tt.langs)
			if ok != tt.wantOK {
				t.Fatalf("pickBestTrack ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.BaseURL != tt.wantURL {
				t.Errorf("pickBestTrack = %q, want %q", got.BaseURL, tt.wantURL)
			}
		})
	}
}

func TestExtractTranscriptToken(t *testing.T) {
	data := []byte(`{"engagementPanels":[{"getTranscriptEndpoint":{"params":"CgtkUXc0dzlXZ1hjUQ%3D%3D"}}]}`)
	token, err := extractTranscriptToken(data)
	if err != nil {
		t.Fatalf("extractTranscriptToken error: %v", err)
	}
	// URL-decoded form is expected.
	if token != "CgtkUXc0dzlXZ1hjUQ==" {
		t.Errorf("token = %q", token)
	}

	if _, err := extractTranscriptToken([]byte(`{"engagementPanels":[]}`)); err == nil {
		t.Error("expected error for missing endpoint")
	}
}

func TestParseTimedText(t *testing.T) {
	xmlBody := []byte(`<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0.08" dur="3.2">hello &amp; welcome</text>
  <text start="3.28" dur="2.0">to   the	lecture</text>
  <text start="5.28" dur="1.0"><font color="#ffffff">styled</font></text>
  <text start="6.28" dur="1.0">   </text>
</transcript>`)

	segs, err := parseTimedText(xmlBody)
	if err != nil {
		t.Fatalf("parseTimedText error: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	if segs[0].Text != "hello & welcome" || segs[0].Start != 0.08 {
		t.Errorf("segment 0 = %+v", segs[0])
	}
	if segs[1].Text != "to the lecture" {
		t.Errorf("whitespace not collapsed: %q", segs[1].Text)
	}
	if segs[2].Text != "styled" {
		t.Errorf("tags not stripped: %q", segs[2].Text)
	}

	if _, err := parseTimedText([]byte(`<transcript></transcript>`)); err == nil {
		t.Error("expected error for empty transcript")
	}
}

func TestFindPlayerResponse(t *testing.T) {
	page := `<!DOCTYPE html><html><head>
<script nonce="x">var other = {"a":1};</script>
<script>var ytInitialPlayerResponse = {"videoDetails":{"videoId":"dQw4w9WgXcQ","title":"Never {Gonna} \"Give\" Up","author":"Ch","lengthSeconds":"212"}};var meta = {};</script>
</head><body></body></html>`

	data := findPlayerResponse([]byte(page))
	if data == nil {
		t.Fatal("player response not found")
	}
	if !strings.Contains(string(data), `"videoId":"dQw4w9WgXcQ"`) {
		t.Errorf("unexpected JSON: %s", data)
	}
	// Must stop at the balanced brace despite braces and escapes inside strings.
	if strings.Contains(string(data), "var meta") {
		t.Errorf("overran the object: %s", data)
	}

	if findPlayerResponse([]byte(`<html><script>var x = 1;</script></html>`)) != nil {
		t.Error("expected nil for page without player response")
	}
}

func TestFetchViaWatchPage(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") != "dQw4w9WgXcQ" {
			http.NotFound(w, r)
			return
		}
		page := `<html><script>var ytInitialPlayerResponse = {` +
			`"videoDetails":{"videoId":"dQw4w9WgXcQ","title":"Lecture 1","author":"Prof","lengthSeconds":"3600"},` +
			`"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[` +
			`{"baseUrl":"` + srv.URL + `/timedtext","languageCode":"en"}]}}};</script></html>`
		w.Write([]byte(page))
	})
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<transcript><text start="0">hello</text><text start="2.5">world</text></transcript>`))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	c := New(Config{HTTPClient: srv.Client()})

	pr, err := c.scrapeWatchPageAt(t, srv.URL, "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	segs, err := c.segmentsFromPlayer(context.Background(), pr)
	if err != nil {
		t.Fatalf("segments: %v", err)
	}
	if joinSegments(segs) != "hello world" {
		t.Errorf("joined = %q", joinSegments(segs))
	}
	if pr.VideoDetails == nil || pr.VideoDetails.Title != "Lecture 1" {
		t.Errorf("details = %+v", pr.VideoDetails)
	}
}

// scrapeWatchPageAt fetches a watch page from a test server instead of
// youtube.com and reuses the production parsing path.
func (c *Client) scrapeWatchPageAt(t *testing.T, base, videoID string) (*playerResp, error) {
	t.Helper()
	resp, err := c.httpClient.Get(base + "/watch?v=" + videoID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	data := findPlayerResponse(body)
	if data == nil {
		t.Fatal("no player response in test page")
	}
	pr := new(playerResp)
	return pr, json.Unmarshal(data, pr)
}
