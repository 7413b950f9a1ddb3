package youtube

// Transcript fetching.
// Primary:  scrape watch page ytInitialPlayerResponse → caption XML (works from any IP)
// Fallback: /next → engagement panel → /get_transcript (works from datacenter IPs)
// Fallback: ANDROID Innertube /player → captionTracks

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/anatolykoptev/notelens/internal/notes"
)

// getTranscriptRE extracts the continuation token from a raw /next JSON response.
var getTranscriptRE = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

func extractTranscriptToken(data []byte) (string, error) {
	if m := getTranscriptRE.FindSubmatch(data); len(m) >= 2 {
		// The params value in the /next JSON response is URL-encoded.
		// /get_transcript expects the decoded (raw base64) form.
		decoded, err := url.QueryUnescape(string(m[1]))
		if err != nil {
			return string(m[1]), nil
		}
		return decoded, nil
	}
	return "", errors.New("getTranscriptEndpoint not found in engagement panels")
}

// parseTranscriptSegments extracts timed segments from a /get_transcript
// JSON response. startMs is carried as a decimal string.
func parseTranscriptSegments(resp getTranscriptResp) []notes.TranscriptSegment {
	var segs []notes.TranscriptSegment
	for _, action := range resp.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		initial := action.UpdateEngagementPanelAction.Content.
			TranscriptRenderer.Content.
			TranscriptSearchPanelRenderer.Body.
			TranscriptSegmentListRenderer.InitialSegments
		for _, seg := range initial {
			r := seg.TranscriptSegmentRenderer
			if r == nil {
				continue
			}
			var sb strings.Builder
			for _, run := range r.Snippet.Runs {
				if run.Text != "" {
					if sb.Len() > 0 {
						sb.WriteByte(' ')
					}
					sb.WriteString(run.Text)
				}
			}
			if sb.Len() == 0 {
				continue
			}
			start := 0.0
			if ms, err := strconv.ParseFloat(r.StartMs, 64); err == nil {
				start = ms / 1000
			}
			segs = append(segs, notes.TranscriptSegment{Text: sb.String(), Start: start})
		}
	}
	return segs
}

// fetchSegmentsViaEngagementPanel fetches transcript segments via:
//  1. POST /next → get engagementPanels containing transcript continuation token
//  2. POST /get_transcript with the token → JSON segments
//
// This approach works from datacenter IPs where /player returns LOGIN_REQUIRED.
func (c *Client) fetchSegmentsViaEngagementPanel(ctx context.Context, videoID string) ([]notes.TranscriptSegment, error) {
	visitorData := generateVisitorData()

	nextData, err := c.postWeb(ctx, ytNextURL, map[string]any{
		"videoId": videoID,
		"context": webContext(visitorData),
	}, visitorData)
	if err != nil {
		return nil, fmt.Errorf("/next: %w", err)
	}

	token, err := extractTranscriptToken(nextData)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	transcriptData, err := c.postWeb(ctx, ytGetTranscriptURL, map[string]any{
		"params": token,
		"context": map[string]any{
			"client": webClientCtx{
				ClientName:    "WEB",
				ClientVersion: ytWebVersion,
				VisitorData:   visitorData,
				Hl:            "en",
				Gl:            "US",
			},
		},
	}, visitorData)
	if err != nil {
		return nil, fmt.Errorf("/get_transcript: %w", err)
	}

	var resp getTranscriptResp
	if err := json.Unmarshal(transcriptData, &resp); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}

	segs := parseTranscriptSegments(resp)
	if len(segs) == 0 {
		return nil, errors.New("empty transcript segments")
	}
	return segs, nil
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
// Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack selects the best usable caption track for the given language
// preferences: manual over auto-generated, preferred language over English
// over anything. Skips tracks that require PoToken.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return tracks[0], false
	}
	// 1. Manual track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	// 2. Auto-generated track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	// 3. Any English track
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

var htmlTagRE = regexp.MustCompile(`<[^>]+>`)

// cleanCaption strips markup and collapses whitespace in one caption line.
func cleanCaption(s string) string {
	s = htmlTagRE.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// fetchTimedText fetches and parses a YouTube timedtext XML caption URL
// into timed segments.
func (c *Client) fetchTimedText(ctx context.Context, baseURL string) ([]notes.TranscriptSegment, error) {
	resp, err := retryHTTP(ctx, defaultRetry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", ytChromeUA)
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, err
	}
	return parseTimedText(body)
}

func parseTimedText(body []byte) ([]notes.TranscriptSegment, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	segs := make([]notes.TranscriptSegment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := cleanCaption(line.Text)
		if text != "" {
			segs = append(segs, notes.TranscriptSegment{Text: text, Start: line.Start})
		}
	}
	if len(segs) == 0 {
		return nil, errors.New("no caption lines")
	}
	return segs, nil
}

// segmentsFromPlayer resolves caption tracks from a player response into
// timed segments.
func (c *Client) segmentsFromPlayer(ctx context.Context, pr *playerResp) ([]notes.TranscriptSegment, error) {
	if pr.Captions == nil {
		reason := ""
		if pr.PlayabilityStatus != nil {
			reason = pr.PlayabilityStatus.Reason
		}
		if reason != "" {
			return nil, fmt.Errorf("captions unavailable: %s", reason)
		}
		return nil, errors.New("no captions in player response")
	}
	tracks := pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, errors.New("no caption tracks")
	}
	track, ok := pickBestTrack(tracks, c.langs)
	if !ok {
		return nil, errors.New("all caption tracks require PoToken")
	}
	return c.fetchTimedText(ctx, track.BaseURL)
}

const playerResponseMarker = "ytInitialPlayerResponse = "

// findPlayerResponse walks the watch page's script tags for the inline
// ytInitialPlayerResponse assignment and returns its JSON object.
func findPlayerResponse(body []byte) []byte {
	tok := html.NewTokenizer(bytes.NewReader(body))
	inScript := false
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return nil
		case html.StartTagToken:
			name, _ := tok.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if !inScript {
				continue
			}
			text := tok.Text()
			idx := bytes.Index(text, []byte(playerResponseMarker))
			if idx < 0 {
				continue
			}
			if data := extractJSON(text[idx+len(playerResponseMarker):]); data != nil {
				return data
			}
		}
	}
}

// extractJSON returns the first balanced JSON object at the start of b,
// honoring string literals and escapes.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	esc := false
	for i, c := range b {
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}

// scrapeWatchPage fetches the watch page HTML and extracts its embedded
// player response, which carries both video details and caption tracks.
func (c *Client) scrapeWatchPage(ctx context.Context, videoID string) (*playerResp, error) {
	watchURL := "https://www.youtube.com/watch?v=" + videoID

	resp, err := retryHTTP(ctx, defaultRetry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", ytChromeUA)
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read watch page: %w", err)
	}

	jsonData := findPlayerResponse(body)
	if jsonData == nil {
		return nil, errors.New("ytInitialPlayerResponse not found in watch page")
	}

	var pr playerResp
	if err := json.Unmarshal(jsonData, &pr); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return &pr, nil
}
