// Package youtube resolves a YouTube video into its metadata and caption
// transcript using the public Innertube surfaces, without an API key.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/notelens/internal/notes"
)

// videoIDRE matches the 11-char video ID in the common YouTube URL shapes.
var videoIDRE = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:.*&)?v=|shorts/|embed/|live/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)

// bareIDRE matches a raw video ID passed without any URL around it.
var bareIDRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// ErrBadVideoURL reports an input that is neither a YouTube URL nor a video ID.
var ErrBadVideoURL = errors.New("not a YouTube video URL or ID")

// ExtractVideoID normalizes a watch/shorts/embed/live/youtu.be URL or a bare
// 11-character ID into the canonical video ID.
func ExtractVideoID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if bareIDRE.MatchString(input) {
		return input, nil
	}
	if m := videoIDRE.FindStringSubmatch(input); len(m) == 2 {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadVideoURL, input)
}

// Client fetches transcripts and metadata. The zero value is not usable;
// construct with New.
type Client struct {
	httpClient *http.Client
	langs      []string
}

// Config for New. Langs is the caption language preference order; empty
// defaults to English.
type Config struct {
	HTTPClient *http.Client
	Langs      []string
}

// New builds a Client.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if len(cfg.Langs) == 0 {
		cfg.Langs = []string{"en"}
	}
	return &Client{httpClient: cfg.HTTPClient, langs: cfg.Langs}
}

// Fetch resolves videoID into a transcript with metadata. It tries the
// watch-page scrape first (one request carries both), then the engagement
// panel, then the ANDROID player.
func (c *Client) Fetch(ctx context.Context, videoID string) (*notes.Transcript, error) {
	notes.IncrTranscriptRequest()

	meta := notes.VideoMetadata{
		VideoID: videoID,
		URL:     "https://www.youtube.com/watch?v=" + videoID,
	}

	var segs []notes.TranscriptSegment

	pr, err := c.scrapeWatchPage(ctx, videoID)
	if err == nil {
		fillMeta(&meta, pr)
		segs, err = c.segmentsFromPlayer(ctx, pr)
	}
	if err != nil {
		slog.Warn("youtube: page scrape failed, trying engagement panel",
			slog.String("id", videoID), slog.Any("err", err))

		segs, err = c.fetchSegmentsViaEngagementPanel(ctx, videoID)
		if err != nil {
			slog.Warn("youtube: engagement panel failed, trying player",
				slog.String("id", videoID), slog.Any("err", err))

			pr, perr := c.fetchPlayer(ctx, videoID)
			if perr != nil {
				return nil, fmt.Errorf("%w: %v", notes.ErrTranscriptUnavailable, perr)
			}
			fillMeta(&meta, pr)
			segs, err = c.segmentsFromPlayer(ctx, pr)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", notes.ErrTranscriptUnavailable, err)
			}
		}
	}

	// The engagement-panel path carries no video details.
	if meta.Title == "" {
		if pr, perr := c.fetchPlayer(ctx, videoID); perr == nil {
			fillMeta(&meta, pr)
		}
	}

	return &notes.Transcript{
		Meta:     meta,
		Segments: segs,
		FullText: joinSegments(segs),
	}, nil
}

// fillMeta copies video details from a player response into meta, keeping
// already-populated fields.
func fillMeta(meta *notes.VideoMetadata, pr *playerResp) {
	d := pr.VideoDetails
	if d == nil {
		return
	}
	if meta.Title == "" {
		meta.Title = d.Title
	}
	if meta.Channel == "" {
		meta.Channel = d.Author
	}
	if meta.Duration == 0 {
		if secs, err := strconv.Atoi(d.LengthSeconds); err == nil {
			meta.Duration = secs
		}
	}
}

func joinSegments(segs []notes.TranscriptSegment) string {
	var sb strings.Builder
	for _, s := range segs {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s.Text)
	}
	return sb.String()
}
