package ytdlp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"fetchd/internal/extractor"
	"github.com/lrstanley/go-ytdlp"
)

// probeInfo mirrors the slice of the yt-dlp JSON dump the service
// exposes. A playlist dump carries no formats and decodes into an empty
// list.
type probeInfo struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Thumbnail string        `json:"thumbnail"`
	Uploader  string        `json:"uploader"`
	Duration  float64       `json:"duration"`
	Formats   []probeFormat `json:"formats"`
}

type probeFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Height         int     `json:"height"`
	FPS            float64 `json:"fps"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	ABR            float64 `json:"abr"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
}

func parseProbeOutput(data []byte) (*extractor.Metadata, error) {
	var info probeInfo
	if err := json.Unmarshal(bytes.TrimSpace(data), &info); err != nil {
		return nil, fmt.Errorf("decoding metadata dump: %w", err)
	}

	meta := &extractor.Metadata{
		ID:        info.ID,
		Title:     info.Title,
		Uploader:  info.Uploader,
		Duration:  info.Duration,
		Thumbnail: info.Thumbnail,
		Formats:   make([]extractor.Format, 0, len(info.Formats)),
	}

	for _, f := range info.Formats {
		meta.Formats = append(meta.Formats, extractor.Format{
			FormatID:       f.FormatID,
			Ext:            f.Ext,
			Height:         f.Height,
			FPS:            f.FPS,
			VCodec:         f.VCodec,
			ACodec:         f.ACodec,
			ABR:            f.ABR,
			Filesize:       f.Filesize,
			FilesizeApprox: f.FilesizeApprox,
		})
	}

	return meta, nil
}

// yt-dlp reports the artifact on stdout; post-processors report the
// final name last.
var (
	reExtractDest  = regexp.MustCompile(`\[ExtractAudio\] Destination: (.+)`)
	reMergerDest   = regexp.MustCompile(`\[Merger\] Merging formats into "(.+)"`)
	reDownloadDest = regexp.MustCompile(`\[download\] Destination: (.+)`)
	reAlreadyDone  = regexp.MustCompile(`\[download\] (.+) has already been downloaded`)
)

// artifactName resolves the final media file produced by a fetch run.
// The extracted info block is authoritative except for audio runs,
// where it still names the pre-transcode file.
func artifactName(result *ytdlp.Result, audio bool) string {
	if result == nil {
		return ""
	}

	if audio {
		if name := lastMatch(reExtractDest, result.Stdout); name != "" {
			return name
		}
	}

	if info, err := result.GetExtractedInfo(); err == nil {
		for _, entry := range info {
			if entry != nil && entry.Filename != nil && *entry.Filename != "" {
				return *entry.Filename
			}
		}
	}

	for _, re := range []*regexp.Regexp{reExtractDest, reMergerDest, reAlreadyDone, reDownloadDest} {
		if name := lastMatch(re, result.Stdout); name != "" {
			return name
		}
	}

	return ""
}

func lastMatch(re *regexp.Regexp, output string) string {
	matches := re.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return ""
	}

	return strings.TrimSpace(matches[len(matches)-1][1])
}

// classifyRunError maps a failed yt-dlp run onto the extractor error
// taxonomy, keyed off the last ERROR line the tool printed.
func (c *Client) classifyRunError(operation, url string, result *ytdlp.Result, err error) error {
	detail := ""
	exitCode := 0

	if result != nil {
		detail = lastErrorLine(result.Stderr)
		exitCode = result.ExitCode
	}

	if detail == "" {
		detail = err.Error()
	}

	text := strings.ToLower(detail)

	switch {
	case isAuthError(text):
		return &extractor.AuthRequiredError{Operation: operation, Reason: detail, Err: err}
	case isUnsupportedURL(text):
		return &extractor.UnsupportedURLError{URL: url, Err: err}
	case isNetworkError(text):
		return &extractor.NetworkError{Operation: operation, Reason: detail, Err: err}
	case isDiskError(text):
		return &extractor.DiskError{Path: c.cfg.DownloadDir, Reason: detail, Err: err}
	default:
		return &extractor.ExtractionError{Operation: operation, ExitCode: exitCode, Reason: detail, Err: err}
	}
}

// lastErrorLine returns the last ERROR-prefixed line of the tool's
// stderr, falling back to the last non-empty line.
func lastErrorLine(stderr string) string {
	lastError := ""
	lastLine := ""

	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lastLine = line

		if rest, ok := strings.CutPrefix(line, "ERROR:"); ok {
			lastError = strings.TrimSpace(rest)
		}
	}

	if lastError != "" {
		return lastError
	}

	return lastLine
}

func isAuthError(s string) bool {
	return containsAny(s, []string{
		"sign in",
		"not a bot",
		"login required",
		"403",
		"http error 401",
		"private video",
		"members-only",
	})
}

func isUnsupportedURL(s string) bool {
	return containsAny(s, []string{
		"unsupported url",
		"is not a valid url",
	})
}

func isNetworkError(s string) bool {
	return containsAny(s, []string{
		"timed out",
		"timeout",
		"connection reset",
		"connection refused",
		"network is unreachable",
		"name resolution",
		"unable to connect",
		"too many requests",
		"rate limit",
		"http error 429",
		"http error 5",
	})
}

func isDiskError(s string) bool {
	return containsAny(s, []string{
		"no space left",
		"read-only file system",
		"permission denied",
		"disk full",
	})
}

func containsAny(text string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(text, h) {
			return true
		}
	}

	return false
}
