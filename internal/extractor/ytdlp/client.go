// Package ytdlp implements the extractor contract on top of the yt-dlp
// tool.
package ytdlp

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"fetchd/internal/extractor"
	"fetchd/internal/logctx"
	"github.com/lrstanley/go-ytdlp"
)

const (
	defaultFormat  = "bestvideo+bestaudio/best"
	audioFormat    = "bestaudio/best"
	audioQuality   = "192K"
	outputTemplate = "%(title)s - %(id)s.%(ext)s"

	// Android browser user agent; the tool's default client gets served
	// bot checks far more often.
	mobileUserAgent = "Mozilla/5.0 (Linux; Android 12; SM-G991B Build/SP1A.210812.016) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.6613.84 Mobile Safari/537.36"

	// Ask the android and web player clients for streams and skip the
	// HLS/DASH manifests that stall on some videos.
	youtubeClientArgs = "youtube:player_client=android,web;skip=hls_dash"

	progressInterval = 500 * time.Millisecond
)

// Config carries the tool settings shared by every probe and fetch.
type Config struct {
	DownloadDir string
	Proxy       string
}

// Client runs yt-dlp for metadata probes and media fetches.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// CheckDependencies verifies that the external tools are reachable. A
// missing yt-dlp triggers a managed install; a missing ffmpeg is only
// logged, since single-file formats still work without it.
func (c *Client) CheckDependencies(ctx context.Context) error {
	logger := logctx.From(ctx)

	if _, err := exec.LookPath("yt-dlp"); err != nil {
		logger.WarnContext(ctx, "yt-dlp not found on PATH, attempting managed install")

		if _, err := ytdlp.Install(ctx, nil); err != nil {
			return fmt.Errorf("installing yt-dlp: %w", err)
		}
	}

	if _, err := exec.LookPath("ffmpeg"); err != nil {
		logger.WarnContext(ctx, "ffmpeg not found on PATH, format merging and audio extraction may fail")
	}

	return nil
}

// Probe fetches metadata for the requested URL without downloading any
// media.
func (c *Client) Probe(ctx context.Context, req extractor.Request) (*extractor.Metadata, error) {
	result, err := c.newCommand(req).
		SkipDownload().
		DumpSingleJSON().
		Run(ctx, req.URL)
	if err != nil {
		return nil, c.classifyRunError("probe", req.URL, result, err)
	}

	meta, err := parseProbeOutput([]byte(result.Stdout))
	if err != nil {
		return nil, &extractor.ExtractionError{Operation: "probe", Reason: "unreadable metadata output", Err: err}
	}

	return meta, nil
}

// Fetch downloads the requested media into the configured download
// directory and returns the artifact name without any path component.
func (c *Client) Fetch(ctx context.Context, req extractor.Request, onProgress extractor.ProgressFunc) (string, error) {
	format, audioCodec := resolveFormat(req.Format)

	cmd := c.newCommand(req).
		Format(format).
		Output(filepath.Join(c.cfg.DownloadDir, outputTemplate)).
		RestrictFilenames().
		ForceOverwrites()

	if audioCodec != "" {
		cmd = cmd.ExtractAudio().
			AudioFormat(audioCodec).
			AudioQuality(audioQuality)
	}

	if onProgress != nil {
		cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			progress := extractor.Progress{
				DownloadedBytes: int64(update.DownloadedBytes),
				TotalBytes:      int64(update.TotalBytes),
			}
			if progress.TotalBytes > 0 {
				progress.Percent = float64(progress.DownloadedBytes) / float64(progress.TotalBytes) * 100
			}

			onProgress(progress)
		})
	}

	result, err := cmd.Run(ctx, req.URL)
	if err != nil {
		return "", c.classifyRunError("fetch", req.URL, result, err)
	}

	filename := artifactName(result, audioCodec != "")
	if filename == "" {
		return "", &extractor.ExtractionError{Operation: "fetch", Reason: "tool reported no output file"}
	}

	return filepath.Base(filename), nil
}

// newCommand assembles the flag set shared by probes and fetches.
func (c *Client) newCommand(req extractor.Request) *ytdlp.Command {
	cmd := ytdlp.New().
		NoWarnings().
		NoPlaylist().
		Retries("5").
		SocketTimeout(30).
		NoCheckCertificates().
		GeoBypass().
		UserAgent(mobileUserAgent).
		ExtractorArgs(youtubeClientArgs)

	if c.cfg.Proxy != "" {
		cmd = cmd.Proxy(c.cfg.Proxy)
	}

	if req.CookieFile != "" {
		cmd = cmd.Cookies(req.CookieFile)
	}

	return cmd
}

// resolveFormat maps the requested selector onto a yt-dlp format string
// and, for "audio:<codec>" selectors, the codec to transcode into.
func resolveFormat(requested string) (format, audioCodec string) {
	requested = strings.TrimSpace(requested)

	if codec, ok := strings.CutPrefix(requested, "audio:"); ok {
		codec = strings.TrimSpace(codec)
		if codec == "" {
			codec = "mp3"
		}

		return audioFormat, codec
	}

	if requested == "" {
		return defaultFormat, ""
	}

	return requested, ""
}
