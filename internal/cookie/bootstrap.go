package cookie

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"fetchd/internal/logctx"
)

const fetchTimeout = 12 * time.Second

// Sources carries the cookie material a deployment can provide at
// startup, in priority order: inline base64, inline plain text, then a
// URL to fetch.
type Sources struct {
	Base64 string
	Raw    string
	URL    string
}

// Bootstrap materializes a cookie jar from the configured sources into
// the primary candidate path. Missing sources are not an error; the
// service runs fine without cookies.
func (r *Resolver) Bootstrap(ctx context.Context, src Sources) {
	logger := logctx.From(ctx)

	if len(r.candidates) == 0 {
		return
	}

	target := r.candidates[0]

	switch {
	case src.Base64 != "":
		data, err := base64.StdEncoding.DecodeString(src.Base64)
		if err != nil {
			logger.WarnContext(ctx, "cookie bootstrap failed", "source", "base64", "err", err)
			return
		}

		r.installJar(ctx, target, data, "base64")
	case src.Raw != "":
		r.installJar(ctx, target, []byte(src.Raw), "env")
	case src.URL != "":
		data, err := fetchJar(ctx, src.URL)
		if err != nil {
			logger.WarnContext(ctx, "cookie bootstrap failed", "source", "url", "err", err)
			return
		}

		r.installJar(ctx, target, data, "url")
	}
}

func (r *Resolver) installJar(ctx context.Context, path string, data []byte, source string) {
	logger := logctx.From(ctx)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		logger.WarnContext(ctx, "cookie bootstrap failed", "source", source, "path", path, "err", err)
		return
	}

	logger.InfoContext(ctx, "cookie jar installed", "source", source, "path", path, "bytes", len(data))
}

func fetchJar(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building cookie request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching cookie jar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fetching cookie jar: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading cookie jar: %w", err)
	}

	if len(data) <= minUsableSize {
		return nil, fmt.Errorf("cookie jar from %s too small (%d bytes)", url, len(data))
	}

	return data, nil
}
