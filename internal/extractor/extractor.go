// Package extractor defines the boundary to the external media
// extraction tool. Implementations probe source URLs for metadata and
// fetch media into local artifacts, reporting progress through a
// callback.
package extractor

import "context"

// Request describes one extraction against a source URL.
type Request struct {
	URL string

	// Format is the requested selector. Empty means the implementation
	// default; the "audio:<codec>" form asks for an audio-only extract.
	Format string

	// CookieFile optionally points to a Netscape cookie jar to send with
	// the extraction.
	CookieFile string
}

// Progress is a point-in-time download measurement. Percent is within
// 0-100; TotalBytes is zero when the source does not announce a size.
type Progress struct {
	Percent         float64
	DownloadedBytes int64
	TotalBytes      int64
}

// ProgressFunc receives Progress events in emission order. Events stop
// before Fetch returns.
type ProgressFunc func(Progress)

// Format is one downloadable rendition of a source.
type Format struct {
	FormatID       string
	Ext            string
	Height         int
	FPS            float64
	VCodec         string
	ACodec         string
	ABR            float64
	Filesize       int64
	FilesizeApprox int64
}

// Metadata is the one-shot probe result for a source URL.
type Metadata struct {
	ID        string
	Title     string
	Uploader  string
	Duration  float64
	Thumbnail string
	Formats   []Format
}

// Client is implemented by media extraction backends.
type Client interface {
	// Probe inspects the source without downloading anything.
	Probe(ctx context.Context, req Request) (*Metadata, error)

	// Fetch downloads the source into the backend's artifact directory
	// and returns the artifact's base name. onProgress may be nil.
	Fetch(ctx context.Context, req Request, onProgress ProgressFunc) (string, error)
}
