package extractor

import (
	"errors"
	"fmt"
)

// UnsupportedURLError means no extractor knows how to handle the source
// URL.
type UnsupportedURLError struct {
	URL string // The source URL that was rejected
	Err error  // Underlying error, if any
}

func (e *UnsupportedURLError) Error() string {
	return fmt.Sprintf("no extractor supports %s", e.URL)
}

func (e *UnsupportedURLError) Unwrap() error {
	return e.Err
}

// AuthRequiredError represents sign-in walls, bot checks and 403
// responses from the source site. Fresh cookie material usually resolves
// it.
type AuthRequiredError struct {
	Operation string // The operation that hit the wall (e.g. "probe", "fetch")
	Reason    string // The tool's own description of the refusal
	Err       error  // Underlying error, if any
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("authentication required during %s: %s", e.Operation, e.Reason)
}

func (e *AuthRequiredError) Unwrap() error {
	return e.Err
}

// NetworkError represents connectivity failures between the extraction
// tool and the source: timeouts, resets, DNS failures.
type NetworkError struct {
	Operation string // The operation that failed
	Reason    string // Error message from the network layer
	Err       error  // Underlying error, if any
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %s", e.Operation, e.Reason)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DiskError represents local resource failures while writing artifacts.
type DiskError struct {
	Path   string // The path that could not be written
	Reason string // Human-readable explanation
	Err    error  // Underlying error, if any
}

func (e *DiskError) Error() string {
	return fmt.Sprintf("disk error for '%s': %s", e.Path, e.Reason)
}

func (e *DiskError) Unwrap() error {
	return e.Err
}

// ExtractionError is the catch-all for tool failures that fit none of the
// other categories.
type ExtractionError struct {
	Operation string // The operation that failed
	ExitCode  int    // Tool exit code, if applicable (0 for non-exec errors)
	Reason    string // The tool's error output
	Err       error  // Underlying error, if any
}

func (e *ExtractionError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("extraction failed during %s (exit %d): %s", e.Operation, e.ExitCode, e.Reason)
	}

	return fmt.Sprintf("extraction failed during %s: %s", e.Operation, e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Hint maps an extraction failure to user-facing guidance, or returns an
// empty string when there is nothing actionable.
func Hint(err error) string {
	var authErr *AuthRequiredError
	if errors.As(err, &authErr) {
		return "YouTube bot-check; update cookies (YTDLP_COOKIES_B64) or verify the account. Proxy may help."
	}

	return ""
}
