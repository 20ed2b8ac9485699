package extractor

import (
	"errors"
	"fmt"
	"testing"
)

// TestErrorTypes_Error verifies error message formatting
func TestErrorTypes_Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "unsupported url",
			err:  &UnsupportedURLError{URL: "https://example.com/watch"},
			want: "no extractor supports https://example.com/watch",
		},
		{
			name: "auth required",
			err:  &AuthRequiredError{Operation: "probe", Reason: "Sign in to confirm you're not a bot"},
			want: "authentication required during probe: Sign in to confirm you're not a bot",
		},
		{
			name: "network",
			err:  &NetworkError{Operation: "fetch", Reason: "connection timed out"},
			want: "network error during fetch: connection timed out",
		},
		{
			name: "disk",
			err:  &DiskError{Path: "downloads/clip.mp4", Reason: "no space left on device"},
			want: "disk error for 'downloads/clip.mp4': no space left on device",
		},
		{
			name: "extraction with exit code",
			err:  &ExtractionError{Operation: "fetch", ExitCode: 1, Reason: "Unable to download webpage"},
			want: "extraction failed during fetch (exit 1): Unable to download webpage",
		},
		{
			name: "extraction without exit code",
			err:  &ExtractionError{Operation: "fetch", Reason: "tool not started"},
			want: "extraction failed during fetch: tool not started",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestErrorTypes_Unwrap verifies error chain traversal
func TestErrorTypes_Unwrap(t *testing.T) {
	cause := errors.New("underlying cause")

	tests := []struct {
		name string
		err  error
	}{
		{name: "unsupported url", err: &UnsupportedURLError{URL: "u", Err: cause}},
		{name: "auth required", err: &AuthRequiredError{Operation: "probe", Err: cause}},
		{name: "network", err: &NetworkError{Operation: "fetch", Err: cause}},
		{name: "disk", err: &DiskError{Path: "p", Err: cause}},
		{name: "extraction", err: &ExtractionError{Operation: "fetch", Err: cause}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if unwrapped := errors.Unwrap(tt.err); unwrapped != cause {
				t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
			}

			wrapped := fmt.Errorf("context: %w", tt.err)
			if !errors.Is(wrapped, cause) {
				t.Error("errors.Is() should find cause in wrapped chain")
			}
		})
	}
}

// TestAuthRequiredError_As verifies programmatic error type detection
func TestAuthRequiredError_As(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", &AuthRequiredError{Operation: "fetch", Reason: "bot check"})

	var target *AuthRequiredError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As() should extract AuthRequiredError from wrapped chain")
	}

	if target.Operation != "fetch" {
		t.Errorf("Operation = %q, want %q", target.Operation, "fetch")
	}
	if target.Reason != "bot check" {
		t.Errorf("Reason = %q, want %q", target.Reason, "bot check")
	}
}

// TestHint verifies hint selection from the error chain
func TestHint(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHint bool
	}{
		{
			name:     "auth error carries hint",
			err:      &AuthRequiredError{Operation: "probe", Reason: "Sign in to confirm"},
			wantHint: true,
		},
		{
			name:     "wrapped auth error carries hint",
			err:      fmt.Errorf("probe: %w", &AuthRequiredError{Operation: "probe", Reason: "403"}),
			wantHint: true,
		},
		{
			name:     "network error has no hint",
			err:      &NetworkError{Operation: "fetch", Reason: "timeout"},
			wantHint: false,
		},
		{
			name:     "nil has no hint",
			err:      nil,
			wantHint: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Hint(tt.err); (got != "") != tt.wantHint {
				t.Errorf("Hint() = %q, wantHint=%v", got, tt.wantHint)
			}
		})
	}
}
