// Package cookie manages the cookie jars handed to extraction runs.
package cookie

import (
	"fmt"
	"io"
	"os"
)

// minUsableSize filters out header-only stub files; a jar this small
// carries no cookies.
const minUsableSize = 10

// Status reports one candidate path for diagnostics.
type Status struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Size   int64  `json:"size"`
}

// Resolver locates the cookie jar for extraction runs among a fixed
// list of candidate paths.
type Resolver struct {
	candidates []string
}

func NewResolver(candidates []string) *Resolver {
	return &Resolver{candidates: candidates}
}

// Resolve picks the jar for a run. An uploaded jar always wins;
// otherwise the first candidate with real content is used. The second
// return reports whether the jar was uploaded by the caller.
func (r *Resolver) Resolve(uploaded string) (string, bool) {
	if uploaded != "" {
		return uploaded, true
	}

	for _, path := range r.candidates {
		if info, err := os.Stat(path); err == nil && info.Size() > minUsableSize {
			return path, false
		}
	}

	return "", false
}

// Default returns the candidate jar served to clients for inspection.
func (r *Resolver) Default() (string, bool) {
	for _, path := range r.candidates {
		if info, err := os.Stat(path); err == nil && info.Size() >= minUsableSize {
			return path, true
		}
	}

	return "", false
}

// CandidateStatus reports every candidate path, present or not.
func (r *Resolver) CandidateStatus() []Status {
	statuses := make([]Status, 0, len(r.candidates))

	for _, path := range r.candidates {
		status := Status{Path: path}
		if info, err := os.Stat(path); err == nil {
			status.Exists = true
			status.Size = info.Size()
		}

		statuses = append(statuses, status)
	}

	return statuses
}

// WriteTemp stores an uploaded jar in a temporary file. The caller owns
// the file and removes it when the run that uses it finishes.
func WriteTemp(r io.Reader) (string, error) {
	f, err := os.CreateTemp("", "cookies-*.txt")
	if err != nil {
		return "", fmt.Errorf("creating cookie temp file: %w", err)
	}

	_, copyErr := io.Copy(f, r)
	closeErr := f.Close()

	if copyErr != nil || closeErr != nil {
		os.Remove(f.Name())

		if copyErr != nil {
			return "", fmt.Errorf("writing cookie temp file: %w", copyErr)
		}

		return "", fmt.Errorf("writing cookie temp file: %w", closeErr)
	}

	return f.Name(), nil
}
