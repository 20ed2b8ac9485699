package task

import "time"

// Status of a download task. Transitions only move forward:
// queued -> running -> done|error. Terminal states never change.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Task is one download request and its observable state. The store only
// hands out value copies, so a Task held by a caller never aliases store
// memory.
type Task struct {
	ID       string
	Status   Status
	Progress string

	// Filename is set together with StatusDone; Error together with
	// StatusError. The two are mutually exclusive.
	Filename string
	Error    string

	SourceURL       string
	RequestedFormat string

	// Cookie material resolved at creation time. When CookieUploaded is
	// set the file is a per-task temp jar owned (and removed) by the
	// runner.
	CookieFile     string
	CookieUploaded bool

	CreatedAt  time.Time
	FinishedAt time.Time
}
