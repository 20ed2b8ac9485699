package rest

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"fetchd/internal/cookie"
	"fetchd/internal/extractor"
	"fetchd/internal/logctx"
	"fetchd/internal/task"
	"github.com/go-chi/chi/v5"
)

//go:embed static/index.html
var indexHTML []byte

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

type infoResponse struct {
	OK        bool         `json:"ok"`
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Thumbnail string       `json:"thumbnail"`
	Uploader  string       `json:"uploader"`
	Duration  float64      `json:"duration"`
	Formats   []formatInfo `json:"formats"`
}

type formatInfo struct {
	FormatID string  `json:"format_id"`
	Ext      string  `json:"ext"`
	Height   int     `json:"height,omitempty"`
	FPS      float64 `json:"fps,omitempty"`
	VCodec   string  `json:"vcodec,omitempty"`
	ACodec   string  `json:"acodec,omitempty"`
	ABR      float64 `json:"abr,omitempty"`
	Filesize int64   `json:"filesize,omitempty"`
}

type downloadResponse struct {
	OK     bool   `json:"ok"`
	TaskID string `json:"task_id"`
}

type taskResponse struct {
	OK   bool        `json:"ok"`
	Task taskPayload `json:"task"`
}

type taskPayload struct {
	Status   string `json:"status"`
	Progress string `json:"progress"`
	Filename string `json:"filename,omitempty"`
	Error    string `json:"error,omitempty"`
}

type cookieStatusResponse struct {
	OK         bool            `json:"ok"`
	Candidates []cookie.Status `json:"candidates"`
}

// MediaHandler serves the task API and the poller UI.
type MediaHandler struct {
	store       *task.Store
	runner      *task.Runner
	ext         extractor.Client
	cookies     *cookie.Resolver
	downloadDir string
}

// NewMediaHandler creates a new media task handler.
func NewMediaHandler(
	store *task.Store,
	runner *task.Runner,
	ext extractor.Client,
	cookies *cookie.Resolver,
	downloadDir string,
) *MediaHandler {
	return &MediaHandler{
		store:       store,
		runner:      runner,
		ext:         ext,
		cookies:     cookies,
		downloadDir: downloadDir,
	}
}

func (h *MediaHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer)

	r.Get("/", h.HandleIndex)
	r.Post("/info", h.HandleInfo)
	r.Post("/download", h.HandleDownload)
	r.Get("/task/{id}", h.HandleTaskStatus)
	r.Get("/download_file/{filename}", h.HandleDownloadFile)
	r.Get("/default_cookies", h.HandleDefaultCookies)
	r.Get("/cookie_status", h.HandleCookieStatus)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(r.Context(), w, http.StatusNotFound, "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(r.Context(), w, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	return r
}

// HandleIndex serves the embedded single-page UI.
func (h *MediaHandler) HandleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// HandleInfo probes a media URL and reports its metadata without
// starting a download.
func (h *MediaHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logctx.From(ctx)

	url := strings.TrimSpace(r.FormValue("url"))
	if url == "" {
		respondError(ctx, w, http.StatusBadRequest, "URL missing")

		return
	}

	jarPath, err := uploadedCookieJar(r)
	if err != nil {
		logger.ErrorContext(ctx, "failed to store uploaded cookies", "err", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid cookies upload")

		return
	}

	// A jar uploaded for a probe only lives for this request.
	if jarPath != "" {
		defer os.Remove(jarPath)
	}

	cookieFile, _ := h.cookies.Resolve(jarPath)

	meta, err := h.ext.Probe(ctx, extractor.Request{URL: url, CookieFile: cookieFile})
	if err != nil {
		logger.WarnContext(ctx, "probe failed", "url", url, "err", err)
		respondJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Error: err.Error(),
			Hint:  extractor.Hint(err),
		})

		return
	}

	respondJSON(ctx, w, http.StatusOK, newInfoResponse(meta))
}

// HandleDownload registers a download task and launches it in the
// background. Clients follow up on /task/{id}.
func (h *MediaHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logctx.From(ctx)

	url := strings.TrimSpace(r.FormValue("url"))
	requested := strings.TrimSpace(r.FormValue("requested"))

	if url == "" {
		respondError(ctx, w, http.StatusBadRequest, "URL missing")

		return
	}

	jarPath, err := uploadedCookieJar(r)
	if err != nil {
		logger.ErrorContext(ctx, "failed to store uploaded cookies", "err", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid cookies upload")

		return
	}

	// An uploaded jar is owned by the task from here on; the runner
	// removes it when the run finishes.
	cookieFile, uploaded := h.cookies.Resolve(jarPath)

	t := h.store.Create(url, requested, cookieFile, uploaded)
	h.runner.Launch(ctx, t.ID)

	logger.InfoContext(ctx, "download task accepted", "task_id", t.ID, "url", url)

	respondJSON(ctx, w, http.StatusOK, downloadResponse{OK: true, TaskID: t.ID})
}

// HandleTaskStatus reports a single task snapshot.
func (h *MediaHandler) HandleTaskStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	t, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "Task not found")

		return
	}

	payload := taskPayload{Status: string(t.Status), Progress: t.Progress}

	switch t.Status {
	case task.StatusDone:
		payload.Filename = t.Filename
	case task.StatusError:
		payload.Error = t.Error
	}

	respondJSON(ctx, w, http.StatusOK, taskResponse{OK: true, Task: payload})
}

// HandleDownloadFile streams a finished artifact as an attachment. The
// name is reduced to its base so clients cannot walk out of the
// download directory.
func (h *MediaHandler) HandleDownloadFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filename := filepath.Base(chi.URLParam(r, "filename"))
	if filename == "." || filename == string(filepath.Separator) {
		respondError(ctx, w, http.StatusNotFound, "File not found")

		return
	}

	path := filepath.Join(h.downloadDir, filename)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		respondError(ctx, w, http.StatusNotFound, "File not found")

		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, path)
}

// HandleDefaultCookies serves the resolved default cookie jar so
// operators can verify what runs will use.
func (h *MediaHandler) HandleDefaultCookies(w http.ResponseWriter, r *http.Request) {
	path, ok := h.cookies.Default()
	if !ok {
		w.WriteHeader(http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	http.ServeFile(w, r, path)
}

// HandleCookieStatus reports every cookie candidate path.
func (h *MediaHandler) HandleCookieStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, cookieStatusResponse{
		OK:         true,
		Candidates: h.cookies.CandidateStatus(),
	})
}

func newInfoResponse(meta *extractor.Metadata) infoResponse {
	resp := infoResponse{
		OK:        true,
		ID:        meta.ID,
		Title:     meta.Title,
		Thumbnail: meta.Thumbnail,
		Uploader:  meta.Uploader,
		Duration:  meta.Duration,
		Formats:   make([]formatInfo, 0, len(meta.Formats)),
	}

	for _, f := range meta.Formats {
		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}

		resp.Formats = append(resp.Formats, formatInfo{
			FormatID: f.FormatID,
			Ext:      f.Ext,
			Height:   f.Height,
			FPS:      f.FPS,
			VCodec:   f.VCodec,
			ACodec:   f.ACodec,
			ABR:      f.ABR,
			Filesize: size,
		})
	}

	return resp
}

// uploadedCookieJar stores a multipart "cookies" upload in a temp file
// and returns its path. A request without an upload returns an empty
// path.
func uploadedCookieJar(r *http.Request) (string, error) {
	file, _, err := r.FormFile("cookies")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}

		return "", err
	}
	defer file.Close()

	return cookie.WriteTemp(file)
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logctx.From(ctx).ErrorContext(ctx, "failed to encode response", "err", err)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, errorResponse{Error: message})
}

// recoverer converts handler panics into JSON 500s so clients never see
// a bare HTML error page.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				ctx := r.Context()
				logctx.From(ctx).ErrorContext(ctx, "handler panic",
					"panic", fmt.Sprintf("%v", rec),
					"stack", string(debug.Stack()),
				)
				respondError(ctx, w, http.StatusInternalServerError, "internal_server_error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
