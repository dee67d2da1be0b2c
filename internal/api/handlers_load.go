package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/dgallion1/taxindex/internal/pipeline"
	"github.com/dgallion1/taxindex/internal/source"
	"github.com/dgallion1/taxindex/internal/taxonomy"
	"github.com/go-chi/chi/v5"
)

type loadRequest struct {
	Source string `json:"source"`
}

// handleLoad queues a (re)load of one dialect, either from an uploaded file
// or from a source location.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	d, err := taxonomy.ParseDialect(chi.URLParam(r, "dialect"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxSourceBytes+1024*1024) // extra 1MB for form overhead

	var job *pipeline.Job
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		job, err = s.uploadJob(r, d)
	} else {
		job, err = s.sourceJob(r, d)
	}
	if err != nil {
		code := http.StatusBadRequest
		var se *statusError
		if errors.As(err, &se) {
			code = se.code
		}
		jsonError(w, err.Error(), code)
		return
	}

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"dialect":  job.Dialect,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string { return e.msg }

func (s *Server) uploadJob(r *http.Request, d taxonomy.Dialect) (*pipeline.Job, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file is required: %w", err)
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !source.IsSupportedExtension(filename) {
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxSourceBytes+1))
	if err != nil {
		return nil, &statusError{http.StatusInternalServerError, "failed to read file"}
	}
	if int64(len(data)) > s.cfg.MaxSourceBytes {
		return nil, &statusError{http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxSourceBytes)}
	}
	if data == nil {
		data = []byte{}
	}
	return pipeline.NewJob(d.String(), "", filename, data), nil
}

// sourceJob builds a job from a JSON body. An empty source reloads the
// configured one. Local paths other than the configured source are refused
// so that callers cannot read arbitrary server files.
func (s *Server) sourceJob(r *http.Request, d taxonomy.Dialect) (*pipeline.Job, error) {
	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	configured := s.cfg.Sources()[d.String()]
	loc := strings.TrimSpace(req.Source)
	switch {
	case loc == "" && configured == "":
		return nil, fmt.Errorf("no source given and none configured for %s", d)
	case loc == "":
		loc = configured
	case loc != configured && !strings.HasPrefix(loc, "s3://"):
		return nil, fmt.Errorf("source must be an s3:// location or the configured source")
	}

	filename := path.Base(loc)
	if !source.IsSupportedExtension(filename) {
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
	return pipeline.NewJob(d.String(), loc, filename, nil), nil
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
