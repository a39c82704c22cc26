package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/chat"
	"github.com/sells-group/provider-cli/internal/export"
	"github.com/sells-group/provider-cli/internal/fetcher"
	"github.com/sells-group/provider-cli/internal/ingest"
	"github.com/sells-group/provider-cli/internal/jobs"
	"github.com/sells-group/provider-cli/internal/model"
	"github.com/sells-group/provider-cli/internal/oracle"
	"github.com/sells-group/provider-cli/internal/store"
)

type submitRequest struct {
	Source string          `json:"source"`
	Kind   model.InputKind `json:"kind"`
}

type submitResponse struct {
	JobID string          `json:"job_id"`
	Kind  model.InputKind `json:"kind"`
}

type chatRequest struct {
	Question string `json:"question"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeLookupError maps job lookup errors onto status codes.
func writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, jobs.ErrNotCompleted):
		writeError(w, http.StatusConflict, "job has not completed")
	default:
		zap.L().Error("api: job lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var (
		source string
		kind   model.InputKind
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var status int
		var err error
		source, kind, status, err = s.saveUpload(w, r)
		if err != nil {
			writeError(w, status, err.Error())
			return
		}
	} else {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Source == "" {
			writeError(w, http.StatusBadRequest, "source is required")
			return
		}
		if !fetcher.IsRemote(req.Source) && !fetcher.Within(s.uploadDir, req.Source) {
			writeError(w, http.StatusBadRequest, "source must be an http(s) or ftp URL or an uploaded file")
			return
		}
		source, kind = req.Source, req.Kind
		if kind == "" {
			k, err := ingest.KindFor(source)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			kind = k
		}
		if !kind.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown kind %q", kind))
			return
		}
	}

	id, err := s.jobs.Submit(r.Context(), source, kind)
	if err != nil {
		zap.L().Error("api: submit failed", zap.String("source", source), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not start job")
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{JobID: id, Kind: kind})
}

// saveUpload stores the multipart "file" part under the upload directory
// and returns its path and inferred kind.
func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request) (string, model.InputKind, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", "", http.StatusRequestEntityTooLarge, eris.New("upload too large")
		}
		return "", "", http.StatusBadRequest, eris.New("invalid multipart body")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", http.StatusBadRequest, eris.New("file is required")
	}
	defer file.Close() //nolint:errcheck

	name := filepath.Base(header.Filename)
	kind, err := ingest.KindFor(name)
	if err != nil {
		return "", "", http.StatusBadRequest, err
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", "", http.StatusInternalServerError, eris.Wrap(err, "api: create upload dir")
	}
	dest := filepath.Join(s.uploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	out, err := os.Create(dest)
	if err != nil {
		return "", "", http.StatusInternalServerError, eris.Wrap(err, "api: create upload")
	}
	if _, err := io.Copy(out, file); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return "", "", http.StatusInternalServerError, eris.Wrap(err, "api: write upload")
	}
	if err := out.Close(); err != nil {
		return "", "", http.StatusInternalServerError, eris.Wrap(err, "api: close upload")
	}

	zap.L().Info("api: upload stored", zap.String("filename", name), zap.String("path", dest))
	return dest, kind, http.StatusOK, nil
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.JobFilter{Phase: model.JobPhase(q.Get("phase"))}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid "+name)
			return
		}
		*dst = n
	}

	list, err := s.jobs.List(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list jobs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) exportJob(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	rows, err := s.jobs.Export(r.Context(), id)
	if err != nil {
		writeLookupError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="job-%s.%s"`, id, format))
	if err := export.Write(w, format, rows); err != nil {
		zap.L().Error("api: export write", zap.String("job_id", id), zap.Error(err))
	}
}

func (s *Server) chatJob(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "chat is not configured")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.jobs.Result(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, err)
		return
	}

	answer, err := s.chat.Answer(r.Context(), result, req.Question)
	switch {
	case errors.Is(err, chat.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "question is required")
	case errors.Is(err, oracle.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, "chat is not configured")
	case err != nil:
		zap.L().Warn("api: chat failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "assistant unavailable")
	default:
		writeJSON(w, http.StatusOK, chatResponse{Answer: answer})
	}
}
