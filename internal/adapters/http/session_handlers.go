package httpadapter

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/vmalyshev/studycast/internal/core/domain"
)

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	sources, cleanup, ok := rt.collectSources(w, r)
	if !ok {
		return
	}
	defer cleanup()

	modelID := r.FormValue("model")
	if modelID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "form field 'model' is required"})
		return
	}
	chunkSize := formInt(r, "chunk_size")
	chunkOverlap := formInt(r, "chunk_overlap")

	sessionID, report, err := rt.sessions.Create(r.Context(), sources, modelID, chunkSize, chunkOverlap)
	if err != nil {
		rt.respondError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSessionCreated(rt.service, modelID)
		rt.metrics.RecordIngest(rt.service, len(report.Successful), len(report.Failed))
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id":           sessionID,
		"successful_documents": report.Successful,
		"failed_documents":     report.Failed,
	})
}

func (rt *Router) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": rt.sessions.List(r.Context())})
}

func (rt *Router) sessionInfo(w http.ResponseWriter, r *http.Request) {
	info, err := rt.sessions.Info(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"info": info})
}

func (rt *Router) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	sources, cleanup, ok := rt.collectSources(w, r)
	if !ok {
		return
	}
	defer cleanup()

	report, err := rt.sessions.Ingest(r.Context(), r.PathValue("id"), sources)
	if err != nil {
		rt.respondError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordIngest(rt.service, len(report.Successful), len(report.Failed))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"successful_documents": report.Successful,
		"failed_documents":     report.Failed,
	})
}

func (rt *Router) switchModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Model == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "field 'model' is required"})
		return
	}

	if err := rt.sessions.SwitchModel(r.Context(), r.PathValue("id"), req.Model); err != nil {
		rt.respondError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordModelSwitch(rt.service, req.Model)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "model": req.Model})
}

func (rt *Router) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := rt.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		rt.respondError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSessionDeleted(rt.service)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// collectSources reads the multipart batch: uploaded files are staged
// into object storage for extraction, inline text and urls pass
// through. The returned cleanup removes the staged files.
func (rt *Router) collectSources(w http.ResponseWriter, r *http.Request) ([]domain.UploadSource, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)
	if err := r.ParseMultipartForm(rt.maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form: " + err.Error()})
		return nil, nil, false
	}

	var (
		sources []domain.UploadSource
		staged  []string
	)
	cleanup := func() {
		for _, key := range staged {
			if err := rt.storage.Remove(r.Context(), key); err != nil {
				rt.logger.Warn("staged_upload_cleanup_failed", "key", key, "error", err)
			}
		}
	}

	for _, header := range r.MultipartForm.File["files"] {
		file, err := header.Open()
		if err != nil {
			cleanup()
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read upload: " + err.Error()})
			return nil, nil, false
		}
		key := "uploads/" + uuid.NewString() + "_" + sanitizeFilename(header.Filename)
		saveErr := rt.storage.Save(r.Context(), key, file)
		file.Close()
		if saveErr != nil {
			cleanup()
			rt.respondError(w, r, saveErr)
			return nil, nil, false
		}
		staged = append(staged, key)
		sources = append(sources, domain.UploadSource{
			Kind:  domain.SourceKindFile,
			Value: rt.storage.Path(key),
			Name:  header.Filename,
		})
	}

	if text := r.FormValue("text"); strings.TrimSpace(text) != "" {
		sources = append(sources, domain.UploadSource{
			Kind:  domain.SourceKindText,
			Value: text,
			Name:  r.FormValue("text_name"),
		})
	}

	for _, raw := range r.MultipartForm.Value["urls"] {
		for _, u := range strings.Split(raw, "\n") {
			if u = strings.TrimSpace(u); u != "" {
				sources = append(sources, domain.UploadSource{Kind: domain.SourceKindURL, Value: u})
			}
		}
	}

	if len(sources) == 0 {
		cleanup()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no sources provided"})
		return nil, nil, false
	}
	return sources, cleanup, true
}

func formInt(r *http.Request, field string) int {
	n, err := strconv.Atoi(r.FormValue(field))
	if err != nil {
		return 0
	}
	return n
}

// sanitizeFilename keeps the base name and replaces anything that could
// confuse the storage layer.
func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}
