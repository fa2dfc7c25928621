package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yangwenmai/reelcast/internal/model"
)

// ---------------------------------------------------------------------------
// POST /api/runs
// ---------------------------------------------------------------------------

type createRunRequest struct {
	Creator      string `json:"creator"`
	ProductURL   string `json:"product_url"`
	VoiceProfile string `json:"voice_profile"`
	MaxPosts     int    `json:"max_posts"` // 0 uses the configured default
}

func (r createRunRequest) validate() string {
	if strings.TrimSpace(r.Creator) == "" {
		return "creator is required"
	}
	if r.ProductURL == "" {
		return "product_url is required"
	}
	u, err := url.Parse(r.ProductURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "product_url must be an absolute http(s) URL"
	}
	if r.MaxPosts < 0 {
		return "max_posts must not be negative"
	}
	return ""
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	run := model.NewRun(
		uuid.New().String(),
		strings.TrimPrefix(strings.TrimSpace(req.Creator), "@"),
		req.ProductURL,
		strings.TrimSpace(req.VoiceProfile),
		req.MaxPosts,
	)
	if err := s.store.CreateRun(r.Context(), run); err != nil {
		slog.Error("create run", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create run")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":     run.ID,
		"status": run.Status,
	})
}

// ---------------------------------------------------------------------------
// GET /api/runs
// ---------------------------------------------------------------------------

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := model.RunFilter{Status: splitComma(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// ---------------------------------------------------------------------------
// GET /api/runs/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// loadRun fetches the run named by the {id} path value, writing the error
// response itself when it cannot.
func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*model.RunWithArtifacts, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return nil, false
	}
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return nil, false
	}
	return run, true
}

// ---------------------------------------------------------------------------
// POST /api/runs/{id}/retry
// ---------------------------------------------------------------------------

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	if run.Status != model.StatusFailed {
		writeError(w, http.StatusConflict, "only FAILED runs can be retried")
		return
	}

	retried, err := s.store.RetryRun(r.Context(), run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}
	if !retried {
		writeError(w, http.StatusConflict, "only FAILED runs can be retried")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": run.ID, "status": model.StatusQueued})
}

// ---------------------------------------------------------------------------
// PUT /api/runs/{id}/artifacts/{type}
// ---------------------------------------------------------------------------

type editArtifactRequest struct {
	Text string `json:"text"`
}

// handleEditArtifact lets a user replace the review or script text of a
// finished run. Published files are left untouched.
func (s *Server) handleEditArtifact(w http.ResponseWriter, r *http.Request) {
	artifactType := r.PathValue("type")
	if artifactType != model.ArtifactReview && artifactType != model.ArtifactScript {
		writeError(w, http.StatusBadRequest, "only review and script can be edited")
		return
	}

	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	if run.Status != model.StatusDone {
		writeError(w, http.StatusConflict, "can only edit artifacts of DONE runs")
		return
	}

	var req editArtifactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	payload, _ := json.Marshal(model.TextArtifact{Text: req.Text})
	artifact := model.Artifact{
		ID:           uuid.New().String(),
		RunID:        run.ID,
		ArtifactType: artifactType,
		Payload:      string(payload),
		CreatedBy:    model.CreatedByUser,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.store.UpsertArtifact(r.Context(), artifact); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save artifact")
		return
	}

	writeJSON(w, http.StatusOK, artifact)
}

// ---------------------------------------------------------------------------
// GET /api/runs/{id}/voice
// ---------------------------------------------------------------------------

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.sink == nil {
		writeError(w, http.StatusNotImplemented, "voice download is not configured")
		return
	}
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	var voice *model.VoiceArtifact
	for _, a := range run.Artifacts {
		if a.ArtifactType != model.ArtifactVoice {
			continue
		}
		var v model.VoiceArtifact
		if err := json.Unmarshal([]byte(a.Payload), &v); err == nil && v.Key != "" {
			voice = &v
		}
	}
	if voice == nil {
		writeError(w, http.StatusNotFound, "run has no voice clip")
		return
	}

	data, err := s.sink.Get(r.Context(), voice.Key)
	if err != nil {
		slog.Error("read voice clip", "run_id", run.ID, "key", voice.Key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read voice clip")
		return
	}

	contentType := voice.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ---------------------------------------------------------------------------
// GET /api/stats
// ---------------------------------------------------------------------------

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count runs")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}
