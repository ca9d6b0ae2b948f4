package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ImperatorDravidor/inflio-sub007/internal/logger"
	"github.com/ImperatorDravidor/inflio-sub007/internal/progress"
	"github.com/ImperatorDravidor/inflio-sub007/internal/types"
)

// Pipeline is the orchestrator surface the handlers need.
type Pipeline interface {
	Start(projectID, mediaReference, languageHint string) (string, error)
	Progress(ctx context.Context, runID string) (*types.PipelineRun, error)
}

// RunLister lists known runs for the polling UI.
type RunLister interface {
	List(ctx context.Context) ([]types.PipelineRun, error)
}

type PipelineHandler struct {
	pipeline Pipeline
	runs     RunLister
}

func NewPipelineHandler(p Pipeline, runs RunLister) *PipelineHandler {
	return &PipelineHandler{pipeline: p, runs: runs}
}

type startRequest struct {
	ProjectID      string `json:"project_id"`
	MediaReference string `json:"media_reference"`
	LanguageHint   string `json:"language_hint,omitempty"`
}

type startResponse struct {
	RunID string `json:"run_id"`
}

type progressResponse struct {
	Stage        types.Stage `json:"stage"`
	Percent      int         `json:"percent"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// Start kicks off a run and returns its id immediately; execution continues
// in the background.
func (h *PipelineHandler) Start(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "pipeline.start")

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProjectID == "" || req.MediaReference == "" {
		http.Error(w, "project_id and media_reference are required", http.StatusBadRequest)
		return
	}

	runID, err := h.pipeline.Start(req.ProjectID, req.MediaReference, req.LanguageHint)
	if err != nil {
		log.WithField("error", err.Error()).Error("failed to start run")
		http.Error(w, "failed to start pipeline", http.StatusInternalServerError)
		return
	}
	log.WithField("run_id", runID).Info("run started")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(startResponse{RunID: runID})
}

// Progress reports the run's current {stage, percent}; failed runs include
// the recorded reason.
func (h *PipelineHandler) Progress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := h.pipeline.Progress(r.Context(), runID)
	if err != nil {
		if errors.Is(err, progress.ErrNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		logger.New().WithRequest(r).WithField("error", err.Error()).Error("progress lookup failed")
		http.Error(w, "progress lookup failed", http.StatusInternalServerError)
		return
	}

	resp := progressResponse{Stage: run.Stage, Percent: run.Percent}
	if run.Stage == types.StageFailed {
		resp.ErrorMessage = run.ErrorMessage
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// List returns all runs, most recent first.
func (h *PipelineHandler) List(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.List(r.Context())
	if err != nil {
		logger.New().WithRequest(r).WithField("error", err.Error()).Error("run listing failed")
		http.Error(w, "run listing failed", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []types.PipelineRun{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(runs)
}
