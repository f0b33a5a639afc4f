package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stevehiehn/greenscreen/internal/engine"
	dagerrors "github.com/stevehiehn/greenscreen/internal/errors"
	"github.com/stevehiehn/greenscreen/internal/screen"
	"github.com/stevehiehn/greenscreen/internal/session"
	"github.com/stevehiehn/greenscreen/internal/store"
)

// submitRequest is the body of /api/validate and /api/process.
type submitRequest struct {
	// SubmissionID reprocesses a stored submission when set.
	SubmissionID int64             `json:"submission_id,omitempty"`
	Screen       string            `json:"screen_name"`
	Inputs       map[string]string `json:"screen_inputs"`
	Data         map[string]string `json:"screen_data"`
}

type processResponse struct {
	SubmissionID int64 `json:"submission_id"`
	*engine.Result
}

func (s *Server) handleListScreens(w http.ResponseWriter, r *http.Request) {
	names, err := s.cfg.Catalog.ListScreenNames(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"screens": names})
}

func (s *Server) handleGetScreen(w http.ResponseWriter, r *http.Request) {
	sc, err := s.cfg.Catalog.GetScreen(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleCreateScreen(w http.ResponseWriter, r *http.Request) {
	var sc screen.Screen
	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode screen: %w", err))
		return
	}
	screen.SortSteps(sc.Steps)
	if err := s.cfg.Catalog.CreateScreen(r.Context(), &sc); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"screen_name": sc.Name, "warnings": screen.Warnings(&sc)})
}

func (s *Server) handleUpdateScreen(w http.ResponseWriter, r *http.Request) {
	var sc screen.Screen
	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode screen: %w", err))
		return
	}
	name := chi.URLParam(r, "name")
	if sc.Name == "" {
		sc.Name = name
	}
	screen.SortSteps(sc.Steps)
	if err := s.cfg.Catalog.UpdateScreen(r.Context(), name, &sc); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"screen_name": sc.Name, "warnings": screen.Warnings(&sc)})
}

func (s *Server) handleDeleteScreen(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Catalog.DeleteScreen(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, sc, ok := s.decodeSubmit(w, r)
	if !ok {
		return
	}
	rc := s.runContext(s.logger)
	result, err := engine.Execute(sc, s.submission(req), rc, engine.ModeExplain)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	req, sc, ok := s.decodeSubmit(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	id, err := s.cfg.Catalog.SaveSubmission(ctx, req.SubmissionID, sc.Name, req.Inputs, req.Data)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	log := s.logger.With(zap.Int64("submission_id", id), zap.String("screen", sc.Name))

	sub := s.submission(req)
	rc := s.runContext(log)

	// Reject bad data before touching the host.
	result, err := engine.Execute(sc, sub, rc, engine.ModeExplain)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	if !result.Success {
		s.finish(ctx, log, id, result)
		writeJSON(w, http.StatusUnprocessableEntity, processResponse{SubmissionID: id, Result: result})
		return
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	err = session.With(ctx, s.cfg.Open, func(term session.Terminal) error {
		rc.Terminal = term
		var runErr error
		result, runErr = engine.Execute(sc, sub, rc, engine.ModeRun)
		return runErr
	}, log)
	if err != nil {
		result = &engine.Result{RunID: rc.RunID, Screen: sc.Name, Message: err.Error(), Messages: []string{}}
		s.finish(ctx, log, id, result)
		s.writeError(w, statusFor(err), err)
		return
	}
	s.finish(ctx, log, id, result)
	writeJSON(w, http.StatusOK, processResponse{SubmissionID: id, Result: result})
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}
	subs, err := s.cfg.Catalog.ListSubmissions(r.Context(), r.URL.Query().Get("screen_name"), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid submission id"))
		return
	}
	sub, err := s.cfg.Catalog.GetSubmission(r.Context(), id)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) decodeSubmit(w http.ResponseWriter, r *http.Request) (submitRequest, *screen.Screen, bool) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return req, nil, false
	}
	if req.Screen == "" {
		s.writeError(w, http.StatusBadRequest, dagerrors.NewValidationError("screen_name is required", ""))
		return req, nil, false
	}
	sc, err := s.cfg.Catalog.GetScreen(r.Context(), req.Screen)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = &dagerrors.RunError{
				Type:    dagerrors.ScreenNotFound,
				Message: fmt.Sprintf("screen %q is not configured", req.Screen),
				Err:     err,
			}
		}
		s.writeError(w, statusFor(err), err)
		return req, nil, false
	}
	return req, sc, true
}

func (s *Server) submission(req submitRequest) engine.Submission {
	params := map[string]string{}
	for k, v := range s.cfg.Params {
		params[k] = v
	}
	for k, v := range req.Inputs {
		params[k] = v
	}
	return engine.Submission{Screen: req.Screen, Values: req.Data, Params: params}
}

func (s *Server) runContext(logger *zap.Logger) *engine.RunContext {
	rc := engine.NewRunContext(nil, s.cfg.ArtifactsDir, logger)
	if s.cfg.Sleep != nil {
		rc.Sleep = s.cfg.Sleep
		rc.Filler.Sleep = s.cfg.Sleep
	}
	return rc
}

func (s *Server) finish(ctx context.Context, log *zap.Logger, id int64, result *engine.Result) {
	// History is written even when the client has gone away.
	ctx = context.WithoutCancel(ctx)
	if err := s.cfg.Catalog.FinishSubmission(ctx, id, result.RunID, result.Success, string(result.Outcome), result.Message); err != nil {
		log.Error("recording submission result", zap.Error(err))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), dagerrors.IsType(err, dagerrors.ScreenNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrExists):
		return http.StatusConflict
	case dagerrors.IsType(err, dagerrors.ValidationError):
		return http.StatusBadRequest
	case dagerrors.IsType(err, dagerrors.ConnectionFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
