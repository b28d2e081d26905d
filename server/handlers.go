package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"showmerge/core/pipeline"
	"showmerge/logger"
	"showmerge/model"
	"showmerge/repository"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	maxRequestBody   = 1 << 20
	defaultListLimit = 20
	maxListLimit     = 200
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string         `json:"error"`
	Kind  pipeline.Kind  `json:"kind,omitempty"`
	Stage pipeline.Stage `json:"stage,omitempty"`
}

// SubmitResponse is returned for an accepted asynchronous merge.
type SubmitResponse struct {
	RunID     string `json:"runId"`
	StatusURL string `json:"statusUrl"`
	EventsURL string `json:"eventsUrl"`
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func errorResponse(err *pipeline.RunError) *ErrorResponse {
	return &ErrorResponse{Error: err.Err.Error(), Kind: err.Kind, Stage: err.Stage}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeRunError(w http.ResponseWriter, err error) {
	if runErr, ok := pipeline.AsRunError(err); ok {
		writeJSON(w, runErr.HTTPStatus(), errorResponse(runErr))
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (model.MergeRequest, bool) {
	var req model.MergeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Kind:  pipeline.KindValidation,
		})
		return req, false
	}
	return req, true
}

func logSubmission(r *http.Request, runID, mode string) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		subject = "anonymous"
	}
	logger.Info("merge submitted",
		logger.String("runId", runID),
		logger.String("mode", mode),
		logger.String("subject", subject))
}

// MergeHandler runs a merge and responds when it has finished.
func (s *Server) MergeHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	runID := pipeline.NewRunID()
	s.hub.Track(runID)
	logSubmission(r, runID, "sync")
	result, err := s.runner.Run(r.Context(), runID, req)
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SubmitMergeHandler starts a merge in the background and returns its id.
func (s *Server) SubmitMergeHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	runID := pipeline.NewRunID()
	s.hub.Track(runID)
	logSubmission(r, runID, "async")
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		if _, err := s.runner.Run(s.runCtx, runID, req); err != nil {
			logger.Debug("background merge ended with error", logger.String("runId", runID), logger.ErrorField(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		RunID:     runID,
		StatusURL: "/api/merges/" + runID,
		EventsURL: "/api/merges/" + runID + "/events",
	})
}

// GetMergeHandler returns the record of one run.
func (s *Server) GetMergeHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	record, err := s.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "merge run not found")
			return
		}
		logger.Error("failed to load merge record", logger.String("runId", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to load merge record")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// ListMergesHandler returns the most recent runs, newest first.
func (s *Server) ListMergesHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	records, err := s.repo.ListRecent(r.Context(), limit)
	if err != nil {
		logger.Error("failed to list merge records", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to list merge records")
		return
	}
	if records == nil {
		records = []*model.MergeRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// EventsHandler streams the stage changes of one run over a websocket.
func (s *Server) EventsHandler(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := &Client{RunID: runID, Conn: conn, Send: make(chan []byte, clientSendBuffer), hub: s.hub}
	if !s.hub.Subscribe(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown run"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump()
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
