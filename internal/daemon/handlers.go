package daemon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/testpilot/internal/event"
	"github.com/runnerr0/testpilot/internal/producer"
	"github.com/runnerr0/testpilot/internal/report"
	"github.com/runnerr0/testpilot/internal/storage"
)

// maxClockSkew bounds how far past now a posted timestamp may lie.
const maxClockSkew = 24 * time.Hour

type handler struct {
	server *Server
	emit   producer.Emit
}

// eventRequest is one posted event. Timestamp is milliseconds since the
// epoch; when absent the event is stamped on append.
type eventRequest struct {
	Code      *int32   `json:"code"`
	Data1     string   `json:"data1"`
	Data2     string   `json:"data2"`
	Data3     string   `json:"data3"`
	Timestamp *float64 `json:"timestamp"`
}

type ingestResponse struct {
	Accepted int `json:"accepted"`
}

type statusResponse struct {
	Study       string           `json:"study"`
	RunID       string           `json:"run_id"`
	TotalEvents int64            `json:"total_events"`
	OldestEvent *time.Time       `json:"oldest_event,omitempty"`
	NewestEvent *time.Time       `json:"newest_event,omitempty"`
	CodeCounts  map[string]int64 `json:"code_counts"`
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// ingestEvents accepts a single event object or an array of them. The whole
// batch is validated before anything is recorded.
func (h *handler) ingestEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.server.maxBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	reqs, err := parseEvents(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events := make([]storage.Event, 0, len(reqs))
	for i, req := range reqs {
		e, err := h.toEvent(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("event %d: %v", i, err))
			return
		}
		events = append(events, e)
	}

	for _, e := range events {
		if err := h.emit(r.Context(), e); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to record event")
			return
		}
	}

	writeJSON(w, http.StatusAccepted, ingestResponse{Accepted: len(events)})
}

func parseEvents(body []byte) ([]eventRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty request body")
	}

	var reqs []eventRequest
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return nil, fmt.Errorf("invalid JSON: %v", err)
		}
		if len(reqs) == 0 {
			return nil, errors.New("empty event array")
		}
		return reqs, nil
	}

	var req eventRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %v", err)
	}
	return []eventRequest{req}, nil
}

func (h *handler) toEvent(req eventRequest) (storage.Event, error) {
	if req.Code == nil {
		return storage.Event{}, errors.New("code is required")
	}
	e := storage.Event{Code: *req.Code, Data1: req.Data1, Data2: req.Data2, Data3: req.Data3}
	if req.Timestamp != nil {
		ms := *req.Timestamp
		if math.IsNaN(ms) || ms <= 0 {
			return storage.Event{}, errors.New("timestamp must be positive milliseconds")
		}
		if limit := time.Now().Add(maxClockSkew).UnixMilli(); ms > float64(limit) {
			return storage.Event{}, fmt.Errorf("timestamp is more than %s in the future", maxClockSkew)
		}
		e.Timestamp = time.UnixMilli(int64(ms))
	}
	if _, err := event.Decode(h.server.study, e); err != nil {
		return storage.Event{}, err
	}
	return e, nil
}

// getReport prunes and aggregates. Query: concluded=true, top=N.
func (h *handler) getReport(w http.ResponseWriter, r *http.Request) {
	var req report.Request
	if v := r.URL.Query().Get("concluded"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "concluded must be a boolean")
			return
		}
		req.Concluded = b
	}
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		req.TopN = n
	}

	res, err := h.server.reports.Generate(r.Context(), req)
	if err != nil {
		h.server.logger.Error("report failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to generate report")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) getStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.server.store.Stats(r.Context())
	if err != nil {
		h.server.logger.Error("stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}
	runID, err := h.server.store.RunID(r.Context())
	if err != nil {
		h.server.logger.Error("run id failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read run id")
		return
	}

	resp := statusResponse{
		Study:       h.server.study.String(),
		RunID:       runID,
		TotalEvents: stats.TotalEvents,
		CodeCounts:  make(map[string]int64, len(stats.CodeCounts)),
	}
	if !stats.OldestEvent.IsZero() {
		resp.OldestEvent = &stats.OldestEvent
		resp.NewestEvent = &stats.NewestEvent
	}
	for _, cc := range stats.CodeCounts {
		resp.CodeCounts[h.server.study.Name(event.Code(cc.Code))] = cc.Count
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(h.server.started).Round(time.Second).String(),
	})
}
