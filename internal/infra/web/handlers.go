package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/application"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// statusFor maps a facade reason to an HTTP status.
func statusFor(r application.Reason) int {
	switch r {
	case application.ReasonOK:
		return http.StatusOK
	case application.ReasonInvalidArgument:
		return http.StatusBadRequest
	case application.ReasonNotFound:
		return http.StatusNotFound
	case application.ReasonConflict:
		return http.StatusConflict
	case application.ReasonRateLimited, application.ReasonCooldown:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type scheduleRequest struct {
	MessageRef   string     `json:"message_ref"`
	AccountID    string     `json:"account_id"`
	RequestedAt  *time.Time `json:"requested_at,omitempty"`
	AIOptimize   bool       `json:"ai_optimize"`
	ExperimentID string     `json:"experiment_id,omitempty"`
}

func (s *Server) handleScheduleSingle(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res, err := s.facade.ScheduleSingle(r.Context(), application.ScheduleRequest{
		MessageRef:   req.MessageRef,
		AccountID:    req.AccountID,
		RequestedAt:  req.RequestedAt,
		AIOptimize:   req.AIOptimize,
		ExperimentID: req.ExperimentID,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", req.AccountID).Msg("schedule rejected")
	}
	status := statusFor(res.Reason)
	if status == http.StatusOK {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

type batchRequest struct {
	MessageRefs []string   `json:"message_refs"`
	AccountID   string     `json:"account_id"`
	StartAt     *time.Time `json:"start_at,omitempty"`
	SpreadHours int        `json:"spread_hours"`
	AIOptimize  bool       `json:"ai_optimize"`
}

func (s *Server) handleScheduleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res, err := s.facade.ScheduleBatch(r.Context(), application.BatchRequest{
		MessageRefs: req.MessageRefs,
		AccountID:   req.AccountID,
		StartAt:     req.StartAt,
		SpreadHours: req.SpreadHours,
		AIOptimize:  req.AIOptimize,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", req.AccountID).
			Int("placed", len(res.Scheduled)).Msg("batch stopped early")
	}
	// A partial batch is still useful to the caller; report it with the
	// blocking reason alongside what was placed.
	status := statusFor(res.Reason)
	if status == http.StatusOK {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	res, err := s.facade.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.log.Debug().Err(err).Msg("cancel rejected")
	}
	writeJSON(w, statusFor(res.Reason), res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	res := s.facade.Stats(r.Context())
	writeJSON(w, statusFor(res.Reason), res)
}

func (s *Server) handleCooldownStatus(w http.ResponseWriter, r *http.Request) {
	res := s.facade.CooldownStatus(r.Context(), chi.URLParam(r, "account"))
	writeJSON(w, statusFor(res.Reason), res)
}

type startSessionRequest struct {
	Units int `json:"units"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}
	res, err := s.facade.StartSession(r.Context(), chi.URLParam(r, "account"), req.Units)
	if err != nil {
		s.log.Info().Err(err).Str("account_id", chi.URLParam(r, "account")).Msg("session denied")
	}
	writeJSON(w, statusFor(res.Reason), res)
}

type createExperimentRequest struct {
	Name                 string  `json:"name"`
	MinSampleSize        int     `json:"min_sample_size"`
	ImprovementThreshold float64 `json:"improvement_threshold"`
}

func (s *Server) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req createExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	res, _ := s.facade.CreateExperiment(r.Context(), req.Name, req.MinSampleSize, req.ImprovementThreshold)
	status := statusFor(res.Reason)
	if status == http.StatusOK {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (s *Server) handleExperimentResults(w http.ResponseWriter, r *http.Request) {
	res, _ := s.facade.ExperimentResults(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, statusFor(res.Reason), res)
}

type experimentEventRequest struct {
	Kind           string  `json:"kind"` // only "reply" is accepted from outside
	Variant        string  `json:"variant"`
	SentimentScore float64 `json:"sentiment_score"`
}

func (s *Server) handleExperimentEvent(w http.ResponseWriter, r *http.Request) {
	var req experimentEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Kind != "reply" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported event kind"})
		return
	}
	res, _ := s.facade.RecordReply(r.Context(), chi.URLParam(r, "id"), req.Variant, req.SentimentScore)
	writeJSON(w, statusFor(res.Reason), res)
}

func (s *Server) handleBestPractices(w http.ResponseWriter, r *http.Request) {
	res, _ := s.facade.BestPractices(r.Context())
	writeJSON(w, statusFor(res.Reason), res)
}
