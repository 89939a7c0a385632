package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"nimbus-hq/sendgate/pkg/quota"
	"nimbus-hq/sendgate/pkg/telemetry/logging"
)

// checkRequest is the body for admission check endpoints. MailboxID is
// required for email checks and ignored for LinkedIn checks.
type checkRequest struct {
	WorkspaceID string `json:"workspace_id"`
	MailboxID   string `json:"mailbox_id,omitempty"`
	Plan        string `json:"plan"`
}

// checkResponse reports an admission decision.
type checkResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Current int64  `json:"current,omitempty"`
	Limit   int64  `json:"limit,omitempty"`
	Error   string `json:"error,omitempty"`
}

// usageRequest is the body for usage recording endpoints.
type usageRequest struct {
	WorkspaceID string `json:"workspace_id"`
	MailboxID   string `json:"mailbox_id,omitempty"`
}

// thresholdsResponse lists usage windows at or past the warning ratio.
type thresholdsResponse struct {
	Alerts []thresholdAlert `json:"alerts"`
}

type thresholdAlert struct {
	Channel   string  `json:"channel"`
	Period    string  `json:"period"`
	MailboxID string  `json:"mailbox_id,omitempty"`
	Current   int64   `json:"current"`
	Limit     int64   `json:"limit"`
	Percent   float64 `json:"percent"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleEmailCheck serves POST /v1/email/check.
func (s *Server) handleEmailCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCheckRequest(w, r, true)
	if !ok {
		return
	}

	decision, err := s.engine.CheckEmailAllowed(r.Context(), req.WorkspaceID, req.MailboxID, req.Plan)
	s.writeDecision(w, r, decision, err)
}

// handleLinkedInCheck serves POST /v1/linkedin/check.
func (s *Server) handleLinkedInCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCheckRequest(w, r, false)
	if !ok {
		return
	}

	decision, err := s.engine.CheckLinkedInAllowed(r.Context(), req.WorkspaceID, req.Plan)
	s.writeDecision(w, r, decision, err)
}

// handleEmailUsage serves POST /v1/email/usage.
func (s *Server) handleEmailUsage(w http.ResponseWriter, r *http.Request) {
	var req usageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.WorkspaceID == "" || req.MailboxID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "workspace_id and mailbox_id are required"})
		return
	}

	s.writeUsageResult(w, r, s.engine.RecordEmailSend(r.Context(), req.WorkspaceID, req.MailboxID))
}

// handleLinkedInUsage serves POST /v1/linkedin/usage.
func (s *Server) handleLinkedInUsage(w http.ResponseWriter, r *http.Request) {
	var req usageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.WorkspaceID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "workspace_id is required"})
		return
	}

	s.writeUsageResult(w, r, s.engine.RecordLinkedInAction(r.Context(), req.WorkspaceID))
}

// handleThresholds serves GET /v1/thresholds.
func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	workspaceID := query.Get("workspace_id")
	plan := query.Get("plan")
	if workspaceID == "" || plan == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "workspace_id and plan are required"})
		return
	}

	alerts, err := s.engine.CheckThresholds(r.Context(), workspaceID, plan, query["mailbox_id"]...)
	if err != nil {
		slog.ErrorContext(r.Context(), "threshold check failed",
			"workspace_id", workspaceID,
			"request_id", logging.GetRequestID(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "counter store unavailable"})
		return
	}

	resp := thresholdsResponse{Alerts: make([]thresholdAlert, 0, len(alerts))}
	for _, alert := range alerts {
		resp.Alerts = append(resp.Alerts, thresholdAlert{
			Channel:   string(alert.Channel),
			Period:    string(alert.Period),
			MailboxID: alert.MailboxID,
			Current:   alert.Current,
			Limit:     alert.Limit,
			Percent:   alert.Percent,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealthz serves GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeCheckRequest parses and validates a check request body.
func (s *Server) decodeCheckRequest(w http.ResponseWriter, r *http.Request, needMailbox bool) (checkRequest, bool) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return req, false
	}
	if req.WorkspaceID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "workspace_id is required"})
		return req, false
	}
	if needMailbox && req.MailboxID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "mailbox_id is required"})
		return req, false
	}
	return req, true
}

// writeDecision renders an admission decision. Storage failures fail closed:
// the client gets allowed=false with a 503 so it can distinguish "over
// quota" from "cannot tell right now".
func (s *Server) writeDecision(w http.ResponseWriter, r *http.Request, decision quota.Decision, err error) {
	if err != nil {
		slog.ErrorContext(r.Context(), "admission check failed",
			"request_id", logging.GetRequestID(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusServiceUnavailable, checkResponse{
			Allowed: false,
			Error:   "counter store unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, checkResponse{
		Allowed: decision.Allowed,
		Reason:  string(decision.Reason),
		Current: decision.Current,
		Limit:   decision.Limit,
	})
}

// writeUsageResult renders the outcome of a usage recording call. A lost
// increment still returns 204: the send already happened and the loss has
// been logged for reconciliation.
func (s *Server) writeUsageResult(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, quota.ErrIncrementLost):
		slog.WarnContext(r.Context(), "usage increment lost",
			"request_id", logging.GetRequestID(r.Context()),
			"error", err,
		)
		w.WriteHeader(http.StatusNoContent)
	default:
		slog.ErrorContext(r.Context(), "usage recording failed",
			"request_id", logging.GetRequestID(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to record usage"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
