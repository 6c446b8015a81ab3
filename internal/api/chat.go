package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sqlagent/sqlagent/internal/archive"
	"github.com/sqlagent/sqlagent/internal/observability"
	"github.com/sqlagent/sqlagent/internal/pipeline"
	"github.com/sqlagent/sqlagent/internal/session"
)

type chatRequest struct {
	Message string `json:"message"`
}

// handleChat runs the pipeline inside the session update so concurrent
// messages for one session are answered in order.
func handleChat(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil || deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat pipeline is not configured", false, nil)
		return
	}
	sessionID := strings.TrimSpace(r.PathValue("session_id"))
	if sessionID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SESSION_ID_REQUIRED", "session_id is required", false, nil)
		return
	}

	message, err := chatMessage(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chat request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(message) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MESSAGE_REQUIRED", "message is required", false, nil)
		return
	}

	ctx := observability.ContextWithSessionID(r.Context(), sessionID)
	var (
		state  pipeline.State
		runErr error
	)
	started := deps.Clock()
	sess, err := deps.Sessions.Update(ctx, sessionID, func(s *session.Session) error {
		s.RecordMessage(message)
		state, runErr = deps.Pipeline.Run(ctx, message)
		s.ApplyRun(state, deps.Clock())
		return nil
	})
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.ErrorContext(ctx, "session update failed", append(observability.RequestAttrs(ctx), slog.Any("error", err))...)
		}
		writeError(ctx, w, http.StatusInternalServerError, "SESSION_UPDATE_FAILED", "failed to update session", true, map[string]any{"details": err.Error()})
		return
	}

	if deps.Archiver != nil {
		// Failures are logged and counted by the archiver.
		_, _ = deps.Archiver.Archive(ctx, archive.Run{
			SessionID: sessionID,
			State:     state,
			Err:       runErr,
			StartedAt: started,
		})
	}

	if runErr != nil {
		writePipelineError(ctx, w, runErr, sess)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "session store is not configured", false, nil)
		return
	}
	sessionID := strings.TrimSpace(r.PathValue("session_id"))
	sess, err := deps.Sessions.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", false, map[string]any{"session_id": sessionID})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_FETCH_FAILED", "failed to load session", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// chatMessage reads the message from a JSON body, falling back to the
// message query parameter when the body is empty.
func chatMessage(r *http.Request) (string, error) {
	var req chatRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if req.Message == "" {
		req.Message = r.URL.Query().Get("message")
	}
	return req.Message, nil
}

func writePipelineError(ctx context.Context, w http.ResponseWriter, err error, sess session.Session) {
	extra := map[string]any{"details": err.Error(), "session": sess}
	switch {
	case errors.Is(err, pipeline.ErrMissingQuery):
		writeError(ctx, w, http.StatusBadGateway, "NO_QUERY_PRODUCED", "no SQL query could be generated for the message", true, extra)
	case errors.Is(err, pipeline.ErrMissingInput):
		writeError(ctx, w, http.StatusBadRequest, "MESSAGE_REQUIRED", "message is required", false, extra)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(ctx, w, http.StatusServiceUnavailable, "PIPELINE_CANCELED", "request was canceled before the pipeline finished", true, extra)
	default:
		writeError(ctx, w, http.StatusInternalServerError, "PIPELINE_FAILED", "pipeline run failed", false, extra)
	}
}
